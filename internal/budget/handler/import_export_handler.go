package handler

import (
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/service"
	"github.com/gin-gonic/gin"
)

type ImportExportHandler struct {
	svc *service.ImportExportService
}

func NewImportExportHandler(svc *service.ImportExportService) *ImportExportHandler {
	return &ImportExportHandler{svc: svc}
}

// Import POST /sessions/:id/import
// multipart上传CSV，既有SKU/层级定义/分配整体替换
func (h *ImportExportHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传CSV文件")
		return
	}
	defer file.Close()

	result, err := h.svc.Import(c.Request.Context(), GetUserID(c), c.Param("id"), file)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// ExportCSV GET /sessions/:id/export
func (h *ImportExportHandler) ExportCSV(c *gin.Context) {
	data, filename, err := h.svc.ExportCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Writer.Write(data)
}

// ExportXLSX GET /sessions/:id/export/xlsx
func (h *ImportExportHandler) ExportXLSX(c *gin.Context) {
	f, filename, err := h.svc.ExportXLSX(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
