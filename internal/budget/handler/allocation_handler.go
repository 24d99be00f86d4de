package handler

import (
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/service"
	"github.com/gin-gonic/gin"
)

type AllocationHandler struct {
	svc *service.AllocationService
}

func NewAllocationHandler(svc *service.AllocationService) *AllocationHandler {
	return &AllocationHandler{svc: svc}
}

// GetTree GET /sessions/:id/tree
// 返回全量层级树，每节点携带各期间的百分比/金额/数量快照
func (h *AllocationHandler) GetTree(c *gin.Context) {
	result, err := h.svc.GetTree(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// SaveAllocations PUT /sessions/:id/allocations
// 整期覆盖保存：请求体里的记录整体替换该期间的既有记录
func (h *AllocationHandler) SaveAllocations(c *gin.Context) {
	var input struct {
		Period      string                    `json:"period"`
		Allocations []service.AllocationEntry `json:"allocations" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.svc.SaveAllocations(c.Request.Context(), GetUserID(c), c.Param("id"), input.Period, input.Allocations)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// UpsertAllocation PATCH /sessions/:id/allocations
// 单条插入或更新，金额按父节点现值级联
func (h *AllocationHandler) UpsertAllocation(c *gin.Context) {
	var input struct {
		Period     string  `json:"period"`
		Path       string  `json:"path" binding:"required"`
		Percentage float64 `json:"percentage"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	alloc, warnings, err := h.svc.UpsertOne(c.Request.Context(), GetUserID(c), c.Param("id"), input.Period, input.Path, input.Percentage)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"allocation": alloc, "warnings": warnings})
}

// Recompute POST /sessions/:id/recompute
// 从指定路径（空路径=全树）自顶向下重算既有记录的金额/数量
func (h *AllocationHandler) Recompute(c *gin.Context) {
	var input struct {
		Period string `json:"period"`
		Path   string `json:"path"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	updated, err := h.svc.RecomputeSubtree(c.Request.Context(), GetUserID(c), c.Param("id"), input.Period, input.Path)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"updated": updated})
}
