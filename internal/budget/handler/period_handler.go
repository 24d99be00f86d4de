package handler

import (
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/service"
	"github.com/gin-gonic/gin"
)

type PeriodHandler struct {
	svc *service.PeriodService
}

func NewPeriodHandler(svc *service.PeriodService) *PeriodHandler {
	return &PeriodHandler{svc: svc}
}

// ListPeriods GET /sessions/:id/periods
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	budgets, err := h.svc.ListPeriods(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": budgets})
}

// CreatePeriod POST /sessions/:id/periods
func (h *PeriodHandler) CreatePeriod(c *gin.Context) {
	var input service.CreatePeriodInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	pb, err := h.svc.CreatePeriod(c.Request.Context(), GetUserID(c), c.Param("id"), &input)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, pb)
}

// RenamePeriod POST /sessions/:id/periods/rename
func (h *PeriodHandler) RenamePeriod(c *gin.Context) {
	var input service.RenamePeriodInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	if err := h.svc.RenamePeriod(c.Request.Context(), GetUserID(c), c.Param("id"), &input); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"renamed": true})
}

// DeletePeriod DELETE /sessions/:id/periods?period=xxx
func (h *PeriodHandler) DeletePeriod(c *gin.Context) {
	period := c.Query("period")
	removed, err := h.svc.DeletePeriod(c.Request.Context(), GetUserID(c), c.Param("id"), period)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"removed": removed})
}

// UpdateBudget PUT /sessions/:id/budget
func (h *PeriodHandler) UpdateBudget(c *gin.Context) {
	var input service.UpdateBudgetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	pb, err := h.svc.UpdateBudget(c.Request.Context(), GetUserID(c), c.Param("id"), &input)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, pb)
}
