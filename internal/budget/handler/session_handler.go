package handler

import (
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/service"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	svc *service.SessionService
}

func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// ListCategories GET /categories
func (h *SessionHandler) ListCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		InternalError(c, "获取分类列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": categories})
}

// CreateCategory POST /categories
func (h *SessionHandler) CreateCategory(c *gin.Context) {
	var input service.CreateCategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	category, err := h.svc.CreateCategory(c.Request.Context(), &input)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, category)
}

// ListSessions GET /sessions?category_id=xxx
func (h *SessionHandler) ListSessions(c *gin.Context) {
	categoryID := c.Query("category_id")
	sessions, err := h.svc.ListSessions(c.Request.Context(), categoryID)
	if err != nil {
		InternalError(c, "获取会话列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": sessions})
}

// CreateSession POST /sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var input service.CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	session, err := h.svc.CreateSession(c.Request.Context(), &input, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, session)
}

// GetSession GET /sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.svc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, session)
}

// UpdateSession PUT /sessions/:id
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	var input service.UpdateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	session, err := h.svc.UpdateSession(c.Request.Context(), c.Param("id"), &input, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, session)
}

// DeleteSession DELETE /sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.svc.DeleteSession(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}
