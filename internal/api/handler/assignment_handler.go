package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/dto"
	"hums/backend/internal/service"
	"hums/backend/pkg/response"
)

// AssignmentHandler 报名、接班、放弃等分配操作
type AssignmentHandler struct {
	assignmentSvc service.AssignmentService
	logger        *zap.Logger
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(assignmentSvc service.AssignmentService, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{assignmentSvc: assignmentSvc, logger: logger}
}

// Register 报名模板
// POST /api/v1/schedules/:id/register
func (h *AssignmentHandler) Register(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	res, err := h.assignmentSvc.Register(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}

// Unregister 退出模板
// POST /api/v1/schedules/:id/unregister
func (h *AssignmentHandler) Unregister(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	res, err := h.assignmentSvc.Unregister(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}

// ForceRegister 管理员为指定成员报名
// POST /api/v1/schedules/:id/force-register
func (h *AssignmentHandler) ForceRegister(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ForceAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	res, err := h.assignmentSvc.ForceRegister(c.Request.Context(), p, c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}

// ForceUnregister 管理员移除指定成员
// POST /api/v1/schedules/:id/force-unregister
func (h *AssignmentHandler) ForceUnregister(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.ForceAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	res, err := h.assignmentSvc.ForceUnregister(c.Request.Context(), p, c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}

// Pickup 接下空缺实例
// POST /api/v1/occurrences/:id/pickup
func (h *AssignmentHandler) Pickup(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	res, err := h.assignmentSvc.Pickup(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}

// Drop 放弃单次实例
// POST /api/v1/occurrences/:id/drop
func (h *AssignmentHandler) Drop(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.DropRequest
	// 备注可选，空 body 也允许
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	res, err := h.assignmentSvc.Drop(c.Request.Context(), p, c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}

// DropMakeup 放弃实例并同时接下补班实例
// POST /api/v1/occurrences/:id/drop-makeup
func (h *AssignmentHandler) DropMakeup(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.DropMakeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	res, err := h.assignmentSvc.DropMakeup(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}
