package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/dto"
	"hums/backend/internal/service"
	"hums/backend/pkg/response"
)

// ShiftTypeHandler 班次类型 HTTP 处理器
type ShiftTypeHandler struct {
	shiftTypeSvc service.ShiftTypeService
	logger       *zap.Logger
}

// NewShiftTypeHandler 创建 ShiftTypeHandler
func NewShiftTypeHandler(shiftTypeSvc service.ShiftTypeService, logger *zap.Logger) *ShiftTypeHandler {
	return &ShiftTypeHandler{shiftTypeSvc: shiftTypeSvc, logger: logger}
}

// ListByPeriod 周期下的班次类型
// GET /api/v1/periods/:id/shift-types
func (h *ShiftTypeHandler) ListByPeriod(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.shiftTypeSvc.ListByPeriod(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Get 班次类型详情
// GET /api/v1/shift-types/:id
func (h *ShiftTypeHandler) Get(c *gin.Context) {
	st, err := h.shiftTypeSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, st)
}

// Create 创建班次类型
// POST /api/v1/shift-types
func (h *ShiftTypeHandler) Create(c *gin.Context) {
	var req dto.CreateShiftTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	st, err := h.shiftTypeSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Created(c, st)
}

// Update 更新班次类型
// PUT /api/v1/shift-types/:id
func (h *ShiftTypeHandler) Update(c *gin.Context) {
	var req dto.UpdateShiftTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	st, err := h.shiftTypeSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, st)
}

// Delete 删除班次类型（级联模板、实例与考勤）
// DELETE /api/v1/shift-types/:id
func (h *ShiftTypeHandler) Delete(c *gin.Context) {
	if err := h.shiftTypeSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, nil)
}
