package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/dto"
	"hums/backend/internal/service"
	"hums/backend/pkg/response"
)

// ScheduleHandler 排班模板与列表视图 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
	logger      *zap.Logger
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc, logger: logger}
}

// Create 创建排班模板并生成实例
// POST /api/v1/schedules
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	detail, err := h.scheduleSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Created(c, detail)
}

// Get 模板详情
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	detail, err := h.scheduleSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, detail)
}

// Update 更新模板，时间或名额变化时对账实例
// PUT /api/v1/schedules/:id
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	detail, err := h.scheduleSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, detail)
}

// Delete 删除模板
// DELETE /api/v1/schedules/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.scheduleSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, nil)
}

// ListForRegistration 报名视图
// GET /api/v1/periods/:id/registration
func (h *ScheduleHandler) ListForRegistration(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var filter dto.ScheduleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindFailed(c, err)
		return
	}

	items, err := h.scheduleSvc.ListForRegistration(c.Request.Context(), p, c.Param("id"), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// ListForOverview 总览视图
// GET /api/v1/periods/:id/overview
func (h *ScheduleHandler) ListForOverview(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var filter dto.ScheduleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindFailed(c, err)
		return
	}

	items, err := h.scheduleSvc.ListForOverview(c.Request.Context(), p, c.Param("id"), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// ListMyOccurrences 我的班次实例
// GET /api/v1/occurrences/my?period_id=&from=&to=
func (h *ScheduleHandler) ListMyOccurrences(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var q dto.OccurrenceRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}
	from, err := parseOptionalTime(q.From)
	if err != nil {
		response.BadRequest(c, 10001, "from 格式错误，应为 RFC3339")
		return
	}
	to, err := parseOptionalTime(q.To)
	if err != nil {
		response.BadRequest(c, 10001, "to 格式错误，应为 RFC3339")
		return
	}

	list, err := h.scheduleSvc.ListMyOccurrences(c.Request.Context(), userID, q.PeriodID, from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListPickupCandidates 可接班的空缺实例
// GET /api/v1/periods/:id/pickup
func (h *ScheduleHandler) ListPickupCandidates(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.scheduleSvc.ListPickupCandidates(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}
