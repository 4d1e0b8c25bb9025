package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/dto"
	"hums/backend/internal/service"
	"hums/backend/pkg/response"
)

// AttendanceHandler 考勤 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
	logger        *zap.Logger
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc, logger: logger}
}

// TimeIn 签到（打卡终端调用）
// POST /api/v1/occurrences/:id/time-in
func (h *AttendanceHandler) TimeIn(c *gin.Context) {
	var req dto.TimeClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	att, err := h.attendanceSvc.RecordTimeIn(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, att)
}

// TimeOut 签退
// POST /api/v1/occurrences/:id/time-out
func (h *AttendanceHandler) TimeOut(c *gin.Context) {
	var req dto.TimeClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	att, err := h.attendanceSvc.RecordTimeOut(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, att)
}

// Excuse 批准请假
// POST /api/v1/attendance/:id/excuse
func (h *AttendanceHandler) Excuse(c *gin.Context) {
	adminID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.ExcuseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	att, err := h.attendanceSvc.Excuse(c.Request.Context(), c.Param("id"), adminID, req.Notes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, att)
}

// RevokeExcuse 撤销请假
// DELETE /api/v1/attendance/:id/excuse
func (h *AttendanceHandler) RevokeExcuse(c *gin.Context) {
	adminID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	att, err := h.attendanceSvc.RevokeExcuse(c.Request.Context(), c.Param("id"), adminID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, att)
}

// List 考勤分页列表
// GET /api/v1/attendance?period_id=&user_id=&page=&page_size=
func (h *AttendanceHandler) List(c *gin.Context) {
	var q dto.AttendanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.attendanceSvc.List(c.Request.Context(), &q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OKPage(c, list, total, q.GetPage(), q.GetPageSize())
}

// Review 待审核的缺勤、迟到、早退与放弃记录
// GET /api/v1/periods/:id/attendance/review
func (h *AttendanceHandler) Review(c *gin.Context) {
	list, err := h.attendanceSvc.ListForReview(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Stats 考勤统计；user_id 为空时统计整个周期
// GET /api/v1/periods/:id/attendance/stats?user_id=
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.attendanceSvc.Stats(c.Request.Context(), c.Param("id"), c.Query("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, stats)
}

// MyStats 当前用户的考勤统计
// GET /api/v1/periods/:id/attendance/my-stats
func (h *AttendanceHandler) MyStats(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	stats, err := h.attendanceSvc.Stats(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, stats)
}
