package handler

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/service"
	"hums/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
	periodSvc service.PeriodService
	logger    *zap.Logger
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, periodSvc service.PeriodService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, periodSvc: periodSvc, logger: logger}
}

// ExportSchedule 导出排班表
// GET /api/v1/periods/:id/export/schedule
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.attachment(c, filename, xlsxContentType, buf)
}

// ExportAttendance 导出考勤明细与统计
// GET /api/v1/periods/:id/export/attendance
func (h *ExportHandler) ExportAttendance(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.attachment(c, filename, xlsxContentType, buf)
}

// Calendar 当前用户在周期内的班次 ICS 订阅
// GET /api/v1/periods/:id/calendar.ics
func (h *ExportHandler) Calendar(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	periodID := c.Param("id")
	// 周期可见性与报名视图一致
	if _, err := h.periodSvc.GetByID(c.Request.Context(), p, periodID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	feed, err := h.exportSvc.ExportUserCalendar(c.Request.Context(), p.UserID, periodID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}

func (h *ExportHandler) attachment(c *gin.Context, filename, contentType string, buf *bytes.Buffer) {
	if buf == nil {
		response.InternalError(c)
		return
	}
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
