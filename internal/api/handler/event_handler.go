package handler

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/event"
	"hums/backend/internal/service"
)

// EventSubscriber 事件订阅端，*event.Broker 实现
type EventSubscriber interface {
	Subscribe(ctx context.Context, periodID, lastEventID string) (<-chan event.Event, func())
}

// EventHandler 按周期推送报名变更（Server-Sent Events）
type EventHandler struct {
	periodSvc service.PeriodService
	events    EventSubscriber
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventHandler 创建 EventHandler；heartbeat <= 0 时使用 25 秒
func NewEventHandler(periodSvc service.PeriodService, events EventSubscriber, heartbeat time.Duration, logger *zap.Logger) *EventHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &EventHandler{periodSvc: periodSvc, events: events, heartbeat: heartbeat, logger: logger}
}

// Stream 订阅周期事件流
// GET /api/v1/periods/:id/events
//
// 断线重连时通过 Last-Event-ID 头（或 last_event_id 查询参数）补发缓存事件。
func (h *EventHandler) Stream(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	periodID := c.Param("id")
	if _, err := h.periodSvc.GetByID(c.Request.Context(), p, periodID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	lastEventID := c.GetHeader("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = c.Query("last_event_id")
	}

	ch, unsubscribe := h.events.Subscribe(c.Request.Context(), periodID, lastEventID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.logger.Debug("事件订阅已建立", zap.String("period_id", periodID), zap.String("user_id", p.UserID))

	c.Stream(func(w io.Writer) bool {
		select {
		case e, open := <-ch:
			if !open {
				return false
			}
			// id 行与随后的 event/data 组成同一条消息
			_, _ = io.WriteString(w, "id:"+e.ID+"\n")
			c.SSEvent(string(e.Type), e)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})

	h.logger.Debug("事件订阅已断开", zap.String("period_id", periodID), zap.String("user_id", p.UserID))
}
