package handler

import (
	"go.uber.org/zap"

	"hums/backend/config"
	"hums/backend/internal/event"
	"hums/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Period     *PeriodHandler
	ShiftType  *ShiftTypeHandler
	Schedule   *ScheduleHandler
	Assignment *AssignmentHandler
	Attendance *AttendanceHandler
	Event      *EventHandler
	Export     *ExportHandler
	Settings   *SettingsHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service, broker *event.Broker, logger *zap.Logger) *Handler {
	return &Handler{
		Period:     NewPeriodHandler(svc.Period, logger),
		ShiftType:  NewShiftTypeHandler(svc.ShiftType, logger),
		Schedule:   NewScheduleHandler(svc.Schedule, logger),
		Assignment: NewAssignmentHandler(svc.Assignment, logger),
		Attendance: NewAttendanceHandler(svc.Attendance, logger),
		Event:      NewEventHandler(svc.Period, broker, cfg.Schedule.EventHeartbeat, logger),
		Export:     NewExportHandler(svc.Export, svc.Period, logger),
		Settings:   NewSettingsHandler(svc.Settings, logger),
	}
}
