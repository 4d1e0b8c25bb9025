package service

import (
	"time"

	"go.uber.org/zap"

	"hums/backend/config"
	"hums/backend/internal/access"
	"hums/backend/internal/event"
	"hums/backend/internal/repository"
	"hums/backend/pkg/calendar"
	"hums/backend/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Period     PeriodService
	ShiftType  ShiftTypeService
	Schedule   ScheduleService
	Assignment AssignmentService
	Attendance AttendanceService
	Export     ExportService
	Settings   SettingsService
}

// Deps 组合根注入的依赖；Now 为空时使用 time.Now
type Deps struct {
	Config   *config.Config
	Repo     *repository.Repository
	Calendar *calendar.Calendar
	Events   event.Publisher
	Metrics  metrics.Collector
	Access   access.PeriodAccess
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewService 创建 Service 聚合
func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	collector := d.Metrics
	if collector == nil {
		collector = metrics.NewNop()
	}

	regen := &regenerator{cal: d.Calendar, metrics: collector, logger: d.Logger, now: now}
	settings := NewSettingsService(d.Repo, d.Config.Cache.SettingsTTL, SettingsDefaults{
		LateGraceMinutes:       d.Config.Schedule.LateGraceMinutes,
		EarlyLeaveGraceMinutes: d.Config.Schedule.EarlyLeaveGraceMinutes,
	}, d.Logger)

	return &Service{
		Period:     NewPeriodService(d.Repo, d.Calendar, d.Access, regen, d.Logger),
		ShiftType:  NewShiftTypeService(d.Repo, d.Access, d.Logger),
		Schedule:   NewScheduleService(d.Repo, d.Calendar, d.Access, regen, d.Logger),
		Assignment: NewAssignmentService(d.Repo, d.Calendar, d.Access, d.Events, collector, d.Logger, now),
		Attendance: NewAttendanceService(d.Repo, d.Calendar, settings, collector, d.Logger, now),
		Export:     NewExportService(d.Repo, d.Calendar, d.Logger, now),
		Settings:   settings,
	}
}
