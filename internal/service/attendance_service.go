package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/internal/scheduling"
	"hums/backend/pkg/calendar"
	apperrors "hums/backend/pkg/errors"
	"hums/backend/pkg/metrics"
)

// ── 考勤模块业务错误 ──

var (
	ErrAttendanceNotFound  = apperrors.NotFound(40406, "考勤记录不存在")
	ErrAttendanceProtected = apperrors.BadRequest(40020, "考勤记录处于受保护状态，不能修改")
	ErrNotClockedIn        = apperrors.BadRequest(40021, "尚未签到，不能签退")
	ErrNotExcused          = apperrors.BadRequest(40022, "该考勤记录未请假")
	ErrInvalidClockTime    = apperrors.BadRequest(40024, "打卡时间格式无效，应为 RFC3339")
)

// AttendanceService 考勤业务接口
type AttendanceService interface {
	// 打卡钩子，由门禁/签到终端调用
	RecordTimeIn(ctx context.Context, occurrenceID string, req *dto.TimeClockRequest) (*dto.AttendanceResponse, error)
	RecordTimeOut(ctx context.Context, occurrenceID string, req *dto.TimeClockRequest) (*dto.AttendanceResponse, error)

	// MarkMissedShifts 把计划结束时刻已过仍为 upcoming 的记录标记为缺勤，返回标记数
	MarkMissedShifts(ctx context.Context, now time.Time) (int, error)

	Excuse(ctx context.Context, attendanceID, adminID, notes string) (*dto.AttendanceResponse, error)
	RevokeExcuse(ctx context.Context, attendanceID, adminID string) (*dto.AttendanceResponse, error)

	List(ctx context.Context, q *dto.AttendanceQuery) ([]dto.AttendanceResponse, int64, error)
	ListForReview(ctx context.Context, periodID string) ([]dto.AttendanceResponse, error)
	Stats(ctx context.Context, periodID, userID string) (*scheduling.AttendanceStats, error)
}

type attendanceService struct {
	repo     *repository.Repository
	cal      *calendar.Calendar
	settings SettingsService
	metrics  metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, cal *calendar.Calendar, settings SettingsService, collector metrics.Collector, logger *zap.Logger, now func() time.Time) AttendanceService {
	if now == nil {
		now = time.Now
	}
	return &attendanceService{
		repo:     repo,
		cal:      cal,
		settings: settings,
		metrics:  collector,
		logger:   logger,
		now:      now,
	}
}

// ════════════════════════════════════════════════════════════
// 打卡
// ════════════════════════════════════════════════════════════

func (s *attendanceService) RecordTimeIn(ctx context.Context, occurrenceID string, req *dto.TimeClockRequest) (*dto.AttendanceResponse, error) {
	at, err := s.clockTime(req.At)
	if err != nil {
		return nil, err
	}
	lateGrace, _ := s.settings.Grace(ctx)
	return s.clock(ctx, occurrenceID, req.UserID, func(a *model.ShiftAttendance, rec *scheduling.AttendanceRecord) error {
		late := scheduling.IsLate(rec.ScheduledStart, at, lateGrace)
		rec.Apply(scheduling.StatusChange{
			Status:        scheduling.StatusPresent,
			TimeIn:        &at,
			DidArriveLate: &late,
		})
		return nil
	})
}

func (s *attendanceService) RecordTimeOut(ctx context.Context, occurrenceID string, req *dto.TimeClockRequest) (*dto.AttendanceResponse, error) {
	at, err := s.clockTime(req.At)
	if err != nil {
		return nil, err
	}
	_, earlyGrace := s.settings.Grace(ctx)
	return s.clock(ctx, occurrenceID, req.UserID, func(a *model.ShiftAttendance, rec *scheduling.AttendanceRecord) error {
		if rec.Status != scheduling.StatusPresent || rec.TimeIn == nil {
			return ErrNotClockedIn
		}
		early := scheduling.IsEarly(rec.ScheduledEnd, at, earlyGrace)
		rec.Apply(scheduling.StatusChange{
			Status:        scheduling.StatusPresent,
			TimeOut:       &at,
			DidLeaveEarly: &early,
		})
		return nil
	})
}

// clock 在事务内读取考勤行与排班时段，受保护状态拒绝修改
func (s *attendanceService) clock(ctx context.Context, occurrenceID, userID string, mutate func(*model.ShiftAttendance, *scheduling.AttendanceRecord) error) (*dto.AttendanceResponse, error) {
	var (
		a   *model.ShiftAttendance
		rec scheduling.AttendanceRecord
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		occ, err := tx.Occurrence.GetByID(ctx, occurrenceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOccurrenceNotFound
			}
			return err
		}
		a, err = tx.Attendance.Get(ctx, occurrenceID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttendanceNotFound.WithDetail("用户 %s 未被分配到该班次", userID)
			}
			return err
		}
		start, end, err := occurrenceWindow(s.cal, occ, occ.ShiftSchedule)
		if err != nil {
			return err
		}
		rec = toRecord(a, start, end)
		if rec.Status.Protected() {
			return ErrAttendanceProtected.WithDetail("当前状态 %s", rec.Status)
		}
		if err := mutate(a, &rec); err != nil {
			return err
		}
		applyRecord(a, rec)
		a.UpdatedBy = &userID
		a.Occurrence = occ
		return tx.Attendance.Update(ctx, a)
	})
	if err != nil {
		logFailure(s.logger, "打卡失败", err, zap.String("occurrence_id", occurrenceID), zap.String("user_id", userID))
		return nil, err
	}
	resp := toAttendanceResponse(a, rec)
	return &resp, nil
}

func (s *attendanceService) clockTime(at *string) (time.Time, error) {
	if at == nil || *at == "" {
		return s.now(), nil
	}
	t, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return time.Time{}, ErrInvalidClockTime.WithDetail("%q", *at)
	}
	return t, nil
}

// ════════════════════════════════════════════════════════════
// MarkMissedShifts — 后台缺勤标记
// ════════════════════════════════════════════════════════════

func (s *attendanceService) MarkMissedShifts(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.repo.Attendance.ListUpcomingStartedBefore(ctx, now)
	if err != nil {
		s.logger.Error("查询待标记考勤失败", zap.Error(err))
		return 0, err
	}

	ids := make([]string, 0, len(candidates))
	for i := range candidates {
		a := &candidates[i]
		if a.Occurrence == nil || a.Occurrence.ShiftSchedule == nil {
			continue
		}
		start, end, err := occurrenceWindow(s.cal, a.Occurrence, a.Occurrence.ShiftSchedule)
		if err != nil {
			s.logger.Warn("排班时段无法计算，跳过", zap.String("shift_attendance_id", a.ShiftAttendanceID), zap.Error(err))
			continue
		}
		if toRecord(a, start, end).ShouldMarkAbsent(now) {
			ids = append(ids, a.ShiftAttendanceID)
		}
	}

	n, err := s.repo.Attendance.MarkAbsent(ctx, ids)
	if err != nil {
		s.logger.Error("标记缺勤失败", zap.Int("candidates", len(ids)), zap.Error(err))
		return 0, err
	}
	s.metrics.RecordAbsentMarked(int(n))
	if n > 0 {
		s.logger.Info("已标记缺勤", zap.Int64("count", n))
	}
	return int(n), nil
}

// ════════════════════════════════════════════════════════════
// Excuse / RevokeExcuse — 管理员请假审批
// ════════════════════════════════════════════════════════════

func (s *attendanceService) Excuse(ctx context.Context, attendanceID, adminID, notes string) (*dto.AttendanceResponse, error) {
	return s.review(ctx, attendanceID, adminID, "请假审批失败", func(a *model.ShiftAttendance, rec *scheduling.AttendanceRecord) error {
		if rec.Status == scheduling.StatusDropped || rec.Status == scheduling.StatusDroppedMakeup {
			return ErrAttendanceProtected.WithDetail("已放弃的班次不能请假")
		}
		rec.Apply(scheduling.StatusChange{Status: scheduling.StatusExcused})
		now := s.now()
		a.ExcusedBy = &adminID
		a.ExcusedAt = &now
		if notes != "" {
			a.ExcuseNotes = &notes
		}
		return nil
	})
}

// RevokeExcuse 撤销请假：班次已结束恢复为缺勤，否则恢复为 upcoming
func (s *attendanceService) RevokeExcuse(ctx context.Context, attendanceID, adminID string) (*dto.AttendanceResponse, error) {
	return s.review(ctx, attendanceID, adminID, "撤销请假失败", func(a *model.ShiftAttendance, rec *scheduling.AttendanceRecord) error {
		if rec.Status != scheduling.StatusExcused {
			return ErrNotExcused
		}
		target := scheduling.StatusUpcoming
		if !s.now().Before(rec.ScheduledEnd) {
			target = scheduling.StatusAbsent
		}
		rec.Apply(scheduling.StatusChange{Status: target})
		a.ExcusedBy, a.ExcusedAt, a.ExcuseNotes = nil, nil, nil
		return nil
	})
}

func (s *attendanceService) review(ctx context.Context, attendanceID, adminID, failMsg string, mutate func(*model.ShiftAttendance, *scheduling.AttendanceRecord) error) (*dto.AttendanceResponse, error) {
	var (
		a   *model.ShiftAttendance
		rec scheduling.AttendanceRecord
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		a, err = tx.Attendance.GetByID(ctx, attendanceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttendanceNotFound
			}
			return err
		}
		rec = s.recordOf(a)
		if err := mutate(a, &rec); err != nil {
			return err
		}
		applyRecord(a, rec)
		a.UpdatedBy = &adminID
		return tx.Attendance.Update(ctx, a)
	})
	if err != nil {
		logFailure(s.logger, failMsg, err, zap.String("shift_attendance_id", attendanceID))
		return nil, err
	}
	s.logger.Info("考勤状态已更新",
		zap.String("shift_attendance_id", attendanceID),
		zap.String("status", a.Status),
		zap.String("admin_id", adminID))
	resp := toAttendanceResponse(a, rec)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// 查询与统计
// ════════════════════════════════════════════════════════════

func (s *attendanceService) List(ctx context.Context, q *dto.AttendanceQuery) ([]dto.AttendanceResponse, int64, error) {
	rows, err := s.repo.Attendance.ListByPeriod(ctx, q.PeriodID, q.UserID)
	if err != nil {
		s.logger.Error("查询考勤列表失败", zap.String("period_id", q.PeriodID), zap.Error(err))
		return nil, 0, err
	}
	total := int64(len(rows))
	from := min(q.GetOffset(), len(rows))
	to := min(from+q.GetPageSize(), len(rows))

	list := make([]dto.AttendanceResponse, 0, to-from)
	for i := from; i < to; i++ {
		list = append(list, toAttendanceResponse(&rows[i], s.recordOf(&rows[i])))
	}
	return list, total, nil
}

func (s *attendanceService) ListForReview(ctx context.Context, periodID string) ([]dto.AttendanceResponse, error) {
	rows, err := s.repo.Attendance.ListByPeriod(ctx, periodID, "")
	if err != nil {
		s.logger.Error("查询待复核考勤失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	list := make([]dto.AttendanceResponse, 0)
	for i := range rows {
		rec := s.recordOf(&rows[i])
		if rec.NeedsReview() {
			list = append(list, toAttendanceResponse(&rows[i], rec))
		}
	}
	return list, nil
}

func (s *attendanceService) Stats(ctx context.Context, periodID, userID string) (*scheduling.AttendanceStats, error) {
	rows, err := s.repo.Attendance.ListByPeriod(ctx, periodID, userID)
	if err != nil {
		s.logger.Error("查询考勤统计失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	records := make([]scheduling.AttendanceRecord, len(rows))
	for i := range rows {
		records[i] = s.recordOf(&rows[i])
	}
	stats := scheduling.ComputeStats(records, s.now())
	return &stats, nil
}

// ── 辅助函数 ──

// recordOf 依赖预加载的 Occurrence.ShiftSchedule 计算排班时段，缺失时时段为零值
func (s *attendanceService) recordOf(a *model.ShiftAttendance) scheduling.AttendanceRecord {
	var start, end time.Time
	if a.Occurrence != nil && a.Occurrence.ShiftSchedule != nil {
		start, end, _ = occurrenceWindow(s.cal, a.Occurrence, a.Occurrence.ShiftSchedule)
	}
	return toRecord(a, start, end)
}

func toRecord(a *model.ShiftAttendance, start, end time.Time) scheduling.AttendanceRecord {
	return scheduling.AttendanceRecord{
		Status:         scheduling.AttendanceStatus(a.Status),
		IsExcused:      a.IsExcused,
		IsMakeup:       a.IsMakeup,
		DidArriveLate:  a.DidArriveLate,
		DidLeaveEarly:  a.DidLeaveEarly,
		TimeIn:         a.TimeIn,
		TimeOut:        a.TimeOut,
		ScheduledStart: start,
		ScheduledEnd:   end,
	}
}

// applyRecord 将状态机结果写回存储模型；IsMakeup 不随状态变化
func applyRecord(a *model.ShiftAttendance, rec scheduling.AttendanceRecord) {
	a.Status = string(rec.Status)
	a.IsExcused = rec.IsExcused
	a.DidArriveLate = rec.DidArriveLate
	a.DidLeaveEarly = rec.DidLeaveEarly
	a.TimeIn = rec.TimeIn
	a.TimeOut = rec.TimeOut
}
