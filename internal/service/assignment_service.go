package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/access"
	"hums/backend/internal/dto"
	"hums/backend/internal/event"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/internal/scheduling"
	"hums/backend/pkg/calendar"
	apperrors "hums/backend/pkg/errors"
	"hums/backend/pkg/metrics"
)

// ── 分配模块业务错误 ──

var (
	ErrOccurrenceNotFound = apperrors.NotFound(40404, "排班实例不存在")
	ErrUserNotFound       = apperrors.NotFound(40405, "用户不存在")

	ErrAlreadyRegistered    = apperrors.BadRequest(40010, "已报名该排班模板")
	ErrNotRegistered        = apperrors.BadRequest(40011, "未报名该排班模板")
	ErrNoAvailableSlot      = apperrors.BadRequest(40012, "排班名额已满")
	ErrTimeConflict         = apperrors.BadRequest(40013, "与已有排班时间冲突")
	ErrAlreadyAssigned      = apperrors.BadRequest(40014, "该班次已被认领")
	ErrNotAssigned          = apperrors.BadRequest(40015, "当前用户未持有该班次")
	ErrOccurrenceStarted    = apperrors.BadRequest(40016, "班次已开始")
	ErrMakeupSameOccurrence = apperrors.BadRequest(40017, "补班班次不能与放弃的班次相同")
	ErrMakeupPeriodMismatch = apperrors.BadRequest(40018, "补班班次必须属于同一排班周期")

	ErrSelfAssignDisabled   = apperrors.Forbidden(40301, "该班次类型不允许自助报名")
	ErrModifyWindowClosed   = apperrors.Forbidden(40302, "当前不在排班修改窗口内")
	ErrSignupWindowClosed   = apperrors.Forbidden(40303, "当前不在排班报名窗口内")
	ErrRoleRequirement      = apperrors.Forbidden(40304, "不满足班次类型的角色要求")
	ErrPeriodRoleIneligible = apperrors.Forbidden(40305, "用户角色不具备该周期的排班资格")
)

// 分配操作名，同时用作指标标签
const (
	opRegister        = "register"
	opUnregister      = "unregister"
	opPickup          = "pickup"
	opDrop            = "drop"
	opDropMakeup      = "drop_makeup"
	opForceRegister   = "force_register"
	opForceUnregister = "force_unregister"
)

// AssignmentService 排班分配状态机。每个操作在单个事务内先加锁、再校验、再写入，
// 事务提交后发布报名变更事件。
type AssignmentService interface {
	Register(ctx context.Context, p access.Principal, scheduleID string) (*dto.OperationResult, error)
	Unregister(ctx context.Context, p access.Principal, scheduleID string) (*dto.OperationResult, error)
	Pickup(ctx context.Context, p access.Principal, occurrenceID string) (*dto.OperationResult, error)
	Drop(ctx context.Context, p access.Principal, occurrenceID, notes string) (*dto.OperationResult, error)
	DropMakeup(ctx context.Context, p access.Principal, occurrenceID string, req *dto.DropMakeupRequest) (*dto.OperationResult, error)
	ForceRegister(ctx context.Context, p access.Principal, scheduleID, userID string) (*dto.OperationResult, error)
	ForceUnregister(ctx context.Context, p access.Principal, scheduleID, userID string) (*dto.OperationResult, error)
}

type assignmentService struct {
	repo    *repository.Repository
	cal     *calendar.Calendar
	access  access.PeriodAccess
	events  event.Publisher
	metrics metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(
	repo *repository.Repository,
	cal *calendar.Calendar,
	periodAccess access.PeriodAccess,
	events event.Publisher,
	collector metrics.Collector,
	logger *zap.Logger,
	now func() time.Time,
) AssignmentService {
	if now == nil {
		now = time.Now
	}
	return &assignmentService{
		repo:    repo,
		cal:     cal,
		access:  periodAccess,
		events:  events,
		metrics: collector,
		logger:  logger,
		now:     now,
	}
}

// scheduleScope 模板级操作在锁内读取到的上下文
type scheduleScope struct {
	sched    *model.ShiftSchedule
	st       *model.ShiftType
	period   *model.Period
	siblings []model.ShiftSchedule
}

// occurrenceScope 实例级操作在锁内读取到的上下文
type occurrenceScope struct {
	occ    *model.ShiftOccurrence
	sched  *model.ShiftSchedule
	st     *model.ShiftType
	period *model.Period
	start  time.Time
	end    time.Time
}

// ════════════════════════════════════════════════════════════
// Register / Unregister — 自助报名，作用于模板的全部未来实例
// ════════════════════════════════════════════════════════════

// Register 自助报名模板。只占用尚未开始的实例，已开始或已结束的实例保留原有记录；
// 个别时刻已被单次顶班占满时跳过该时刻。
func (s *assignmentService) Register(ctx context.Context, p access.Principal, scheduleID string) (*dto.OperationResult, error) {
	var scope *scheduleScope
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if scope, err = s.lockSchedule(ctx, tx, p, scheduleID); err != nil {
			return err
		}
		now := s.now()
		if err := s.checkSelfService(scope.st, scope.period, p.RoleIDs, now); err != nil {
			return err
		}
		return s.registerLocked(ctx, tx, scope, p.UserID, true, now)
	})
	return s.finish(opRegister, p.UserID, err, scheduleEvent(event.TypeRegister, scope, p.UserID))
}

func (s *assignmentService) Unregister(ctx context.Context, p access.Principal, scheduleID string) (*dto.OperationResult, error) {
	var scope *scheduleScope
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if scope, err = s.lockSchedule(ctx, tx, p, scheduleID); err != nil {
			return err
		}
		now := s.now()
		if err := s.checkSelfService(scope.st, scope.period, p.RoleIDs, now); err != nil {
			return err
		}
		return s.unregisterLocked(ctx, tx, scope, p.UserID, now)
	})
	return s.finish(opUnregister, p.UserID, err, scheduleEvent(event.TypeUnregister, scope, p.UserID))
}

// ════════════════════════════════════════════════════════════
// ForceRegister / ForceUnregister — 管理员代为报名
// ════════════════════════════════════════════════════════════

func (s *assignmentService) ForceRegister(ctx context.Context, p access.Principal, scheduleID, userID string) (*dto.OperationResult, error) {
	var scope *scheduleScope
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if scope, err = s.lockSchedule(ctx, tx, p, scheduleID); err != nil {
			return err
		}
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !user.IsSystemUser && !scope.period.HasEligibleRole(user.RoleIDs) {
			return ErrPeriodRoleIneligible.WithDetail("用户 %s 不持有周期 %s 的任一角色", user.Name, scope.period.Name)
		}
		return s.registerLocked(ctx, tx, scope, userID, false, s.now())
	})
	return s.finish(opForceRegister, userID, err, scheduleEvent(event.TypeRegister, scope, userID))
}

func (s *assignmentService) ForceUnregister(ctx context.Context, p access.Principal, scheduleID, userID string) (*dto.OperationResult, error) {
	var scope *scheduleScope
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if scope, err = s.lockSchedule(ctx, tx, p, scheduleID); err != nil {
			return err
		}
		if _, err := loadUser(ctx, tx, userID); err != nil {
			return err
		}
		return s.unregisterLocked(ctx, tx, scope, userID, s.now())
	})
	return s.finish(opForceUnregister, userID, err, scheduleEvent(event.TypeUnregister, scope, userID))
}

// registerLocked 在同类型模板已加锁的前提下完成报名。
// selfService 为 false 时跳过时间冲突与均衡校验，名额上限始终生效。
func (s *assignmentService) registerLocked(ctx context.Context, tx *repository.Repository, scope *scheduleScope, userID string, selfService bool, now time.Time) error {
	sched := scope.sched
	registered, err := tx.ShiftSchedule.IsRegistered(ctx, sched.ShiftScheduleID, userID)
	if err != nil {
		return err
	}
	if registered {
		return ErrAlreadyRegistered
	}

	counts, err := tx.ShiftSchedule.CountAssignments(ctx, scheduleIDs(scope.siblings))
	if err != nil {
		return err
	}
	filled := counts[sched.ShiftScheduleID]
	if filled >= sched.SlotCount {
		return ErrNoAvailableSlot.WithDetail("周%d %s 已有 %d/%d 人", sched.DayOfWeek, sched.StartTime, filled, sched.SlotCount)
	}

	if selfService {
		mine, err := tx.ShiftSchedule.ListRegisteredByUser(ctx, userID, scope.period.PeriodID)
		if err != nil {
			return err
		}
		if c := conflictsWithRegistered(sched, mine); c != nil {
			return ErrTimeConflict.WithDetail("与周%d %s-%s 的已报名班次重叠", c.DayOfWeek, c.StartTime, c.EndTime)
		}

		loads := make([]scheduling.ScheduleLoad, len(scope.siblings))
		for i := range scope.siblings {
			loads[i] = toLoad(&scope.siblings[i], counts[scope.siblings[i].ShiftScheduleID])
		}
		if err := scheduling.CheckBalancing(balancingRules(scope.st), toLoad(sched, filled), loads); err != nil {
			return err
		}
	}

	if err := tx.ShiftSchedule.AddAssignment(ctx, sched.ShiftScheduleID, userID); err != nil {
		if repository.IsUniqueViolation(err) {
			return ErrAlreadyRegistered
		}
		return err
	}

	occs, err := tx.Occurrence.LockBySchedule(ctx, sched.ShiftScheduleID)
	if err != nil {
		return err
	}
	fillRes, err := fillFutureSlots(ctx, tx, occs, []string{userID}, now)
	if err != nil {
		return err
	}
	if len(fillRes.Full) > 0 {
		// 名额按模板报名人数计算，单次顶班可能已占满个别时刻
		s.logger.Debug("部分时刻槽位已满，未分配",
			zap.String("shift_schedule_id", sched.ShiftScheduleID),
			zap.String("user_id", userID),
			zap.Times("full_timestamps", fillRes.Full))
	}
	return nil
}

// unregisterLocked 解除报名，并释放用户持有的该模板未来实例
func (s *assignmentService) unregisterLocked(ctx context.Context, tx *repository.Repository, scope *scheduleScope, userID string, now time.Time) error {
	removed, err := tx.ShiftSchedule.RemoveAssignment(ctx, scope.sched.ShiftScheduleID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotRegistered
	}

	occs, err := tx.Occurrence.LockBySchedule(ctx, scope.sched.ShiftScheduleID)
	if err != nil {
		return err
	}
	for i := range occs {
		o := &occs[i]
		if o.AssigneeID() != userID || !o.Timestamp.After(now) {
			continue
		}
		if _, err := tx.Occurrence.Unassign(ctx, o.ShiftOccurrenceID, userID); err != nil {
			return err
		}
		if err := tx.Attendance.Delete(ctx, o.ShiftOccurrenceID, userID); err != nil {
			return err
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// Pickup / Drop — 单次实例
// ════════════════════════════════════════════════════════════

func (s *assignmentService) Pickup(ctx context.Context, p access.Principal, occurrenceID string) (*dto.OperationResult, error) {
	var scope *occurrenceScope
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if scope, err = s.lockOccurrence(ctx, tx, p, occurrenceID); err != nil {
			return err
		}
		if err := s.checkPickup(scope, p, s.now()); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, tx, p.UserID, scope, ""); err != nil {
			return err
		}
		return assignOccurrence(ctx, tx, scope.occ, p.UserID, false)
	})
	return s.finish(opPickup, p.UserID, err, occurrenceEvent(event.TypeRegister, scope, p.UserID))
}

func (s *assignmentService) Drop(ctx context.Context, p access.Principal, occurrenceID, notes string) (*dto.OperationResult, error) {
	var scope *occurrenceScope
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if scope, err = s.lockOccurrence(ctx, tx, p, occurrenceID); err != nil {
			return err
		}
		if err := s.checkDrop(scope, p.UserID, s.now()); err != nil {
			return err
		}
		return s.release(ctx, tx, scope, p.UserID, scheduling.StatusDropped, notes)
	})
	return s.finish(opDrop, p.UserID, err, occurrenceEvent(event.TypeUnregister, scope, p.UserID))
}

// ════════════════════════════════════════════════════════════
// DropMakeup — 放弃一次班次并在同一周期内认领另一次
// ════════════════════════════════════════════════════════════

func (s *assignmentService) DropMakeup(ctx context.Context, p access.Principal, occurrenceID string, req *dto.DropMakeupRequest) (*dto.OperationResult, error) {
	if occurrenceID == req.MakeupOccurrenceID {
		return s.finish(opDropMakeup, p.UserID, ErrMakeupSameOccurrence)
	}

	var dropped, makeup *occurrenceScope
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 固定加锁顺序，避免两个方向相反的补班请求互相等待
		ids := []string{occurrenceID, req.MakeupOccurrenceID}
		sort.Strings(ids)
		scopes := make(map[string]*occurrenceScope, 2)
		for _, id := range ids {
			sc, err := s.lockOccurrence(ctx, tx, p, id)
			if err != nil {
				return err
			}
			scopes[id] = sc
		}
		dropped, makeup = scopes[occurrenceID], scopes[req.MakeupOccurrenceID]

		if dropped.period.PeriodID != makeup.period.PeriodID {
			return ErrMakeupPeriodMismatch.WithDetail("%s ≠ %s", dropped.period.Name, makeup.period.Name)
		}
		now := s.now()
		if err := s.checkDrop(dropped, p.UserID, now); err != nil {
			return err
		}
		if err := s.checkPickup(makeup, p, now); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, tx, p.UserID, makeup, dropped.occ.ShiftOccurrenceID); err != nil {
			return err
		}

		if err := s.release(ctx, tx, dropped, p.UserID, scheduling.StatusDroppedMakeup, req.Notes); err != nil {
			return err
		}
		return assignOccurrence(ctx, tx, makeup.occ, p.UserID, true)
	})
	return s.finish(opDropMakeup, p.UserID, err,
		occurrenceEvent(event.TypeUnregister, dropped, p.UserID),
		occurrenceEvent(event.TypeRegister, makeup, p.UserID))
}

// ── 加锁与校验 ──

// lockSchedule 锁定目标模板所在班次类型的全部模板，再读取类型与周期并校验周期访问权限
func (s *assignmentService) lockSchedule(ctx context.Context, tx *repository.Repository, p access.Principal, scheduleID string) (*scheduleScope, error) {
	sched, err := tx.ShiftSchedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	siblings, err := tx.ShiftSchedule.LockByShiftType(ctx, sched.ShiftTypeID)
	if err != nil {
		return nil, err
	}
	scope := &scheduleScope{siblings: siblings}
	for i := range siblings {
		if siblings[i].ShiftScheduleID == scheduleID {
			scope.sched = &siblings[i]
		}
	}
	if scope.sched == nil {
		return nil, ErrScheduleNotFound
	}

	if scope.st, scope.period, err = loadTypeAndPeriod(ctx, tx, sched.ShiftTypeID); err != nil {
		return nil, err
	}
	scope.sched.ShiftType = scope.st
	if err := s.access.CanAccessPeriod(p, scope.period); err != nil {
		return nil, err
	}
	return scope, nil
}

// lockOccurrence 锁定实例行后读取其模板、类型与周期并校验周期访问权限
func (s *assignmentService) lockOccurrence(ctx context.Context, tx *repository.Repository, p access.Principal, occurrenceID string) (*occurrenceScope, error) {
	occ, err := tx.Occurrence.GetForUpdate(ctx, occurrenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOccurrenceNotFound
		}
		return nil, err
	}
	sched, err := tx.ShiftSchedule.GetByID(ctx, occ.ShiftScheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	st, period, err := loadTypeAndPeriod(ctx, tx, sched.ShiftTypeID)
	if err != nil {
		return nil, err
	}
	sched.ShiftType = st
	occ.ShiftSchedule = sched
	if err := s.access.CanAccessPeriod(p, period); err != nil {
		return nil, err
	}
	start, end, err := occurrenceWindow(s.cal, occ, sched)
	if err != nil {
		return nil, err
	}
	return &occurrenceScope{occ: occ, sched: sched, st: st, period: period, start: start, end: end}, nil
}

func (s *assignmentService) checkSelfService(st *model.ShiftType, period *model.Period, roleIDs []string, now time.Time) error {
	if !st.CanSelfAssign {
		return ErrSelfAssignDisabled.WithDetail("班次类型 %s", st.Name)
	}
	if !period.SignupWindowOpen(now) {
		return ErrSignupWindowClosed.WithDetail("周期 %s", period.Name)
	}
	if !st.MeetsRoleRequirement(roleIDs) {
		return ErrRoleRequirement.WithDetail("班次类型 %s 要求 %s", st.Name, st.RoleRequirement)
	}
	return nil
}

func (s *assignmentService) checkPickup(sc *occurrenceScope, p access.Principal, now time.Time) error {
	if !sc.st.CanSelfAssign {
		return ErrSelfAssignDisabled.WithDetail("班次类型 %s", sc.st.Name)
	}
	if !sc.occ.Timestamp.After(now) {
		return ErrOccurrenceStarted.WithDetail("开始于 %s", formatTime(sc.occ.Timestamp))
	}
	if !sc.period.ModifyWindowOpen(now) {
		return ErrModifyWindowClosed.WithDetail("周期 %s", sc.period.Name)
	}
	if !sc.st.MeetsRoleRequirement(p.RoleIDs) {
		return ErrRoleRequirement.WithDetail("班次类型 %s 要求 %s", sc.st.Name, sc.st.RoleRequirement)
	}
	if holder := sc.occ.AssigneeID(); holder != "" {
		if holder == p.UserID {
			return ErrAlreadyAssigned.WithDetail("当前用户已持有该班次")
		}
		return ErrAlreadyAssigned
	}
	return nil
}

func (s *assignmentService) checkDrop(sc *occurrenceScope, userID string, now time.Time) error {
	if sc.occ.AssigneeID() != userID {
		return ErrNotAssigned
	}
	if !sc.occ.Timestamp.After(now) {
		return ErrOccurrenceStarted.WithDetail("开始于 %s", formatTime(sc.occ.Timestamp))
	}
	if !sc.period.ModifyWindowOpen(now) {
		return ErrModifyWindowClosed.WithDetail("周期 %s", sc.period.Name)
	}
	return nil
}

// checkOverlap 目标实例与用户已持有实例（excludeID 除外）的实际时间段不得重叠
func (s *assignmentService) checkOverlap(ctx context.Context, tx *repository.Repository, userID string, target *occurrenceScope, excludeID string) error {
	// 跨夜班次最长不超过 24 小时
	held, err := tx.Occurrence.ListAssignedToUser(ctx, userID, target.start.Add(-24*time.Hour), target.end)
	if err != nil {
		return err
	}
	for i := range held {
		o := &held[i]
		if o.ShiftOccurrenceID == excludeID || o.ShiftOccurrenceID == target.occ.ShiftOccurrenceID || o.ShiftSchedule == nil {
			continue
		}
		start, end, err := occurrenceWindow(s.cal, o, o.ShiftSchedule)
		if err != nil {
			return err
		}
		if overlapsInstant(target.start, target.end, start, end) {
			return ErrTimeConflict.WithDetail("与 %s 开始的已认领班次重叠", formatTime(start))
		}
	}
	return nil
}

// release 释放用户持有的实例，并把考勤改为放弃类状态
func (s *assignmentService) release(ctx context.Context, tx *repository.Repository, sc *occurrenceScope, userID string, status scheduling.AttendanceStatus, notes string) error {
	ok, err := tx.Occurrence.Unassign(ctx, sc.occ.ShiftOccurrenceID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAssigned
	}
	sc.occ.Assignee = nil

	a, err := tx.Attendance.Get(ctx, sc.occ.ShiftOccurrenceID, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		a = &model.ShiftAttendance{ShiftOccurrenceID: sc.occ.ShiftOccurrenceID, UserID: userID, Status: string(scheduling.StatusUpcoming)}
	}
	rec := toRecord(a, sc.start, sc.end)
	rec.Apply(scheduling.StatusChange{Status: status})
	applyRecord(a, rec)
	if notes != "" {
		a.DroppedNotes = &notes
	} else {
		a.DroppedNotes = nil
	}
	return tx.Attendance.Upsert(ctx, a)
}

// finish 记录指标，成功时依次发布事件并返回最后一个事件的追踪 ID
func (s *assignmentService) finish(op, userID string, err error, events ...*event.Event) (*dto.OperationResult, error) {
	if err != nil {
		result := "rejected"
		if apperrors.KindOf(err) == apperrors.KindInternal {
			result = "error"
		}
		s.metrics.RecordAssignment(op, result)
		logFailure(s.logger, "排班分配操作失败", err, zap.String("op", op), zap.String("user_id", userID))
		return nil, err
	}

	s.metrics.RecordAssignment(op, "success")
	res := &dto.OperationResult{Success: true}
	for _, e := range events {
		if e == nil {
			continue
		}
		published := s.events.Publish(*e)
		res.EventID = published.ID
	}
	s.logger.Info("排班分配操作完成", zap.String("op", op), zap.String("user_id", userID), zap.String("event_id", res.EventID))
	return res, nil
}

func scheduleEvent(t event.Type, scope *scheduleScope, userID string) *event.Event {
	if scope == nil || scope.period == nil {
		return nil
	}
	return &event.Event{Type: t, ShiftScheduleID: scope.sched.ShiftScheduleID, UserID: userID, PeriodID: scope.period.PeriodID}
}

func occurrenceEvent(t event.Type, scope *occurrenceScope, userID string) *event.Event {
	if scope == nil || scope.period == nil {
		return nil
	}
	return &event.Event{Type: t, ShiftScheduleID: scope.sched.ShiftScheduleID, UserID: userID, PeriodID: scope.period.PeriodID}
}

func loadUser(ctx context.Context, tx *repository.Repository, userID string) (*model.User, error) {
	user, err := tx.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
