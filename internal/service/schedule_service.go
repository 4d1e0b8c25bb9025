package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/access"
	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/internal/scheduling"
	"hums/backend/pkg/calendar"
	apperrors "hums/backend/pkg/errors"
)

// ── 排班模板模块业务错误 ──

var (
	ErrScheduleNotFound  = apperrors.NotFound(40403, "排班模板不存在")
	ErrScheduleInvalid   = apperrors.BadRequest(40002, "排班模板参数无效")
	ErrScheduleDuplicate = apperrors.BadRequest(40003, "同一班次类型下已存在相同星期与开始时间的模板")
)

// ScheduleService 排班模板业务接口
type ScheduleService interface {
	// 模板增删改，均触发实例重新生成
	Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID string) (*dto.ScheduleDetailResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleDetailResponse, error)
	Delete(ctx context.Context, id string) error

	// 列表（只读，非事务）
	ListForRegistration(ctx context.Context, p access.Principal, periodID string, filter dto.ScheduleFilter) ([]dto.RegistrationItem, error)
	ListForOverview(ctx context.Context, p access.Principal, periodID string, filter dto.ScheduleFilter) ([]dto.OverviewItem, error)
	ListMyOccurrences(ctx context.Context, userID, periodID string, from, to time.Time) ([]dto.OccurrenceResponse, error)
	ListPickupCandidates(ctx context.Context, p access.Principal, periodID string) ([]dto.OccurrenceResponse, error)
}

type scheduleService struct {
	repo   *repository.Repository
	cal    *calendar.Calendar
	access access.PeriodAccess
	regen  *regenerator
	logger *zap.Logger
	now    func() time.Time
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(repo *repository.Repository, cal *calendar.Calendar, periodAccess access.PeriodAccess, regen *regenerator, logger *zap.Logger) ScheduleService {
	return &scheduleService{
		repo:   repo,
		cal:    cal,
		access: periodAccess,
		regen:  regen,
		logger: logger,
		now:    regen.now,
	}
}

// ════════════════════════════════════════════════════════════
// Create
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID string) (*dto.ScheduleDetailResponse, error) {
	if req.DayOfWeek == nil {
		return nil, ErrScheduleInvalid.WithDetail("缺少 day_of_week")
	}
	start, end, err := normalizeShiftTimes(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if req.SlotCount < 1 {
		return nil, ErrScheduleInvalid.WithDetail("slot_count 至少为 1")
	}

	sched := &model.ShiftSchedule{
		ShiftScheduleID: uuid.NewString(),
		ShiftTypeID:     req.ShiftTypeID,
		DayOfWeek:       *req.DayOfWeek,
		StartTime:       start,
		EndTime:         end,
		SlotCount:       req.SlotCount,
	}
	sched.CreatedBy = &callerID
	sched.UpdatedBy = &callerID

	var res regenerateResult
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		st, period, err := loadTypeAndPeriod(ctx, tx, sched.ShiftTypeID)
		if err != nil {
			return err
		}
		dup, err := tx.ShiftSchedule.ExistsDuplicate(ctx, sched.ShiftTypeID, sched.DayOfWeek, sched.StartTime, "")
		if err != nil {
			return err
		}
		if dup {
			return ErrScheduleDuplicate.WithDetail("周%d %s", sched.DayOfWeek, sched.StartTime)
		}
		if err := tx.ShiftSchedule.Create(ctx, sched); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrScheduleDuplicate.WithDetail("周%d %s", sched.DayOfWeek, sched.StartTime)
			}
			return err
		}
		sched.ShiftType = st

		exceptions, err := tx.PeriodException.ListByPeriod(ctx, period.PeriodID)
		if err != nil {
			return err
		}
		res, err = s.regen.run(ctx, tx, sched, period, exceptions)
		return err
	})
	if err != nil {
		logFailure(s.logger, "创建排班模板失败", err, zap.String("shift_type_id", req.ShiftTypeID))
		return nil, err
	}

	s.logger.Info("排班模板已创建",
		zap.String("shift_schedule_id", sched.ShiftScheduleID),
		zap.Int("occurrences", res.Created))
	return s.buildDetail(ctx, sched, res)
}

// ════════════════════════════════════════════════════════════
// GetByID
// ════════════════════════════════════════════════════════════

func (s *scheduleService) GetByID(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	sched, err := s.repo.ShiftSchedule.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询排班模板失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.buildDetail(ctx, sched, regenerateResult{})
}

// ════════════════════════════════════════════════════════════
// Update
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleDetailResponse, error) {
	var (
		sched *model.ShiftSchedule
		res   regenerateResult
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		sched, err = tx.ShiftSchedule.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrScheduleNotFound
			}
			return err
		}
		if req.Version != sched.Version {
			return apperrors.ErrOptimisticLock
		}

		startTime, endTime := sched.StartTime, sched.EndTime
		if req.StartTime != nil {
			startTime = *req.StartTime
		}
		if req.EndTime != nil {
			endTime = *req.EndTime
		}
		if sched.StartTime, sched.EndTime, err = normalizeShiftTimes(startTime, endTime); err != nil {
			return err
		}
		if req.DayOfWeek != nil {
			sched.DayOfWeek = *req.DayOfWeek
		}
		if req.SlotCount != nil {
			if *req.SlotCount < 1 {
				return ErrScheduleInvalid.WithDetail("slot_count 至少为 1")
			}
			sched.SlotCount = *req.SlotCount
		}
		sched.UpdatedBy = &callerID

		dup, err := tx.ShiftSchedule.ExistsDuplicate(ctx, sched.ShiftTypeID, sched.DayOfWeek, sched.StartTime, sched.ShiftScheduleID)
		if err != nil {
			return err
		}
		if dup {
			return ErrScheduleDuplicate.WithDetail("周%d %s", sched.DayOfWeek, sched.StartTime)
		}
		if err := tx.ShiftSchedule.Update(ctx, sched); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrScheduleDuplicate.WithDetail("周%d %s", sched.DayOfWeek, sched.StartTime)
			}
			return err
		}

		st, period, err := loadTypeAndPeriod(ctx, tx, sched.ShiftTypeID)
		if err != nil {
			return err
		}
		sched.ShiftType = st
		exceptions, err := tx.PeriodException.ListByPeriod(ctx, period.PeriodID)
		if err != nil {
			return err
		}
		res, err = s.regen.run(ctx, tx, sched, period, exceptions)
		return err
	})
	if err != nil {
		logFailure(s.logger, "更新排班模板失败", err, zap.String("id", id))
		return nil, err
	}
	return s.buildDetail(ctx, sched, res)
}

// ════════════════════════════════════════════════════════════
// Delete — 外键级联删除实例、占用与考勤
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Delete(ctx context.Context, id string) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.ShiftSchedule.GetForUpdate(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrScheduleNotFound
			}
			return err
		}
		occs, err := tx.Occurrence.LockBySchedule(ctx, id)
		if err != nil {
			return err
		}
		ids := make([]string, len(occs))
		for i := range occs {
			ids[i] = occs[i].ShiftOccurrenceID
		}
		if _, err := tx.Occurrence.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
		return tx.ShiftSchedule.Delete(ctx, id)
	})
	if err != nil {
		logFailure(s.logger, "删除排班模板失败", err, zap.String("id", id))
		return err
	}
	s.logger.Info("排班模板已删除", zap.String("shift_schedule_id", id))
	return nil
}

// ════════════════════════════════════════════════════════════
// ListForRegistration — 报名视图，逐模板给出可报名性
// ════════════════════════════════════════════════════════════

func (s *scheduleService) ListForRegistration(ctx context.Context, p access.Principal, periodID string, filter dto.ScheduleFilter) ([]dto.RegistrationItem, error) {
	period, err := s.getAccessiblePeriod(ctx, p, periodID)
	if err != nil {
		return nil, err
	}

	// 均衡判定需要同班次类型的全部兄弟，先取全集再按筛选条件输出
	schedules, err := s.repo.ShiftSchedule.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("查询排班模板失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	counts, err := s.repo.ShiftSchedule.CountAssignments(ctx, scheduleIDs(schedules))
	if err != nil {
		return nil, err
	}
	mine, err := s.repo.ShiftSchedule.ListRegisteredByUser(ctx, p.UserID, periodID)
	if err != nil {
		return nil, err
	}
	registered := make(map[string]bool, len(mine))
	for _, m := range mine {
		registered[m.ShiftScheduleID] = true
	}

	loadsByType := make(map[string][]scheduling.ScheduleLoad)
	for i := range schedules {
		sc := &schedules[i]
		loadsByType[sc.ShiftTypeID] = append(loadsByType[sc.ShiftTypeID], toLoad(sc, counts[sc.ShiftScheduleID]))
	}

	signupOpen := period.SignupWindowOpen(s.now())
	result := make([]dto.RegistrationItem, 0, len(schedules))
	for i := range schedules {
		sc := &schedules[i]
		if !matchesFilter(sc, filter) {
			continue
		}
		filled := counts[sc.ShiftScheduleID]
		item := dto.RegistrationItem{
			ScheduleResponse: toScheduleResponse(sc),
			FilledSlots:      filled,
			AvailableSlots:   max(sc.SlotCount-filled, 0),
			IsRegistered:     registered[sc.ShiftScheduleID],
		}
		if sc.ShiftType != nil {
			item.CanSelfAssign = sc.ShiftType.CanSelfAssign
			item.MeetsRoleRequirement = sc.ShiftType.MeetsRoleRequirement(p.RoleIDs)
			if v, blocked := scheduling.BlockedBy(balancingRules(sc.ShiftType), toLoad(sc, filled), loadsByType[sc.ShiftTypeID]); blocked {
				item.BalancingBlocked = string(v.Dimension)
			}
		}
		item.HasTimeConflict = conflictsWithRegistered(sc, mine) != nil
		item.CanRegister = signupOpen && !item.IsRegistered && item.AvailableSlots > 0 &&
			item.CanSelfAssign && item.MeetsRoleRequirement &&
			item.BalancingBlocked == "" && !item.HasTimeConflict
		result = append(result, item)
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// ListForOverview — 管理视图，逐模板列出报名用户
// ════════════════════════════════════════════════════════════

func (s *scheduleService) ListForOverview(ctx context.Context, p access.Principal, periodID string, filter dto.ScheduleFilter) ([]dto.OverviewItem, error) {
	if _, err := s.getAccessiblePeriod(ctx, p, periodID); err != nil {
		return nil, err
	}
	schedules, err := s.repo.ShiftSchedule.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("查询排班模板失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	occCounts, err := s.repo.Occurrence.CountBySchedule(ctx, scheduleIDs(schedules))
	if err != nil {
		return nil, err
	}

	result := make([]dto.OverviewItem, 0, len(schedules))
	for i := range schedules {
		sc := &schedules[i]
		if !matchesFilter(sc, filter) {
			continue
		}
		assignments, err := s.repo.ShiftSchedule.ListAssignments(ctx, sc.ShiftScheduleID)
		if err != nil {
			return nil, err
		}
		users := make([]dto.UserBrief, 0, len(assignments))
		for _, a := range assignments {
			if a.User != nil {
				users = append(users, *toUserBrief(a.User))
			} else {
				users = append(users, dto.UserBrief{ID: a.UserID})
			}
		}
		result = append(result, dto.OverviewItem{
			ScheduleResponse: toScheduleResponse(sc),
			FilledSlots:      len(assignments),
			OccurrenceCount:  occCounts[sc.ShiftScheduleID],
			Users:            users,
		})
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// ListMyOccurrences / ListPickupCandidates
// ════════════════════════════════════════════════════════════

func (s *scheduleService) ListMyOccurrences(ctx context.Context, userID, periodID string, from, to time.Time) ([]dto.OccurrenceResponse, error) {
	occs, err := s.repo.Occurrence.ListAssignedToUser(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("查询个人排班实例失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.OccurrenceResponse, 0, len(occs))
	for i := range occs {
		o := &occs[i]
		if o.ShiftSchedule == nil || o.ShiftSchedule.ShiftType == nil || o.ShiftSchedule.ShiftType.PeriodID != periodID {
			continue
		}
		_, end, _ := occurrenceWindow(s.cal, o, o.ShiftSchedule)
		result = append(result, toOccurrenceResponse(o, end))
	}
	return result, nil
}

func (s *scheduleService) ListPickupCandidates(ctx context.Context, p access.Principal, periodID string) ([]dto.OccurrenceResponse, error) {
	period, err := s.getAccessiblePeriod(ctx, p, periodID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !period.ModifyWindowOpen(now) {
		return []dto.OccurrenceResponse{}, nil
	}

	occs, err := s.repo.Occurrence.ListByPeriod(ctx, periodID, now, time.Time{})
	if err != nil {
		s.logger.Error("查询可补班实例失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.OccurrenceResponse, 0)
	for i := range occs {
		o := &occs[i]
		if o.Assignee != nil || !o.Timestamp.After(now) || o.ShiftSchedule == nil {
			continue
		}
		st := o.ShiftSchedule.ShiftType
		if st == nil || !st.CanSelfAssign || !st.MeetsRoleRequirement(p.RoleIDs) {
			continue
		}
		_, end, _ := occurrenceWindow(s.cal, o, o.ShiftSchedule)
		result = append(result, toOccurrenceResponse(o, end))
	}
	return result, nil
}

// ── 辅助函数 ──

func (s *scheduleService) buildDetail(ctx context.Context, sched *model.ShiftSchedule, res regenerateResult) (*dto.ScheduleDetailResponse, error) {
	occs, err := s.repo.Occurrence.ListBySchedule(ctx, sched.ShiftScheduleID)
	if err != nil {
		s.logger.Error("查询排班实例失败", zap.String("shift_schedule_id", sched.ShiftScheduleID), zap.Error(err))
		return nil, err
	}
	detail := &dto.ScheduleDetailResponse{
		ScheduleResponse: toScheduleResponse(sched),
		Occurrences:      make([]dto.OccurrenceResponse, 0, len(occs)),
		Created:          res.Created,
		Deleted:          res.Deleted,
	}
	for i := range occs {
		_, end, _ := occurrenceWindow(s.cal, &occs[i], sched)
		detail.Occurrences = append(detail.Occurrences, toOccurrenceResponse(&occs[i], end))
	}
	return detail, nil
}

func (s *scheduleService) getAccessiblePeriod(ctx context.Context, p access.Principal, periodID string) (*model.Period, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	if err := s.access.CanAccessPeriod(p, period); err != nil {
		return nil, err
	}
	return period, nil
}

// logFailure 业务错误按 Info 记录，内部错误按 Error
func logFailure(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if apperrors.KindOf(err) == apperrors.KindInternal {
		logger.Error(msg, fields...)
		return
	}
	logger.Info(msg, fields...)
}

// loadTypeAndPeriod 读取模板所属班次类型及其周期
func loadTypeAndPeriod(ctx context.Context, tx *repository.Repository, shiftTypeID string) (*model.ShiftType, *model.Period, error) {
	st, err := tx.ShiftType.GetByID(ctx, shiftTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrShiftTypeNotFound
		}
		return nil, nil, err
	}
	period, err := tx.Period.GetByID(ctx, st.PeriodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPeriodNotFound
		}
		return nil, nil, err
	}
	return st, period, nil
}

// normalizeShiftTimes 统一为 HH:MM:SS；开始与结束相同视为无效
func normalizeShiftTimes(start, end string) (string, string, error) {
	ns, err := calendar.NormalizeTime(start)
	if err != nil {
		return "", "", ErrScheduleInvalid.WithDetail("开始时间 %q 格式应为 HH:MM[:SS]", start)
	}
	ne, err := calendar.NormalizeTime(end)
	if err != nil {
		return "", "", ErrScheduleInvalid.WithDetail("结束时间 %q 格式应为 HH:MM[:SS]", end)
	}
	if ns == ne {
		return "", "", ErrScheduleInvalid.WithDetail("开始与结束时间不能相同")
	}
	return ns, ne, nil
}

// conflictsWithRegistered 与同一天已报名模板的时间重叠，返回冲突的模板
func conflictsWithRegistered(candidate *model.ShiftSchedule, registered []model.ShiftSchedule) *model.ShiftSchedule {
	c := toLoad(candidate, 0)
	for i := range registered {
		r := &registered[i]
		if r.ShiftScheduleID == candidate.ShiftScheduleID {
			continue
		}
		if c.Overlaps(toLoad(r, 0)) {
			return r
		}
	}
	return nil
}

func matchesFilter(sc *model.ShiftSchedule, f dto.ScheduleFilter) bool {
	if f.ShiftTypeID != "" && sc.ShiftTypeID != f.ShiftTypeID {
		return false
	}
	if f.DayOfWeek != nil && sc.DayOfWeek != *f.DayOfWeek {
		return false
	}
	return true
}

func scheduleIDs(list []model.ShiftSchedule) []string {
	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ShiftScheduleID
	}
	return ids
}
