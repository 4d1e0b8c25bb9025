package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/access"
	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/pkg/calendar"
	apperrors "hums/backend/pkg/errors"
)

// ── 周期模块业务错误 ──

var (
	ErrPeriodNotFound    = apperrors.NotFound(40401, "排班周期不存在")
	ErrPeriodInvalid     = apperrors.BadRequest(40001, "排班周期参数无效")
	ErrExceptionNotFound = apperrors.NotFound(40407, "周期例外不存在")
	ErrExceptionInvalid  = apperrors.BadRequest(40004, "例外窗口参数无效")
	ErrInvalidICS        = apperrors.BadRequest(40023, "ICS 文件解析失败")
)

// PeriodService 排班周期与例外窗口业务接口。
// 周期时间窗口或例外变化后，逐个模板重新生成实例。
type PeriodService interface {
	Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error)
	GetByID(ctx context.Context, p access.Principal, id string) (*dto.PeriodResponse, error)
	List(ctx context.Context, p access.Principal) ([]dto.PeriodResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdatePeriodRequest, callerID string) (*dto.PeriodResponse, *dto.RegenerateResult, error)
	Delete(ctx context.Context, id string) error
	Regenerate(ctx context.Context, id string) (*dto.RegenerateResult, error)

	ListExceptions(ctx context.Context, periodID string) ([]dto.ExceptionResponse, error)
	CreateException(ctx context.Context, periodID string, req *dto.ExceptionRequest, callerID string) (*dto.ExceptionResponse, *dto.RegenerateResult, error)
	UpdateException(ctx context.Context, exceptionID string, req *dto.ExceptionRequest, callerID string) (*dto.ExceptionResponse, *dto.RegenerateResult, error)
	DeleteException(ctx context.Context, exceptionID string) (*dto.RegenerateResult, error)
	// ImportExceptions 从 ICS 导入与周期窗口相交的事件
	ImportExceptions(ctx context.Context, periodID string, r io.Reader, callerID string) ([]dto.ExceptionResponse, *dto.RegenerateResult, error)
	ImportExceptionsFromURL(ctx context.Context, periodID, url, callerID string) ([]dto.ExceptionResponse, *dto.RegenerateResult, error)
}

type periodService struct {
	repo   *repository.Repository
	cal    *calendar.Calendar
	access access.PeriodAccess
	regen  *regenerator
	logger *zap.Logger
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(repo *repository.Repository, cal *calendar.Calendar, periodAccess access.PeriodAccess, regen *regenerator, logger *zap.Logger) PeriodService {
	return &periodService{
		repo:   repo,
		cal:    cal,
		access: periodAccess,
		regen:  regen,
		logger: logger,
	}
}

// ════════════════════════════════════════════════════════════
// Period CRUD
// ════════════════════════════════════════════════════════════

func (s *periodService) Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error) {
	period := &model.Period{
		PeriodID:            uuid.NewString(),
		Name:                req.Name,
		StartAt:             req.StartAt,
		EndAt:               req.EndAt,
		ScheduleSignupStart: req.ScheduleSignupStart,
		ScheduleSignupEnd:   req.ScheduleSignupEnd,
		ScheduleModifyStart: req.ScheduleModifyStart,
		ScheduleModifyEnd:   req.ScheduleModifyEnd,
		RoleIDs:             model.StringArray(req.RoleIDs),
		IsVisible:           true,
	}
	if req.IsVisible != nil {
		period.IsVisible = *req.IsVisible
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	period.CreatedBy = &callerID
	period.UpdatedBy = &callerID

	if err := s.repo.Period.Create(ctx, period); err != nil {
		s.logger.Error("创建排班周期失败", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}
	s.logger.Info("排班周期已创建", zap.String("period_id", period.PeriodID), zap.String("name", period.Name))
	return toPeriodResponse(period), nil
}

func (s *periodService) GetByID(ctx context.Context, p access.Principal, id string) (*dto.PeriodResponse, error) {
	period, err := s.getPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccessPeriod(p, period); err != nil {
		return nil, err
	}
	return toPeriodResponse(period), nil
}

// List 仅返回当前用户可访问的周期
func (s *periodService) List(ctx context.Context, p access.Principal) ([]dto.PeriodResponse, error) {
	periods, err := s.repo.Period.List(ctx, false)
	if err != nil {
		s.logger.Error("查询排班周期列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.PeriodResponse, 0, len(periods))
	for i := range periods {
		if s.access.CanAccessPeriod(p, &periods[i]) != nil {
			continue
		}
		result = append(result, *toPeriodResponse(&periods[i]))
	}
	return result, nil
}

func (s *periodService) Update(ctx context.Context, id string, req *dto.UpdatePeriodRequest, callerID string) (*dto.PeriodResponse, *dto.RegenerateResult, error) {
	period, err := s.getPeriod(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.Version != period.Version {
		return nil, nil, apperrors.ErrOptimisticLock
	}

	oldStart, oldEnd := period.StartAt, period.EndAt
	if req.Name != nil {
		period.Name = *req.Name
	}
	if req.StartAt != nil {
		period.StartAt = *req.StartAt
	}
	if req.EndAt != nil {
		period.EndAt = *req.EndAt
	}
	if req.ScheduleSignupStart != nil {
		period.ScheduleSignupStart = req.ScheduleSignupStart
	}
	if req.ScheduleSignupEnd != nil {
		period.ScheduleSignupEnd = req.ScheduleSignupEnd
	}
	if req.ScheduleModifyStart != nil {
		period.ScheduleModifyStart = req.ScheduleModifyStart
	}
	if req.ScheduleModifyEnd != nil {
		period.ScheduleModifyEnd = req.ScheduleModifyEnd
	}
	if req.RoleIDs != nil {
		period.RoleIDs = model.StringArray(req.RoleIDs)
	}
	if req.IsVisible != nil {
		period.IsVisible = *req.IsVisible
	}
	if err := validatePeriod(period); err != nil {
		return nil, nil, err
	}
	period.UpdatedBy = &callerID

	if err := s.repo.Period.Update(ctx, period); err != nil {
		logFailure(s.logger, "更新排班周期失败", err, zap.String("period_id", id))
		return nil, nil, err
	}

	if period.StartAt.Equal(oldStart) && period.EndAt.Equal(oldEnd) {
		return toPeriodResponse(period), nil, nil
	}
	res, err := s.regen.regeneratePeriod(ctx, s.repo, id)
	return toPeriodResponse(period), res, err
}

// Delete 外键级联删除周期下全部数据
func (s *periodService) Delete(ctx context.Context, id string) error {
	if _, err := s.getPeriod(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Period.Delete(ctx, id); err != nil {
		s.logger.Error("删除排班周期失败", zap.String("period_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("排班周期已删除", zap.String("period_id", id))
	return nil
}

func (s *periodService) Regenerate(ctx context.Context, id string) (*dto.RegenerateResult, error) {
	if _, err := s.getPeriod(ctx, id); err != nil {
		return nil, err
	}
	return s.regen.regeneratePeriod(ctx, s.repo, id)
}

// ════════════════════════════════════════════════════════════
// 例外窗口
// ════════════════════════════════════════════════════════════

func (s *periodService) ListExceptions(ctx context.Context, periodID string) ([]dto.ExceptionResponse, error) {
	if _, err := s.getPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	list, err := s.repo.PeriodException.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("查询周期例外失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.ExceptionResponse, len(list))
	for i := range list {
		result[i] = toExceptionResponse(&list[i])
	}
	return result, nil
}

func (s *periodService) CreateException(ctx context.Context, periodID string, req *dto.ExceptionRequest, callerID string) (*dto.ExceptionResponse, *dto.RegenerateResult, error) {
	if _, err := s.getPeriod(ctx, periodID); err != nil {
		return nil, nil, err
	}
	e := &model.PeriodException{
		PeriodExceptionID: uuid.NewString(),
		PeriodID:          periodID,
		Name:              req.Name,
		StartAt:           req.StartAt,
		EndAt:             req.EndAt,
	}
	if err := validateException(e); err != nil {
		return nil, nil, err
	}
	e.CreatedBy = &callerID
	e.UpdatedBy = &callerID

	if err := s.repo.PeriodException.Create(ctx, e); err != nil {
		s.logger.Error("创建周期例外失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, nil, err
	}
	resp := toExceptionResponse(e)
	res, err := s.regen.regeneratePeriod(ctx, s.repo, periodID)
	return &resp, res, err
}

func (s *periodService) UpdateException(ctx context.Context, exceptionID string, req *dto.ExceptionRequest, callerID string) (*dto.ExceptionResponse, *dto.RegenerateResult, error) {
	e, err := s.repo.PeriodException.GetByID(ctx, exceptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrExceptionNotFound
		}
		return nil, nil, err
	}
	e.Name, e.StartAt, e.EndAt = req.Name, req.StartAt, req.EndAt
	if err := validateException(e); err != nil {
		return nil, nil, err
	}
	e.UpdatedBy = &callerID

	if err := s.repo.PeriodException.Update(ctx, e); err != nil {
		s.logger.Error("更新周期例外失败", zap.String("id", exceptionID), zap.Error(err))
		return nil, nil, err
	}
	resp := toExceptionResponse(e)
	res, err := s.regen.regeneratePeriod(ctx, s.repo, e.PeriodID)
	return &resp, res, err
}

func (s *periodService) DeleteException(ctx context.Context, exceptionID string) (*dto.RegenerateResult, error) {
	e, err := s.repo.PeriodException.GetByID(ctx, exceptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExceptionNotFound
		}
		return nil, err
	}
	if err := s.repo.PeriodException.Delete(ctx, exceptionID); err != nil {
		s.logger.Error("删除周期例外失败", zap.String("id", exceptionID), zap.Error(err))
		return nil, err
	}
	return s.regen.regeneratePeriod(ctx, s.repo, e.PeriodID)
}

// ════════════════════════════════════════════════════════════
// ICS 导入
// ════════════════════════════════════════════════════════════

func (s *periodService) ImportExceptions(ctx context.Context, periodID string, r io.Reader, callerID string) ([]dto.ExceptionResponse, *dto.RegenerateResult, error) {
	period, err := s.getPeriod(ctx, periodID)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := ParseExceptionICS(r, s.cal.Location())
	if err != nil {
		return nil, nil, ErrInvalidICS.Wrap(err)
	}

	// 只保留与周期窗口相交的事件
	list := make([]model.PeriodException, 0, len(parsed))
	for _, pe := range parsed {
		if pe.End.Before(period.StartAt) || !pe.Start.Before(period.EndAt) {
			continue
		}
		e := model.PeriodException{
			PeriodExceptionID: uuid.NewString(),
			PeriodID:          periodID,
			Name:              truncateName(pe.Name, 200),
			StartAt:           pe.Start,
			EndAt:             pe.End,
		}
		e.CreatedBy = &callerID
		e.UpdatedBy = &callerID
		list = append(list, e)
	}
	if len(list) == 0 {
		return []dto.ExceptionResponse{}, &dto.RegenerateResult{}, nil
	}

	if err := s.repo.PeriodException.BatchCreate(ctx, list); err != nil {
		s.logger.Error("导入周期例外失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, nil, err
	}
	s.logger.Info("周期例外已导入", zap.String("period_id", periodID), zap.Int("count", len(list)))

	result := make([]dto.ExceptionResponse, len(list))
	for i := range list {
		result[i] = toExceptionResponse(&list[i])
	}
	res, err := s.regen.regeneratePeriod(ctx, s.repo, periodID)
	return result, res, err
}

func (s *periodService) ImportExceptionsFromURL(ctx context.Context, periodID, url, callerID string) ([]dto.ExceptionResponse, *dto.RegenerateResult, error) {
	if _, err := s.getPeriod(ctx, periodID); err != nil {
		return nil, nil, err
	}
	body, err := FetchICSContent(ctx, url)
	if err != nil {
		s.logger.Warn("获取节假日日历失败", zap.String("url", url), zap.Error(err))
		return nil, nil, ErrInvalidICS.WithDetail("无法获取 %s", url).Wrap(err)
	}
	defer body.Close()
	return s.ImportExceptions(ctx, periodID, body, callerID)
}

// ── 辅助函数 ──

func (s *periodService) getPeriod(ctx context.Context, id string) (*model.Period, error) {
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询排班周期失败", zap.String("period_id", id), zap.Error(err))
		return nil, err
	}
	return period, nil
}

func validatePeriod(p *model.Period) error {
	if !p.StartAt.Before(p.EndAt) {
		return ErrPeriodInvalid.WithDetail("开始时间必须早于结束时间")
	}
	if bothSet(p.ScheduleSignupStart, p.ScheduleSignupEnd) && p.ScheduleSignupEnd.Before(*p.ScheduleSignupStart) {
		return ErrPeriodInvalid.WithDetail("报名窗口结束时间早于开始时间")
	}
	if bothSet(p.ScheduleModifyStart, p.ScheduleModifyEnd) && p.ScheduleModifyEnd.Before(*p.ScheduleModifyStart) {
		return ErrPeriodInvalid.WithDetail("修改窗口结束时间早于开始时间")
	}
	return nil
}

func validateException(e *model.PeriodException) error {
	if e.EndAt.Before(e.StartAt) {
		return ErrExceptionInvalid.WithDetail("结束时间早于开始时间")
	}
	return nil
}

func bothSet(a, b *time.Time) bool { return a != nil && b != nil }

func truncateName(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
