package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/access"
	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	apperrors "hums/backend/pkg/errors"
)

// ── 班次类型模块业务错误 ──

var (
	ErrShiftTypeNotFound = apperrors.NotFound(40402, "班次类型不存在")
	ErrShiftTypeInvalid  = apperrors.BadRequest(40005, "班次类型参数无效")
)

// ShiftTypeService 班次类型业务接口
type ShiftTypeService interface {
	Create(ctx context.Context, req *dto.CreateShiftTypeRequest, callerID string) (*dto.ShiftTypeResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ShiftTypeResponse, error)
	ListByPeriod(ctx context.Context, p access.Principal, periodID string) ([]dto.ShiftTypeResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateShiftTypeRequest, callerID string) (*dto.ShiftTypeResponse, error)
	Delete(ctx context.Context, id string) error
}

type shiftTypeService struct {
	repo   *repository.Repository
	access access.PeriodAccess
	logger *zap.Logger
}

// NewShiftTypeService 创建 ShiftTypeService 实例
func NewShiftTypeService(repo *repository.Repository, periodAccess access.PeriodAccess, logger *zap.Logger) ShiftTypeService {
	return &shiftTypeService{repo: repo, access: periodAccess, logger: logger}
}

func (s *shiftTypeService) Create(ctx context.Context, req *dto.CreateShiftTypeRequest, callerID string) (*dto.ShiftTypeResponse, error) {
	if _, err := s.repo.Period.GetByID(ctx, req.PeriodID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}

	st := &model.ShiftType{
		ShiftTypeID:             uuid.NewString(),
		PeriodID:                req.PeriodID,
		Name:                    req.Name,
		Location:                req.Location,
		Color:                   req.Color,
		Description:             req.Description,
		RoleRequirement:         req.RoleRequirement,
		RoleIDs:                 model.StringArray(req.RoleIDs),
		CanSelfAssign:           true,
		IsBalancedAcrossPeriod:  req.IsBalancedAcrossPeriod,
		IsBalancedAcrossDay:     req.IsBalancedAcrossDay,
		IsBalancedAcrossOverlap: req.IsBalancedAcrossOverlap,
	}
	if req.CanSelfAssign != nil {
		st.CanSelfAssign = *req.CanSelfAssign
	}
	if err := validateRoleRequirement(st); err != nil {
		return nil, err
	}
	st.CreatedBy = &callerID
	st.UpdatedBy = &callerID

	if err := s.repo.ShiftType.Create(ctx, st); err != nil {
		s.logger.Error("创建班次类型失败", zap.String("period_id", req.PeriodID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("班次类型已创建", zap.String("shift_type_id", st.ShiftTypeID), zap.String("name", st.Name))
	return toShiftTypeResponse(st), nil
}

func (s *shiftTypeService) GetByID(ctx context.Context, id string) (*dto.ShiftTypeResponse, error) {
	st, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toShiftTypeResponse(st), nil
}

func (s *shiftTypeService) ListByPeriod(ctx context.Context, p access.Principal, periodID string) ([]dto.ShiftTypeResponse, error) {
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
	types, err := s.repo.ShiftType.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("查询班次类型列表失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.ShiftTypeResponse, len(types))
	for i := range types {
		result[i] = *toShiftTypeResponse(&types[i])
	}
	return result, nil
}

func (s *shiftTypeService) Update(ctx context.Context, id string, req *dto.UpdateShiftTypeRequest, callerID string) (*dto.ShiftTypeResponse, error) {
	st, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != st.Version {
		return nil, apperrors.ErrOptimisticLock
	}

	if req.Name != nil {
		st.Name = *req.Name
	}
	if req.Location != nil {
		st.Location = *req.Location
	}
	if req.Color != nil {
		st.Color = req.Color
	}
	if req.Description != nil {
		st.Description = req.Description
	}
	if req.RoleRequirement != nil {
		st.RoleRequirement = *req.RoleRequirement
		if st.RoleRequirement == "none" {
			st.RoleRequirement = model.RoleRequirementNone
		}
	}
	if req.RoleIDs != nil {
		st.RoleIDs = model.StringArray(req.RoleIDs)
	}
	if req.CanSelfAssign != nil {
		st.CanSelfAssign = *req.CanSelfAssign
	}
	if req.IsBalancedAcrossPeriod != nil {
		st.IsBalancedAcrossPeriod = *req.IsBalancedAcrossPeriod
	}
	if req.IsBalancedAcrossDay != nil {
		st.IsBalancedAcrossDay = *req.IsBalancedAcrossDay
	}
	if req.IsBalancedAcrossOverlap != nil {
		st.IsBalancedAcrossOverlap = *req.IsBalancedAcrossOverlap
	}
	if err := validateRoleRequirement(st); err != nil {
		return nil, err
	}
	st.UpdatedBy = &callerID

	if err := s.repo.ShiftType.Update(ctx, st); err != nil {
		logFailure(s.logger, "更新班次类型失败", err, zap.String("shift_type_id", id))
		return nil, err
	}
	return toShiftTypeResponse(st), nil
}

// Delete 外键级联删除模板、实例与考勤
func (s *shiftTypeService) Delete(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.ShiftType.Delete(ctx, id); err != nil {
		s.logger.Error("删除班次类型失败", zap.String("shift_type_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("班次类型已删除", zap.String("shift_type_id", id))
	return nil
}

func (s *shiftTypeService) get(ctx context.Context, id string) (*model.ShiftType, error) {
	st, err := s.repo.ShiftType.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftTypeNotFound
		}
		s.logger.Error("查询班次类型失败", zap.String("shift_type_id", id), zap.Error(err))
		return nil, err
	}
	return st, nil
}

// validateRoleRequirement 设置了 all/any 时必须给出角色列表
func validateRoleRequirement(st *model.ShiftType) error {
	switch st.RoleRequirement {
	case model.RoleRequirementNone:
		return nil
	case model.RoleRequirementAll, model.RoleRequirementAny:
		if len(st.RoleIDs) == 0 {
			return ErrShiftTypeInvalid.WithDetail("角色要求为 %s 时 role_ids 不能为空", st.RoleRequirement)
		}
		return nil
	default:
		return ErrShiftTypeInvalid.WithDetail("未知的角色要求 %q", st.RoleRequirement)
	}
}
