package repository

import (
	"context"

	"gorm.io/gorm"

	"hums/backend/internal/model"
	pkgerrors "hums/backend/pkg/errors"
)

// ShiftTypeRepository 班次类型数据访问接口
type ShiftTypeRepository interface {
	Create(ctx context.Context, t *model.ShiftType) error
	GetByID(ctx context.Context, id string) (*model.ShiftType, error)
	ListByPeriod(ctx context.Context, periodID string) ([]model.ShiftType, error)
	Update(ctx context.Context, t *model.ShiftType) error
	Delete(ctx context.Context, id string) error
}

type shiftTypeRepo struct {
	db *gorm.DB
}

func NewShiftTypeRepo(db *gorm.DB) ShiftTypeRepository {
	return &shiftTypeRepo{db: db}
}

func (r *shiftTypeRepo) Create(ctx context.Context, t *model.ShiftType) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *shiftTypeRepo) GetByID(ctx context.Context, id string) (*model.ShiftType, error) {
	var t model.ShiftType
	err := r.db.WithContext(ctx).
		Where("shift_type_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *shiftTypeRepo) ListByPeriod(ctx context.Context, periodID string) ([]model.ShiftType, error) {
	var types []model.ShiftType
	err := r.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		Order("name ASC").
		Find(&types).Error
	return types, err
}

func (r *shiftTypeRepo) Update(ctx context.Context, t *model.ShiftType) error {
	oldVersion := t.Version
	result := r.db.WithContext(ctx).
		Model(t).
		Where("shift_type_id = ? AND version = ?", t.ShiftTypeID, oldVersion).
		Updates(map[string]interface{}{
			"name":                       t.Name,
			"location":                   t.Location,
			"color":                      t.Color,
			"description":                t.Description,
			"role_requirement":           t.RoleRequirement,
			"role_ids":                   t.RoleIDs,
			"can_self_assign":            t.CanSelfAssign,
			"is_balanced_across_period":  t.IsBalancedAcrossPeriod,
			"is_balanced_across_day":     t.IsBalancedAcrossDay,
			"is_balanced_across_overlap": t.IsBalancedAcrossOverlap,
			"updated_by":                 t.UpdatedBy,
			"version":                    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version = oldVersion + 1
	return nil
}

// Delete 外键级联删除模板、实例与考勤
func (r *shiftTypeRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("shift_type_id = ?", id).
		Delete(&model.ShiftType{}).Error
}
