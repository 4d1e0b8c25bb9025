package repository

import (
	"context"

	"gorm.io/gorm"

	"hums/backend/internal/model"
	pkgerrors "hums/backend/pkg/errors"
)

// PeriodRepository 排班周期数据访问接口
type PeriodRepository interface {
	Create(ctx context.Context, p *model.Period) error
	GetByID(ctx context.Context, id string) (*model.Period, error)
	List(ctx context.Context, visibleOnly bool) ([]model.Period, error)
	Update(ctx context.Context, p *model.Period) error
	Delete(ctx context.Context, id string) error
}

// PeriodExceptionRepository 周期例外数据访问接口
type PeriodExceptionRepository interface {
	Create(ctx context.Context, e *model.PeriodException) error
	BatchCreate(ctx context.Context, es []model.PeriodException) error
	GetByID(ctx context.Context, id string) (*model.PeriodException, error)
	ListByPeriod(ctx context.Context, periodID string) ([]model.PeriodException, error)
	Update(ctx context.Context, e *model.PeriodException) error
	Delete(ctx context.Context, id string) error
}

// ── Period Repository 实现 ──

type periodRepo struct {
	db *gorm.DB
}

func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) Create(ctx context.Context, p *model.Period) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *periodRepo) GetByID(ctx context.Context, id string) (*model.Period, error) {
	var p model.Period
	err := r.db.WithContext(ctx).
		Where("period_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *periodRepo) List(ctx context.Context, visibleOnly bool) ([]model.Period, error) {
	var periods []model.Period
	db := r.db.WithContext(ctx)
	if visibleOnly {
		db = db.Where("is_visible = ?", true)
	}
	err := db.Order("start_at DESC").Find(&periods).Error
	return periods, err
}

func (r *periodRepo) Update(ctx context.Context, p *model.Period) error {
	oldVersion := p.Version
	result := r.db.WithContext(ctx).
		Model(p).
		Where("period_id = ? AND version = ?", p.PeriodID, oldVersion).
		Updates(map[string]interface{}{
			"name":                  p.Name,
			"start_at":              p.StartAt,
			"end_at":                p.EndAt,
			"schedule_signup_start": p.ScheduleSignupStart,
			"schedule_signup_end":   p.ScheduleSignupEnd,
			"schedule_modify_start": p.ScheduleModifyStart,
			"schedule_modify_end":   p.ScheduleModifyEnd,
			"role_ids":              p.RoleIDs,
			"is_visible":            p.IsVisible,
			"updated_by":            p.UpdatedBy,
			"version":               oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	p.Version = oldVersion + 1
	return nil
}

// Delete 外键级联删除班次类型、模板、实例与考勤
func (r *periodRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("period_id = ?", id).
		Delete(&model.Period{}).Error
}

// ── PeriodException Repository 实现 ──

type periodExceptionRepo struct {
	db *gorm.DB
}

func NewPeriodExceptionRepo(db *gorm.DB) PeriodExceptionRepository {
	return &periodExceptionRepo{db: db}
}

func (r *periodExceptionRepo) Create(ctx context.Context, e *model.PeriodException) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *periodExceptionRepo) BatchCreate(ctx context.Context, es []model.PeriodException) error {
	if len(es) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(es, 100).Error
}

func (r *periodExceptionRepo) GetByID(ctx context.Context, id string) (*model.PeriodException, error) {
	var e model.PeriodException
	err := r.db.WithContext(ctx).
		Where("period_exception_id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *periodExceptionRepo) ListByPeriod(ctx context.Context, periodID string) ([]model.PeriodException, error) {
	var es []model.PeriodException
	err := r.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		Order("start_at ASC").
		Find(&es).Error
	return es, err
}

func (r *periodExceptionRepo) Update(ctx context.Context, e *model.PeriodException) error {
	return r.db.WithContext(ctx).
		Model(e).
		Where("period_exception_id = ?", e.PeriodExceptionID).
		Updates(map[string]interface{}{
			"name":       e.Name,
			"start_at":   e.StartAt,
			"end_at":     e.EndAt,
			"updated_by": e.UpdatedBy,
		}).Error
}

func (r *periodExceptionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("period_exception_id = ?", id).
		Delete(&model.PeriodException{}).Error
}
