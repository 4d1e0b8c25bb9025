package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hums/backend/internal/model"
)

// SystemSettingRepository 系统设置数据访问接口
type SystemSettingRepository interface {
	Get(ctx context.Context) (*model.SystemSetting, error)
	Upsert(ctx context.Context, s *model.SystemSetting) error
}

type systemSettingRepo struct {
	db *gorm.DB
}

// NewSystemSettingRepo 创建 SystemSettingRepository 实例
func NewSystemSettingRepo(db *gorm.DB) SystemSettingRepository {
	return &systemSettingRepo{db: db}
}

func (r *systemSettingRepo) Get(ctx context.Context) (*model.SystemSetting, error) {
	var s model.SystemSetting
	err := r.db.WithContext(ctx).Where("singleton = ?", true).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *systemSettingRepo) Upsert(ctx context.Context, s *model.SystemSetting) error {
	s.Singleton = true
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "singleton"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"org_name", "logo_url", "primary_color",
				"late_grace_minutes", "early_leave_grace_minutes",
				"updated_at", "updated_by",
			}),
		}).
		Create(s).Error
}
