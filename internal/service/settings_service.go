package service

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
)

const settingsCacheKey = "system_settings"

// SettingsService 系统设置业务接口（品牌信息与考勤宽限期）
type SettingsService interface {
	Get(ctx context.Context) (*dto.SettingsResponse, error)
	Update(ctx context.Context, req *dto.UpdateSettingsRequest, callerID string) (*dto.SettingsResponse, error)
	// Grace 迟到/早退宽限期
	Grace(ctx context.Context) (late, early time.Duration)
}

// SettingsDefaults 数据库中尚无设置行时使用的默认值
type SettingsDefaults struct {
	LateGraceMinutes       int
	EarlyLeaveGraceMinutes int
}

type settingsService struct {
	repo     *repository.Repository
	cache    *cache.Cache
	defaults SettingsDefaults
	logger   *zap.Logger
}

// NewSettingsService 创建 SettingsService；缓存由该实例独占，Update 后立即失效
func NewSettingsService(repo *repository.Repository, ttl time.Duration, defaults SettingsDefaults, logger *zap.Logger) SettingsService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &settingsService{
		repo:     repo,
		cache:    cache.New(ttl, 2*ttl),
		defaults: defaults,
		logger:   logger,
	}
}

// ────────────────────── Get ──────────────────────

func (s *settingsService) Get(ctx context.Context) (*dto.SettingsResponse, error) {
	setting, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return toSettingsResponse(setting), nil
}

func (s *settingsService) load(ctx context.Context) (*model.SystemSetting, error) {
	if v, ok := s.cache.Get(settingsCacheKey); ok {
		return v.(*model.SystemSetting), nil
	}

	setting, err := s.repo.SystemSetting.Get(ctx)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询系统设置失败", zap.Error(err))
			return nil, err
		}
		setting = &model.SystemSetting{
			Singleton:              true,
			OrgName:                "HUMS",
			PrimaryColor:           "#1f6feb",
			LateGraceMinutes:       s.defaults.LateGraceMinutes,
			EarlyLeaveGraceMinutes: s.defaults.EarlyLeaveGraceMinutes,
		}
	}
	s.cache.SetDefault(settingsCacheKey, setting)
	return setting, nil
}

// ────────────────────── Update ──────────────────────

func (s *settingsService) Update(ctx context.Context, req *dto.UpdateSettingsRequest, callerID string) (*dto.SettingsResponse, error) {
	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	setting := *current

	if req.OrgName != nil {
		setting.OrgName = *req.OrgName
	}
	if req.LogoURL != nil {
		setting.LogoURL = *req.LogoURL
	}
	if req.PrimaryColor != nil {
		setting.PrimaryColor = *req.PrimaryColor
	}
	if req.LateGraceMinutes != nil {
		setting.LateGraceMinutes = *req.LateGraceMinutes
	}
	if req.EarlyLeaveGraceMinutes != nil {
		setting.EarlyLeaveGraceMinutes = *req.EarlyLeaveGraceMinutes
	}
	setting.UpdatedBy = &callerID
	setting.UpdatedAt = time.Now()

	if err := s.repo.SystemSetting.Upsert(ctx, &setting); err != nil {
		s.logger.Error("更新系统设置失败", zap.Error(err))
		return nil, err
	}
	s.cache.Delete(settingsCacheKey)

	s.logger.Info("系统设置已更新", zap.String("updated_by", callerID))
	return toSettingsResponse(&setting), nil
}

// ────────────────────── Grace ──────────────────────

func (s *settingsService) Grace(ctx context.Context) (time.Duration, time.Duration) {
	setting, err := s.load(ctx)
	if err != nil {
		return time.Duration(s.defaults.LateGraceMinutes) * time.Minute,
			time.Duration(s.defaults.EarlyLeaveGraceMinutes) * time.Minute
	}
	return time.Duration(setting.LateGraceMinutes) * time.Minute,
		time.Duration(setting.EarlyLeaveGraceMinutes) * time.Minute
}

func toSettingsResponse(s *model.SystemSetting) *dto.SettingsResponse {
	return &dto.SettingsResponse{
		OrgName:                s.OrgName,
		LogoURL:                s.LogoURL,
		PrimaryColor:           s.PrimaryColor,
		LateGraceMinutes:       s.LateGraceMinutes,
		EarlyLeaveGraceMinutes: s.EarlyLeaveGraceMinutes,
		UpdatedAt:              formatTime(s.UpdatedAt),
	}
}
