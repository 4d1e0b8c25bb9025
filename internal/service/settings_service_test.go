package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"hums/backend/internal/dto"
)

func setupTestSettingsService() (SettingsService, *mockSystemSettingRepo) {
	repo := newMockRepository(newMemStore())
	settingRepo := repo.SystemSetting.(*mockSystemSettingRepo)
	svc := NewSettingsService(repo, time.Minute, SettingsDefaults{LateGraceMinutes: 5, EarlyLeaveGraceMinutes: 10}, zap.NewNop())
	return svc, settingRepo
}

func TestSettingsService_Get_DefaultsAndCache(t *testing.T) {
	svc, settingRepo := setupTestSettingsService()

	first, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get 应成功: %v", err)
	}
	if first.OrgName != "HUMS" || first.LateGraceMinutes != 5 || first.EarlyLeaveGraceMinutes != 10 {
		t.Errorf("未初始化时应返回默认值，实际: %+v", first)
	}

	if _, err := svc.Get(context.Background()); err != nil {
		t.Fatalf("第二次 Get 失败: %v", err)
	}
	if settingRepo.reads != 1 {
		t.Errorf("缓存命中时不应再查库，实际查询次数: %d", settingRepo.reads)
	}
}

func TestSettingsService_Update_InvalidatesCache(t *testing.T) {
	svc, settingRepo := setupTestSettingsService()
	name := "创客空间"
	late := 15

	if _, err := svc.Update(context.Background(), &dto.UpdateSettingsRequest{OrgName: &name, LateGraceMinutes: &late}, "admin-001"); err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	got, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if got.OrgName != name || got.LateGraceMinutes != 15 || got.EarlyLeaveGraceMinutes != 10 {
		t.Errorf("更新后读取不符: %+v", got)
	}
	if settingRepo.reads != 2 {
		t.Errorf("更新后应重新查库，实际查询次数: %d", settingRepo.reads)
	}

	lateGrace, earlyGrace := svc.Grace(context.Background())
	if lateGrace != 15*time.Minute || earlyGrace != 10*time.Minute {
		t.Errorf("宽限期不符: late=%s, early=%s", lateGrace, earlyGrace)
	}
}
