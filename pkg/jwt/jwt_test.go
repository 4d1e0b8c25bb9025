package jwt

import (
	"testing"
	"time"

	"hums/backend/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-1", []string{"role-a"}, []string{"schedule.manage"}, false)
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("期望 UserID=user-1，实际=%s", claims.UserID)
	}
	if len(claims.RoleIDs) != 1 || claims.RoleIDs[0] != "role-a" {
		t.Errorf("期望 RoleIDs=[role-a]，实际=%v", claims.RoleIDs)
	}
	if claims.TokenType != "access" {
		t.Errorf("期望 TokenType=access，实际=%s", claims.TokenType)
	}
	if claims.Issuer != "hums" {
		t.Errorf("期望 Issuer=hums，实际=%s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}
}

func TestParseToken_Expired(t *testing.T) {
	m := NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: -time.Minute,
	})

	token, err := m.GenerateAccessToken("user-1", nil, nil, false)
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	if _, err := m.ParseToken(token); err != ErrTokenExpired {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestParseToken_WrongSecretOrIssuer(t *testing.T) {
	m := newTestManager()
	other := NewManager(&config.AuthConfig{
		JWTSecret:      "another-secret-key-for-unit-test",
		AccessTokenTTL: time.Minute,
	})
	token, _ := other.GenerateAccessToken("user-1", nil, nil, false)
	if _, err := m.ParseToken(token); err != ErrTokenInvalid {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}

	foreign := NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: time.Minute,
		Issuer:         "someone-else",
	})
	token, _ = foreign.GenerateAccessToken("user-1", nil, nil, false)
	if _, err := m.ParseToken(token); err != ErrTokenInvalid {
		t.Errorf("签发方不匹配时期望 ErrTokenInvalid，实际: %v", err)
	}

	if _, err := m.ParseToken("not-a-token"); err != ErrTokenInvalid {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestClaims_HasPermission(t *testing.T) {
	c := &Claims{Permissions: []string{"schedule.manage", "attendance.review"}}
	if !c.HasPermission("schedule.manage") {
		t.Error("应拥有 schedule.manage")
	}
	if c.HasPermission("schedule.manage", "period.manage") {
		t.Error("缺少 period.manage 时不应通过")
	}
	sys := &Claims{IsSystemUser: true}
	if !sys.HasPermission("anything") {
		t.Error("系统用户应拥有所有权限")
	}
}
