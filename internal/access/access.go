// Package access 定义排班子系统消费的两个外部判定：权限判定与周期访问判定。
// 默认实现基于 JWT 声明中的角色与权限，账号系统可替换为自己的实现。
package access

import (
	"hums/backend/internal/model"
	apperrors "hums/backend/pkg/errors"
)

// 排班子系统使用的权限点
const (
	PermScheduleManage   = "schedule.manage"
	PermPeriodManage     = "period.manage"
	PermAttendanceManage = "attendance.manage"
)

var (
	ErrPeriodAccessDenied = apperrors.Forbidden(40310, "无权访问该排班周期")
	ErrPermissionDenied   = apperrors.Forbidden(40311, "权限不足")
)

// Principal 当前操作者
type Principal struct {
	UserID       string
	RoleIDs      []string
	Permissions  []string
	IsSystemUser bool
}

// PermissionChecker 权限判定 (user, requiredPermissions) -> bool
type PermissionChecker interface {
	HasPermission(p Principal, required ...string) bool
}

// PeriodAccess 周期访问判定，拒绝时返回 Forbidden 错误
type PeriodAccess interface {
	CanAccessPeriod(p Principal, period *model.Period) error
}

// ClaimsChecker 基于声明的默认实现，同时满足 PermissionChecker 与 PeriodAccess
type ClaimsChecker struct{}

var (
	_ PermissionChecker = ClaimsChecker{}
	_ PeriodAccess      = ClaimsChecker{}
)

// NewClaimsChecker 创建默认判定器
func NewClaimsChecker() ClaimsChecker { return ClaimsChecker{} }

func (ClaimsChecker) HasPermission(p Principal, required ...string) bool {
	if p.IsSystemUser {
		return true
	}
	for _, r := range required {
		if !contains(p.Permissions, r) {
			return false
		}
	}
	return true
}

// CanAccessPeriod 系统用户与周期管理员放行；隐藏周期仅管理员可见；
// 周期配置了角色时，用户至少需持有其中一个。
func (c ClaimsChecker) CanAccessPeriod(p Principal, period *model.Period) error {
	if p.IsSystemUser || contains(p.Permissions, PermPeriodManage) {
		return nil
	}
	if !period.IsVisible {
		return ErrPeriodAccessDenied.WithDetail("周期 %s 未开放", period.Name)
	}
	if !period.HasEligibleRole(p.RoleIDs) {
		return ErrPeriodAccessDenied.WithDetail("周期 %s 不包含当前用户的角色", period.Name)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
