package dto

// ── 系统设置模块 DTO ──

// UpdateSettingsRequest 更新系统设置请求
type UpdateSettingsRequest struct {
	OrgName                *string `json:"org_name"                  binding:"omitempty,min=1,max=200"`
	LogoURL                *string `json:"logo_url"                  binding:"omitempty,max=500"`
	PrimaryColor           *string `json:"primary_color"             binding:"omitempty,max=20"`
	LateGraceMinutes       *int    `json:"late_grace_minutes"        binding:"omitempty,min=0,max=120"`
	EarlyLeaveGraceMinutes *int    `json:"early_leave_grace_minutes" binding:"omitempty,min=0,max=120"`
}

// SettingsResponse 系统设置响应
type SettingsResponse struct {
	OrgName                string `json:"org_name"`
	LogoURL                string `json:"logo_url"`
	PrimaryColor           string `json:"primary_color"`
	LateGraceMinutes       int    `json:"late_grace_minutes"`
	EarlyLeaveGraceMinutes int    `json:"early_leave_grace_minutes"`
	UpdatedAt              string `json:"updated_at"`
}
