package dto

// ── 班次类型模块 DTO ──

// CreateShiftTypeRequest 创建班次类型请求
type CreateShiftTypeRequest struct {
	PeriodID                string   `json:"period_id"                  binding:"required,uuid"`
	Name                    string   `json:"name"                       binding:"required,min=1,max=100"`
	Location                string   `json:"location"                   binding:"max=200"`
	Color                   *string  `json:"color"                      binding:"omitempty,max=20"`
	Description             *string  `json:"description"`
	RoleRequirement         string   `json:"role_requirement"           binding:"omitempty,oneof=all any"`
	RoleIDs                 []string `json:"role_ids"                   binding:"omitempty,dive,uuid"`
	CanSelfAssign           *bool    `json:"can_self_assign"`
	IsBalancedAcrossPeriod  bool     `json:"is_balanced_across_period"`
	IsBalancedAcrossDay     bool     `json:"is_balanced_across_day"`
	IsBalancedAcrossOverlap bool     `json:"is_balanced_across_overlap"`
}

// UpdateShiftTypeRequest 更新班次类型请求
type UpdateShiftTypeRequest struct {
	Name                    *string  `json:"name"                       binding:"omitempty,min=1,max=100"`
	Location                *string  `json:"location"                   binding:"omitempty,max=200"`
	Color                   *string  `json:"color"                      binding:"omitempty,max=20"`
	Description             *string  `json:"description"`
	RoleRequirement         *string  `json:"role_requirement"           binding:"omitempty,oneof=all any none"`
	RoleIDs                 []string `json:"role_ids"                   binding:"omitempty,dive,uuid"`
	CanSelfAssign           *bool    `json:"can_self_assign"`
	IsBalancedAcrossPeriod  *bool    `json:"is_balanced_across_period"`
	IsBalancedAcrossDay     *bool    `json:"is_balanced_across_day"`
	IsBalancedAcrossOverlap *bool    `json:"is_balanced_across_overlap"`
	Version                 int      `json:"version"                    binding:"required,min=1"`
}

// ShiftTypeResponse 班次类型响应
type ShiftTypeResponse struct {
	ID                      string   `json:"id"`
	PeriodID                string   `json:"period_id"`
	Name                    string   `json:"name"`
	Location                string   `json:"location"`
	Color                   *string  `json:"color,omitempty"`
	Description             *string  `json:"description,omitempty"`
	RoleRequirement         string   `json:"role_requirement"`
	RoleIDs                 []string `json:"role_ids"`
	CanSelfAssign           bool     `json:"can_self_assign"`
	IsBalancedAcrossPeriod  bool     `json:"is_balanced_across_period"`
	IsBalancedAcrossDay     bool     `json:"is_balanced_across_day"`
	IsBalancedAcrossOverlap bool     `json:"is_balanced_across_overlap"`
	Version                 int      `json:"version"`
}
