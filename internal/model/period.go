package model

import "time"

// Period 排班周期 — 对应 periods，时间窗口为 [StartAt, EndAt)
type Period struct {
	PeriodID            string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"period_id"`
	Name                string      `gorm:"type:varchar(100);not null"                     json:"name"`
	StartAt             time.Time   `gorm:"not null"                                       json:"start_at"`
	EndAt               time.Time   `gorm:"not null"                                       json:"end_at"`
	ScheduleSignupStart *time.Time  `json:"schedule_signup_start,omitempty"`
	ScheduleSignupEnd   *time.Time  `json:"schedule_signup_end,omitempty"`
	ScheduleModifyStart *time.Time  `json:"schedule_modify_start,omitempty"`
	ScheduleModifyEnd   *time.Time  `json:"schedule_modify_end,omitempty"`
	RoleIDs             StringArray `gorm:"type:uuid[];not null;default:'{}'"              json:"role_ids"`
	IsVisible           bool        `gorm:"not null"                                       json:"is_visible"`
	VersionedModel

	Exceptions []PeriodException `gorm:"foreignKey:PeriodID" json:"exceptions,omitempty"`
}

func (Period) TableName() string { return "periods" }

// ModifyWindowOpen 修改窗口 [start, end] 是否开放；未配置的一端视为不限
func (p *Period) ModifyWindowOpen(now time.Time) bool {
	return windowOpen(p.ScheduleModifyStart, p.ScheduleModifyEnd, now)
}

// SignupWindowOpen 报名窗口是否开放；未配置的一端视为不限
func (p *Period) SignupWindowOpen(now time.Time) bool {
	return windowOpen(p.ScheduleSignupStart, p.ScheduleSignupEnd, now)
}

// HasEligibleRole 周期未限定角色时任何人都有资格，否则需持有其中之一
func (p *Period) HasEligibleRole(roleIDs []string) bool {
	if len(p.RoleIDs) == 0 {
		return true
	}
	for _, r := range roleIDs {
		if p.RoleIDs.Contains(r) {
			return true
		}
	}
	return false
}

func windowOpen(start, end *time.Time, now time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}

// PeriodException 周期例外（停班）窗口 — 对应 period_exceptions，两端均包含
type PeriodException struct {
	PeriodExceptionID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"period_exception_id"`
	PeriodID          string    `gorm:"type:uuid;not null;index"                       json:"period_id"`
	Name              string    `gorm:"type:varchar(200);not null;default:''"          json:"name"`
	StartAt           time.Time `gorm:"not null"                                       json:"start_at"`
	EndAt             time.Time `gorm:"not null"                                       json:"end_at"`
	BaseModel
}

func (PeriodException) TableName() string { return "period_exceptions" }
