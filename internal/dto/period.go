package dto

import "time"

// ── 排班周期模块 DTO ──

// CreatePeriodRequest 创建周期请求
type CreatePeriodRequest struct {
	Name                string     `json:"name"                  binding:"required,min=1,max=100"`
	StartAt             time.Time  `json:"start_at"              binding:"required"`
	EndAt               time.Time  `json:"end_at"                binding:"required"`
	ScheduleSignupStart *time.Time `json:"schedule_signup_start"`
	ScheduleSignupEnd   *time.Time `json:"schedule_signup_end"`
	ScheduleModifyStart *time.Time `json:"schedule_modify_start"`
	ScheduleModifyEnd   *time.Time `json:"schedule_modify_end"`
	RoleIDs             []string   `json:"role_ids"              binding:"omitempty,dive,uuid"`
	IsVisible           *bool      `json:"is_visible"`
}

// UpdatePeriodRequest 更新周期请求；Version 用于乐观锁
type UpdatePeriodRequest struct {
	Name                *string    `json:"name"                  binding:"omitempty,min=1,max=100"`
	StartAt             *time.Time `json:"start_at"`
	EndAt               *time.Time `json:"end_at"`
	ScheduleSignupStart *time.Time `json:"schedule_signup_start"`
	ScheduleSignupEnd   *time.Time `json:"schedule_signup_end"`
	ScheduleModifyStart *time.Time `json:"schedule_modify_start"`
	ScheduleModifyEnd   *time.Time `json:"schedule_modify_end"`
	RoleIDs             []string   `json:"role_ids"              binding:"omitempty,dive,uuid"`
	IsVisible           *bool      `json:"is_visible"`
	Version             int        `json:"version"               binding:"required,min=1"`
}

// PeriodResponse 周期响应
type PeriodResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	StartAt             string   `json:"start_at"`
	EndAt               string   `json:"end_at"`
	ScheduleSignupStart *string  `json:"schedule_signup_start,omitempty"`
	ScheduleSignupEnd   *string  `json:"schedule_signup_end,omitempty"`
	ScheduleModifyStart *string  `json:"schedule_modify_start,omitempty"`
	ScheduleModifyEnd   *string  `json:"schedule_modify_end,omitempty"`
	RoleIDs             []string `json:"role_ids"`
	IsVisible           bool     `json:"is_visible"`
	Version             int      `json:"version"`
}

// ── 周期例外 ──

// ExceptionRequest 创建/更新例外窗口请求，两端均包含
type ExceptionRequest struct {
	Name    string    `json:"name"     binding:"max=200"`
	StartAt time.Time `json:"start_at" binding:"required"`
	EndAt   time.Time `json:"end_at"   binding:"required"`
}

// ImportExceptionsRequest 通过订阅地址导入节假日
type ImportExceptionsRequest struct {
	URL string `json:"url" binding:"required,max=2000"`
}

// ExceptionResponse 例外窗口响应
type ExceptionResponse struct {
	ID       string `json:"id"`
	PeriodID string `json:"period_id"`
	Name     string `json:"name"`
	StartAt  string `json:"start_at"`
	EndAt    string `json:"end_at"`
}

// RegenerateResult 周期级重新生成的汇总
type RegenerateResult struct {
	Schedules int `json:"schedules"`
	Created   int `json:"created"`
	Deleted   int `json:"deleted"`
}
