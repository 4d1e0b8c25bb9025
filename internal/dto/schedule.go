package dto

// ── 排班模板模块 DTO ──

// CreateScheduleRequest 创建排班模板请求
type CreateScheduleRequest struct {
	ShiftTypeID string `json:"shift_type_id" binding:"required,uuid"`
	DayOfWeek   *int   `json:"day_of_week"   binding:"required,min=0,max=6"`
	StartTime   string `json:"start_time"    binding:"required"` // HH:MM[:SS]
	EndTime     string `json:"end_time"      binding:"required"`
	SlotCount   int    `json:"slot_count"    binding:"required,min=1,max=100"`
}

// UpdateScheduleRequest 更新排班模板请求
type UpdateScheduleRequest struct {
	DayOfWeek *int    `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	SlotCount *int    `json:"slot_count"  binding:"omitempty,min=1,max=100"`
	Version   int     `json:"version"     binding:"required,min=1"`
}

// ScheduleFilter 列表筛选参数
type ScheduleFilter struct {
	ShiftTypeID string `form:"shift_type_id" binding:"omitempty,uuid"`
	DayOfWeek   *int   `form:"day_of_week"   binding:"omitempty,min=0,max=6"`
}

// ScheduleResponse 排班模板响应
type ScheduleResponse struct {
	ID            string `json:"id"`
	ShiftTypeID   string `json:"shift_type_id"`
	ShiftTypeName string `json:"shift_type_name,omitempty"`
	Location      string `json:"location,omitempty"`
	DayOfWeek     int    `json:"day_of_week"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	SlotCount     int    `json:"slot_count"`
	Version       int    `json:"version"`
}

// OccurrenceResponse 排班实例响应
type OccurrenceResponse struct {
	ID         string            `json:"id"`
	ScheduleID string            `json:"shift_schedule_id"`
	Timestamp  string            `json:"timestamp"`
	EndAt      string            `json:"end_at,omitempty"`
	Slot       int               `json:"slot"`
	AssigneeID string            `json:"assignee_id,omitempty"`
	Schedule   *ScheduleResponse `json:"schedule,omitempty"`
}

// ScheduleDetailResponse 模板及其当前全部实例
type ScheduleDetailResponse struct {
	ScheduleResponse
	Occurrences []OccurrenceResponse `json:"occurrences"`
	Created     int                  `json:"created"`
	Deleted     int                  `json:"deleted"`
}

// RegistrationItem 报名列表中的一行
type RegistrationItem struct {
	ScheduleResponse
	FilledSlots          int    `json:"filled_slots"`
	AvailableSlots       int    `json:"available_slots"`
	IsRegistered         bool   `json:"is_registered"`
	CanSelfAssign        bool   `json:"can_self_assign"`
	MeetsRoleRequirement bool   `json:"meets_role_requirement"`
	HasTimeConflict      bool   `json:"has_time_conflict"`
	BalancingBlocked     string `json:"balancing_blocked,omitempty"` // period | day | overlap
	CanRegister          bool   `json:"can_register"`
}

// OverviewItem 总览列表中的一行
type OverviewItem struct {
	ScheduleResponse
	FilledSlots     int         `json:"filled_slots"`
	OccurrenceCount int         `json:"occurrence_count"`
	Users           []UserBrief `json:"users"`
}
