package dto

// ── 考勤模块 DTO ──

// TimeClockRequest 打卡请求；At 为空时取服务端当前时间
type TimeClockRequest struct {
	UserID string  `json:"user_id" binding:"required,uuid"`
	At     *string `json:"at"` // RFC3339
}

// ExcuseRequest 请假审批请求
type ExcuseRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

// AttendanceQuery 考勤列表查询参数
type AttendanceQuery struct {
	PeriodID string `form:"period_id" binding:"required,uuid"`
	UserID   string `form:"user_id"   binding:"omitempty,uuid"`
	PaginationRequest
}

// AttendanceResponse 考勤记录响应
type AttendanceResponse struct {
	ID            string     `json:"id"`
	OccurrenceID  string     `json:"shift_occurrence_id"`
	User          *UserBrief `json:"user,omitempty"`
	UserID        string     `json:"user_id"`
	Status        string     `json:"status"`
	IsExcused     bool       `json:"is_excused"`
	IsMakeup      bool       `json:"is_makeup"`
	DidArriveLate bool       `json:"did_arrive_late"`
	DidLeaveEarly bool       `json:"did_leave_early"`
	TimeIn        *string    `json:"time_in,omitempty"`
	TimeOut       *string    `json:"time_out,omitempty"`
	DroppedNotes  *string    `json:"dropped_notes,omitempty"`
	ExcuseNotes   *string    `json:"excuse_notes,omitempty"`
	ScheduledAt   string     `json:"scheduled_at,omitempty"`
	NeedsReview   bool       `json:"needs_review"`
}
