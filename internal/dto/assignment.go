package dto

// ── 分配模块 DTO ──

// ForceAssignRequest 管理员强制报名/退出请求
type ForceAssignRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// DropRequest 放弃单次班次请求
type DropRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

// DropMakeupRequest 放弃并补班请求
type DropMakeupRequest struct {
	MakeupOccurrenceID string `json:"makeup_occurrence_id" binding:"required,uuid"`
	Notes              string `json:"notes"                binding:"max=500"`
}

// OccurrenceRangeQuery 实例时间范围查询
type OccurrenceRangeQuery struct {
	PeriodID string `form:"period_id" binding:"required,uuid"`
	From     string `form:"from"` // RFC3339，可选
	To       string `form:"to"`
}
