package scheduling

import (
	"math"
	"time"
)

// AttendanceStatus 考勤状态
type AttendanceStatus string

const (
	StatusUpcoming      AttendanceStatus = "upcoming"
	StatusPresent       AttendanceStatus = "present"
	StatusAbsent        AttendanceStatus = "absent"
	StatusExcused       AttendanceStatus = "excused"
	StatusDropped       AttendanceStatus = "dropped"
	StatusDroppedMakeup AttendanceStatus = "dropped_makeup"
)

// Valid 是否为已知状态
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusPresent, StatusAbsent, StatusExcused, StatusDropped, StatusDroppedMakeup:
		return true
	}
	return false
}

// Protected 受保护状态只能由显式的业务动作修改，后台批处理不得覆盖
func (s AttendanceStatus) Protected() bool {
	return s == StatusDropped || s == StatusDroppedMakeup || s == StatusExcused
}

// AttendanceRecord 考勤行及其排班时刻
type AttendanceRecord struct {
	Status         AttendanceStatus
	IsExcused      bool
	IsMakeup       bool
	DidArriveLate  bool
	DidLeaveEarly  bool
	TimeIn         *time.Time
	TimeOut        *time.Time
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

// StatusChange 状态变更；指针字段为 nil 表示未提供，变更状态时会被清空
type StatusChange struct {
	Status        AttendanceStatus
	TimeIn        *time.Time
	TimeOut       *time.Time
	DidArriveLate *bool
	DidLeaveEarly *bool
}

// Apply 应用状态变更。状态改变时打卡时间与迟到/早退标记一律重置，除非调用方显式给出新值。
func (r *AttendanceRecord) Apply(c StatusChange) {
	if c.Status != r.Status {
		r.TimeIn, r.TimeOut = nil, nil
		r.DidArriveLate, r.DidLeaveEarly = false, false
	}
	r.Status = c.Status
	r.IsExcused = c.Status == StatusExcused
	if c.TimeIn != nil {
		r.TimeIn = c.TimeIn
	}
	if c.TimeOut != nil {
		r.TimeOut = c.TimeOut
	}
	if c.DidArriveLate != nil {
		r.DidArriveLate = *c.DidArriveLate
	}
	if c.DidLeaveEarly != nil {
		r.DidLeaveEarly = *c.DidLeaveEarly
	}
}

// ShouldMarkAbsent 后台缺勤判定：仅 upcoming 且计划结束时刻已过
func (r AttendanceRecord) ShouldMarkAbsent(now time.Time) bool {
	return r.Status == StatusUpcoming && !now.Before(r.ScheduledEnd)
}

// NeedsReview 需要管理员复核：缺勤、放弃、迟到或早退；已请假的一律不需要
func (r AttendanceRecord) NeedsReview() bool {
	if r.Status == StatusExcused || r.IsExcused {
		return false
	}
	return r.Status == StatusAbsent || r.Status == StatusDropped || r.DidArriveLate || r.DidLeaveEarly
}

// Eligible 计入出勤率分母：已开始且状态不是 dropped/dropped_makeup/upcoming
func (r AttendanceRecord) Eligible(now time.Time) bool {
	if !r.ScheduledStart.Before(now) {
		return false
	}
	switch r.Status {
	case StatusDropped, StatusDroppedMakeup, StatusUpcoming:
		return false
	}
	return true
}

// IsLate 签到是否超过宽限期
func IsLate(scheduledStart, at time.Time, grace time.Duration) bool {
	return at.After(scheduledStart.Add(grace))
}

// IsEarly 签退是否早于宽限期
func IsEarly(scheduledEnd, at time.Time, grace time.Duration) bool {
	return at.Before(scheduledEnd.Add(-grace))
}

// AttendanceStats 考勤统计
type AttendanceStats struct {
	Total          int     `json:"total"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	LeftEarly      int     `json:"left_early"`
	Dropped        int     `json:"dropped"`
	DroppedMakeup  int     `json:"dropped_makeup"`
	Excused        int     `json:"excused"`
	Upcoming       int     `json:"upcoming"`
	Eligible       int     `json:"eligible"`
	AttendanceRate float64 `json:"attendance_rate"`
	ActualHours    float64 `json:"actual_hours"`
	ScheduledHours float64 `json:"scheduled_hours"`
}

// ComputeStats 汇总考勤统计。请假按满勤计入出勤率，并按计划时长计入实际工时。
func ComputeStats(records []AttendanceRecord, now time.Time) AttendanceStats {
	var st AttendanceStats
	var actual, scheduled time.Duration

	for _, r := range records {
		st.Total++
		switch r.Status {
		case StatusPresent:
			st.Present++
		case StatusAbsent:
			st.Absent++
		case StatusDropped:
			st.Dropped++
		case StatusDroppedMakeup:
			st.DroppedMakeup++
		case StatusExcused:
			st.Excused++
		case StatusUpcoming:
			st.Upcoming++
		}
		if r.DidArriveLate {
			st.Late++
		}
		if r.DidLeaveEarly {
			st.LeftEarly++
		}

		if !r.Eligible(now) {
			continue
		}
		st.Eligible++
		duration := r.ScheduledEnd.Sub(r.ScheduledStart)
		scheduled += duration
		switch {
		case r.Status == StatusExcused:
			actual += duration
		case r.TimeIn != nil && r.TimeOut != nil && r.TimeOut.After(*r.TimeIn):
			actual += r.TimeOut.Sub(*r.TimeIn)
		}
	}

	if st.Eligible > 0 {
		st.AttendanceRate = round2(float64(st.Present+st.Excused) / float64(st.Eligible) * 100)
	}
	st.ActualHours = round2(actual.Hours())
	st.ScheduledHours = round2(scheduled.Hours())
	return st
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
