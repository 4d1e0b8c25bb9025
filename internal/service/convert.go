package service

import (
	"time"

	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/scheduling"
)

// ── model → dto 映射 ──

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toPeriodResponse(p *model.Period) *dto.PeriodResponse {
	roleIDs := []string(p.RoleIDs)
	if roleIDs == nil {
		roleIDs = []string{}
	}
	return &dto.PeriodResponse{
		ID:                  p.PeriodID,
		Name:                p.Name,
		StartAt:             formatTime(p.StartAt),
		EndAt:               formatTime(p.EndAt),
		ScheduleSignupStart: formatTimePtr(p.ScheduleSignupStart),
		ScheduleSignupEnd:   formatTimePtr(p.ScheduleSignupEnd),
		ScheduleModifyStart: formatTimePtr(p.ScheduleModifyStart),
		ScheduleModifyEnd:   formatTimePtr(p.ScheduleModifyEnd),
		RoleIDs:             roleIDs,
		IsVisible:           p.IsVisible,
		Version:             p.Version,
	}
}

func toExceptionResponse(e *model.PeriodException) dto.ExceptionResponse {
	return dto.ExceptionResponse{
		ID:       e.PeriodExceptionID,
		PeriodID: e.PeriodID,
		Name:     e.Name,
		StartAt:  formatTime(e.StartAt),
		EndAt:    formatTime(e.EndAt),
	}
}

func toShiftTypeResponse(t *model.ShiftType) *dto.ShiftTypeResponse {
	roleIDs := []string(t.RoleIDs)
	if roleIDs == nil {
		roleIDs = []string{}
	}
	return &dto.ShiftTypeResponse{
		ID:                      t.ShiftTypeID,
		PeriodID:                t.PeriodID,
		Name:                    t.Name,
		Location:                t.Location,
		Color:                   t.Color,
		Description:             t.Description,
		RoleRequirement:         t.RoleRequirement,
		RoleIDs:                 roleIDs,
		CanSelfAssign:           t.CanSelfAssign,
		IsBalancedAcrossPeriod:  t.IsBalancedAcrossPeriod,
		IsBalancedAcrossDay:     t.IsBalancedAcrossDay,
		IsBalancedAcrossOverlap: t.IsBalancedAcrossOverlap,
		Version:                 t.Version,
	}
}

func toScheduleResponse(s *model.ShiftSchedule) dto.ScheduleResponse {
	resp := dto.ScheduleResponse{
		ID:          s.ShiftScheduleID,
		ShiftTypeID: s.ShiftTypeID,
		DayOfWeek:   s.DayOfWeek,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		SlotCount:   s.SlotCount,
		Version:     s.Version,
	}
	if s.ShiftType != nil {
		resp.ShiftTypeName = s.ShiftType.Name
		resp.Location = s.ShiftType.Location
	}
	return resp
}

func toOccurrenceResponse(o *model.ShiftOccurrence, end time.Time) dto.OccurrenceResponse {
	resp := dto.OccurrenceResponse{
		ID:         o.ShiftOccurrenceID,
		ScheduleID: o.ShiftScheduleID,
		Timestamp:  formatTime(o.Timestamp),
		EndAt:      formatTime(end),
		Slot:       o.Slot,
		AssigneeID: o.AssigneeID(),
	}
	if o.ShiftSchedule != nil {
		sr := toScheduleResponse(o.ShiftSchedule)
		resp.Schedule = &sr
	}
	return resp
}

func toUserBrief(u *model.User) *dto.UserBrief {
	if u == nil {
		return nil
	}
	return &dto.UserBrief{ID: u.UserID, Name: u.Name, Email: u.Email}
}

func toAttendanceResponse(a *model.ShiftAttendance, rec scheduling.AttendanceRecord) dto.AttendanceResponse {
	resp := dto.AttendanceResponse{
		ID:            a.ShiftAttendanceID,
		OccurrenceID:  a.ShiftOccurrenceID,
		UserID:        a.UserID,
		User:          toUserBrief(a.User),
		Status:        a.Status,
		IsExcused:     a.IsExcused,
		IsMakeup:      a.IsMakeup,
		DidArriveLate: a.DidArriveLate,
		DidLeaveEarly: a.DidLeaveEarly,
		TimeIn:        formatTimePtr(a.TimeIn),
		TimeOut:       formatTimePtr(a.TimeOut),
		DroppedNotes:  a.DroppedNotes,
		ExcuseNotes:   a.ExcuseNotes,
		NeedsReview:   rec.NeedsReview(),
	}
	if a.Occurrence != nil {
		resp.ScheduledAt = formatTime(a.Occurrence.Timestamp)
	}
	return resp
}

// toLoad 存储层模板到均衡校验快照的显式映射
func toLoad(s *model.ShiftSchedule, filled int) scheduling.ScheduleLoad {
	return scheduling.ScheduleLoad{
		ID:        s.ShiftScheduleID,
		DayOfWeek: s.DayOfWeek,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		SlotCount: s.SlotCount,
		Filled:    filled,
	}
}

func balancingRules(t *model.ShiftType) scheduling.BalancingRules {
	return scheduling.BalancingRules{
		AcrossPeriod:  t.IsBalancedAcrossPeriod,
		AcrossDay:     t.IsBalancedAcrossDay,
		AcrossOverlap: t.IsBalancedAcrossOverlap,
	}
}
