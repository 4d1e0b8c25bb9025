package model

import "time"

// ShiftAttendance 考勤记录 — 对应 shift_attendances，(occurrence, user) 唯一
type ShiftAttendance struct {
	ShiftAttendanceID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"shift_attendance_id"`
	ShiftOccurrenceID string     `gorm:"type:uuid;not null"                             json:"shift_occurrence_id"`
	UserID            string     `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Status            string     `gorm:"type:varchar(20);not null;default:'upcoming'"   json:"status"` // upcoming | present | absent | excused | dropped | dropped_makeup
	IsExcused         bool       `gorm:"not null;default:false"                         json:"is_excused"`
	IsMakeup          bool       `gorm:"not null;default:false"                         json:"is_makeup"`
	DidArriveLate     bool       `gorm:"not null;default:false"                         json:"did_arrive_late"`
	DidLeaveEarly     bool       `gorm:"not null;default:false"                         json:"did_leave_early"`
	TimeIn            *time.Time `json:"time_in,omitempty"`
	TimeOut           *time.Time `json:"time_out,omitempty"`
	DroppedNotes      *string    `gorm:"type:text"                                      json:"dropped_notes,omitempty"`
	ExcusedBy         *string    `gorm:"type:uuid"                                      json:"excused_by,omitempty"`
	ExcusedAt         *time.Time `json:"excused_at,omitempty"`
	ExcuseNotes       *string    `gorm:"type:text"                                      json:"excuse_notes,omitempty"`
	BaseModel

	Occurrence *ShiftOccurrence `gorm:"foreignKey:ShiftOccurrenceID;references:ShiftOccurrenceID" json:"occurrence,omitempty"`
	User       *User            `gorm:"foreignKey:UserID;references:UserID"                       json:"user,omitempty"`
}

func (ShiftAttendance) TableName() string { return "shift_attendances" }
