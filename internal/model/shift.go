package model

import "time"

// RoleRequirement 班次类型的角色要求
const (
	RoleRequirementNone = ""
	RoleRequirementAll  = "all"
	RoleRequirementAny  = "any"
)

// ShiftType 班次类型 — 对应 shift_types
type ShiftType struct {
	ShiftTypeID             string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"shift_type_id"`
	PeriodID                string      `gorm:"type:uuid;not null;index"                       json:"period_id"`
	Name                    string      `gorm:"type:varchar(100);not null"                     json:"name"`
	Location                string      `gorm:"type:varchar(200);not null;default:''"          json:"location"`
	Color                   *string     `gorm:"type:varchar(20)"                               json:"color,omitempty"`
	Description             *string     `gorm:"type:text"                                      json:"description,omitempty"`
	RoleRequirement         string      `gorm:"type:varchar(10);not null;default:''"           json:"role_requirement"` // all | any | ''
	RoleIDs                 StringArray `gorm:"type:uuid[];not null;default:'{}'"              json:"role_ids"`
	CanSelfAssign           bool        `gorm:"not null"                                       json:"can_self_assign"`
	IsBalancedAcrossPeriod  bool        `gorm:"not null;default:false"                         json:"is_balanced_across_period"`
	IsBalancedAcrossDay     bool        `gorm:"not null;default:false"                         json:"is_balanced_across_day"`
	IsBalancedAcrossOverlap bool        `gorm:"not null;default:false"                         json:"is_balanced_across_overlap"`
	VersionedModel

	Period *Period `gorm:"foreignKey:PeriodID;references:PeriodID" json:"period,omitempty"`
}

func (ShiftType) TableName() string { return "shift_types" }

// MeetsRoleRequirement 用户角色是否满足班次类型要求
func (t *ShiftType) MeetsRoleRequirement(userRoleIDs []string) bool {
	if len(t.RoleIDs) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(userRoleIDs))
	for _, r := range userRoleIDs {
		have[r] = struct{}{}
	}
	switch t.RoleRequirement {
	case RoleRequirementAll:
		for _, r := range t.RoleIDs {
			if _, ok := have[r]; !ok {
				return false
			}
		}
		return true
	case RoleRequirementAny:
		for _, r := range t.RoleIDs {
			if _, ok := have[r]; ok {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// ShiftSchedule 每周重复的排班模板 — 对应 shift_schedules
type ShiftSchedule struct {
	ShiftScheduleID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"shift_schedule_id"`
	ShiftTypeID     string `gorm:"type:uuid;not null;index"                       json:"shift_type_id"`
	DayOfWeek       int    `gorm:"type:smallint;not null"                         json:"day_of_week"` // 0=周日
	StartTime       string `gorm:"type:time;not null"                             json:"start_time"`
	EndTime         string `gorm:"type:time;not null"                             json:"end_time"`
	SlotCount       int    `gorm:"not null;default:1"                             json:"slot_count"`
	VersionedModel

	ShiftType *ShiftType `gorm:"foreignKey:ShiftTypeID;references:ShiftTypeID" json:"shift_type,omitempty"`
}

func (ShiftSchedule) TableName() string { return "shift_schedules" }

// ShiftScheduleAssignment 模板报名关系 — 对应 shift_schedule_assignments
type ShiftScheduleAssignment struct {
	ShiftScheduleID string    `gorm:"type:uuid;primaryKey"               json:"shift_schedule_id"`
	UserID          string    `gorm:"type:uuid;primaryKey"               json:"user_id"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

func (ShiftScheduleAssignment) TableName() string { return "shift_schedule_assignments" }

// ShiftOccurrence 排班实例 — 对应 shift_occurrences，(schedule, timestamp, slot) 唯一
type ShiftOccurrence struct {
	ShiftOccurrenceID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"shift_occurrence_id"`
	ShiftScheduleID   string    `gorm:"type:uuid;not null"                             json:"shift_schedule_id"`
	Timestamp         time.Time `gorm:"not null"                                       json:"timestamp"`
	Slot              int       `gorm:"not null;default:0"                             json:"slot"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	Assignee      *ShiftOccurrenceAssignee `gorm:"foreignKey:ShiftOccurrenceID;references:ShiftOccurrenceID" json:"assignee,omitempty"`
	ShiftSchedule *ShiftSchedule           `gorm:"foreignKey:ShiftScheduleID;references:ShiftScheduleID"     json:"shift_schedule,omitempty"`
}

func (ShiftOccurrence) TableName() string { return "shift_occurrences" }

// AssigneeID 当前占用该槽位的用户，空串表示未分配
func (o *ShiftOccurrence) AssigneeID() string {
	if o.Assignee == nil {
		return ""
	}
	return o.Assignee.UserID
}

// ShiftOccurrenceAssignee 实例占用关系 — 对应 shift_occurrence_assignees，每个实例至多一人
type ShiftOccurrenceAssignee struct {
	ShiftOccurrenceID string    `gorm:"type:uuid;primaryKey"               json:"shift_occurrence_id"`
	UserID            string    `gorm:"type:uuid;not null;index"           json:"user_id"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ShiftOccurrenceAssignee) TableName() string { return "shift_occurrence_assignees" }
