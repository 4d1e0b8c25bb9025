package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hums/backend/internal/model"
)

// AttendanceRepository 考勤数据访问接口
type AttendanceRepository interface {
	GetByID(ctx context.Context, id string) (*model.ShiftAttendance, error)
	Get(ctx context.Context, occurrenceID, userID string) (*model.ShiftAttendance, error)
	// Upsert 按 (occurrence, user) 插入或覆盖
	Upsert(ctx context.Context, a *model.ShiftAttendance) error
	Update(ctx context.Context, a *model.ShiftAttendance) error
	Delete(ctx context.Context, occurrenceID, userID string) error
	ListByPeriod(ctx context.Context, periodID, userID string) ([]model.ShiftAttendance, error)
	// ListUpcomingStartedBefore 状态为 upcoming 且实例开始时刻早于 before 的记录
	ListUpcomingStartedBefore(ctx context.Context, before time.Time) ([]model.ShiftAttendance, error)
	// MarkAbsent 仅更新仍为 upcoming 的行，受保护状态不会被覆盖
	MarkAbsent(ctx context.Context, ids []string) (int64, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) GetByID(ctx context.Context, id string) (*model.ShiftAttendance, error) {
	var a model.ShiftAttendance
	err := r.db.WithContext(ctx).
		Preload("Occurrence.ShiftSchedule.ShiftType").
		Where("shift_attendance_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attendanceRepo) Get(ctx context.Context, occurrenceID, userID string) (*model.ShiftAttendance, error) {
	var a model.ShiftAttendance
	err := r.db.WithContext(ctx).
		Where("shift_occurrence_id = ? AND user_id = ?", occurrenceID, userID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attendanceRepo) Upsert(ctx context.Context, a *model.ShiftAttendance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shift_occurrence_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "is_excused", "is_makeup", "did_arrive_late", "did_leave_early",
				"time_in", "time_out", "dropped_notes", "excused_by", "excused_at", "excuse_notes",
				"updated_at",
			}),
		}).
		Create(a).Error
}

func (r *attendanceRepo) Update(ctx context.Context, a *model.ShiftAttendance) error {
	return r.db.WithContext(ctx).
		Model(a).
		Where("shift_attendance_id = ?", a.ShiftAttendanceID).
		Updates(map[string]interface{}{
			"status":          a.Status,
			"is_excused":      a.IsExcused,
			"is_makeup":       a.IsMakeup,
			"did_arrive_late": a.DidArriveLate,
			"did_leave_early": a.DidLeaveEarly,
			"time_in":         a.TimeIn,
			"time_out":        a.TimeOut,
			"dropped_notes":   a.DroppedNotes,
			"excused_by":      a.ExcusedBy,
			"excused_at":      a.ExcusedAt,
			"excuse_notes":    a.ExcuseNotes,
			"updated_by":      a.UpdatedBy,
		}).Error
}

func (r *attendanceRepo) Delete(ctx context.Context, occurrenceID, userID string) error {
	return r.db.WithContext(ctx).
		Where("shift_occurrence_id = ? AND user_id = ?", occurrenceID, userID).
		Delete(&model.ShiftAttendance{}).Error
}

func (r *attendanceRepo) ListByPeriod(ctx context.Context, periodID, userID string) ([]model.ShiftAttendance, error) {
	var list []model.ShiftAttendance
	db := r.db.WithContext(ctx).
		Preload("Occurrence.ShiftSchedule.ShiftType").
		Preload("User").
		Joins("JOIN shift_occurrences o ON o.shift_occurrence_id = shift_attendances.shift_occurrence_id").
		Joins("JOIN shift_schedules ss ON ss.shift_schedule_id = o.shift_schedule_id").
		Joins("JOIN shift_types st ON st.shift_type_id = ss.shift_type_id").
		Where("st.period_id = ?", periodID)
	if userID != "" {
		db = db.Where("shift_attendances.user_id = ?", userID)
	}
	err := db.Order("o.timestamp ASC").Find(&list).Error
	return list, err
}

func (r *attendanceRepo) ListUpcomingStartedBefore(ctx context.Context, before time.Time) ([]model.ShiftAttendance, error) {
	var list []model.ShiftAttendance
	err := r.db.WithContext(ctx).
		Preload("Occurrence.ShiftSchedule").
		Joins("JOIN shift_occurrences o ON o.shift_occurrence_id = shift_attendances.shift_occurrence_id").
		Where("shift_attendances.status = ? AND o.timestamp < ?", "upcoming", before).
		Find(&list).Error
	return list, err
}

func (r *attendanceRepo) MarkAbsent(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.ShiftAttendance{}).
		Where("shift_attendance_id IN ? AND status = ?", ids, "upcoming").
		Updates(map[string]interface{}{
			"status":          "absent",
			"time_in":         nil,
			"time_out":        nil,
			"did_arrive_late": false,
			"did_leave_early": false,
		})
	return result.RowsAffected, result.Error
}
