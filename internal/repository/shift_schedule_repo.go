package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hums/backend/internal/model"
	pkgerrors "hums/backend/pkg/errors"
)

// ShiftScheduleRepository 排班模板及报名关系数据访问接口
type ShiftScheduleRepository interface {
	Create(ctx context.Context, s *model.ShiftSchedule) error
	GetByID(ctx context.Context, id string) (*model.ShiftSchedule, error)
	// GetForUpdate 以 SELECT ... FOR UPDATE 锁定模板行
	GetForUpdate(ctx context.Context, id string) (*model.ShiftSchedule, error)
	ListByShiftType(ctx context.Context, shiftTypeID string) ([]model.ShiftSchedule, error)
	// LockByShiftType 按主键顺序锁定同一班次类型下的全部模板，均衡校验在此锁下进行
	LockByShiftType(ctx context.Context, shiftTypeID string) ([]model.ShiftSchedule, error)
	ListByPeriod(ctx context.Context, periodID string) ([]model.ShiftSchedule, error)
	ExistsDuplicate(ctx context.Context, shiftTypeID string, dayOfWeek int, startTime, excludeID string) (bool, error)
	Update(ctx context.Context, s *model.ShiftSchedule) error
	Delete(ctx context.Context, id string) error

	// ── 报名关系 ──
	IsRegistered(ctx context.Context, scheduleID, userID string) (bool, error)
	AddAssignment(ctx context.Context, scheduleID, userID string) error
	RemoveAssignment(ctx context.Context, scheduleID, userID string) (bool, error)
	ListAssignments(ctx context.Context, scheduleID string) ([]model.ShiftScheduleAssignment, error)
	CountAssignments(ctx context.Context, scheduleIDs []string) (map[string]int, error)
	ListRegisteredByUser(ctx context.Context, userID, periodID string) ([]model.ShiftSchedule, error)
}

type shiftScheduleRepo struct {
	db *gorm.DB
}

func NewShiftScheduleRepo(db *gorm.DB) ShiftScheduleRepository {
	return &shiftScheduleRepo{db: db}
}

func (r *shiftScheduleRepo) Create(ctx context.Context, s *model.ShiftSchedule) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *shiftScheduleRepo) GetByID(ctx context.Context, id string) (*model.ShiftSchedule, error) {
	var s model.ShiftSchedule
	err := r.db.WithContext(ctx).
		Preload("ShiftType").
		Where("shift_schedule_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftScheduleRepo) GetForUpdate(ctx context.Context, id string) (*model.ShiftSchedule, error) {
	var s model.ShiftSchedule
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_schedule_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftScheduleRepo) ListByShiftType(ctx context.Context, shiftTypeID string) ([]model.ShiftSchedule, error) {
	var list []model.ShiftSchedule
	err := r.db.WithContext(ctx).
		Where("shift_type_id = ?", shiftTypeID).
		Order("day_of_week ASC, start_time ASC").
		Find(&list).Error
	return list, err
}

func (r *shiftScheduleRepo) LockByShiftType(ctx context.Context, shiftTypeID string) ([]model.ShiftSchedule, error) {
	var list []model.ShiftSchedule
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_type_id = ?", shiftTypeID).
		Order("shift_schedule_id ASC").
		Find(&list).Error
	return list, err
}

func (r *shiftScheduleRepo) ListByPeriod(ctx context.Context, periodID string) ([]model.ShiftSchedule, error) {
	var list []model.ShiftSchedule
	err := r.db.WithContext(ctx).
		Preload("ShiftType").
		Joins("JOIN shift_types ON shift_types.shift_type_id = shift_schedules.shift_type_id").
		Where("shift_types.period_id = ?", periodID).
		Order("shift_schedules.day_of_week ASC, shift_schedules.start_time ASC").
		Find(&list).Error
	return list, err
}

func (r *shiftScheduleRepo) ExistsDuplicate(ctx context.Context, shiftTypeID string, dayOfWeek int, startTime, excludeID string) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).
		Model(&model.ShiftSchedule{}).
		Where("shift_type_id = ? AND day_of_week = ? AND start_time = ?", shiftTypeID, dayOfWeek, startTime)
	if excludeID != "" {
		db = db.Where("shift_schedule_id <> ?", excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *shiftScheduleRepo) Update(ctx context.Context, s *model.ShiftSchedule) error {
	oldVersion := s.Version
	result := r.db.WithContext(ctx).
		Model(s).
		Where("shift_schedule_id = ? AND version = ?", s.ShiftScheduleID, oldVersion).
		Updates(map[string]interface{}{
			"day_of_week": s.DayOfWeek,
			"start_time":  s.StartTime,
			"end_time":    s.EndTime,
			"slot_count":  s.SlotCount,
			"updated_by":  s.UpdatedBy,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version = oldVersion + 1
	return nil
}

func (r *shiftScheduleRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("shift_schedule_id = ?", id).
		Delete(&model.ShiftSchedule{}).Error
}

// ── 报名关系 ──

func (r *shiftScheduleRepo) IsRegistered(ctx context.Context, scheduleID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ShiftScheduleAssignment{}).
		Where("shift_schedule_id = ? AND user_id = ?", scheduleID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *shiftScheduleRepo) AddAssignment(ctx context.Context, scheduleID, userID string) error {
	return r.db.WithContext(ctx).
		Create(&model.ShiftScheduleAssignment{ShiftScheduleID: scheduleID, UserID: userID}).Error
}

func (r *shiftScheduleRepo) RemoveAssignment(ctx context.Context, scheduleID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("shift_schedule_id = ? AND user_id = ?", scheduleID, userID).
		Delete(&model.ShiftScheduleAssignment{})
	return result.RowsAffected > 0, result.Error
}

func (r *shiftScheduleRepo) ListAssignments(ctx context.Context, scheduleID string) ([]model.ShiftScheduleAssignment, error) {
	var list []model.ShiftScheduleAssignment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("shift_schedule_id = ?", scheduleID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *shiftScheduleRepo) CountAssignments(ctx context.Context, scheduleIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(scheduleIDs))
	if len(scheduleIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ShiftScheduleID string
		Count           int
	}
	err := r.db.WithContext(ctx).
		Model(&model.ShiftScheduleAssignment{}).
		Select("shift_schedule_id, COUNT(*) AS count").
		Where("shift_schedule_id IN ?", scheduleIDs).
		Group("shift_schedule_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ShiftScheduleID] = row.Count
	}
	return counts, nil
}

func (r *shiftScheduleRepo) ListRegisteredByUser(ctx context.Context, userID, periodID string) ([]model.ShiftSchedule, error) {
	var list []model.ShiftSchedule
	err := r.db.WithContext(ctx).
		Preload("ShiftType").
		Joins("JOIN shift_schedule_assignments a ON a.shift_schedule_id = shift_schedules.shift_schedule_id").
		Joins("JOIN shift_types ON shift_types.shift_type_id = shift_schedules.shift_type_id").
		Where("a.user_id = ? AND shift_types.period_id = ?", userID, periodID).
		Order("shift_schedules.day_of_week ASC, shift_schedules.start_time ASC").
		Find(&list).Error
	return list, err
}
