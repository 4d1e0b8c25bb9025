package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hums/backend/internal/model"
)

// OccurrenceRepository 排班实例及槽位占用数据访问接口
type OccurrenceRepository interface {
	GetByID(ctx context.Context, id string) (*model.ShiftOccurrence, error)
	// GetForUpdate 锁定实例行后再读取占用情况
	GetForUpdate(ctx context.Context, id string) (*model.ShiftOccurrence, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]model.ShiftOccurrence, error)
	// LockBySchedule 锁定模板下全部实例行
	LockBySchedule(ctx context.Context, scheduleID string) ([]model.ShiftOccurrence, error)
	// BatchCreate 冲突行跳过，返回实际插入行数
	BatchCreate(ctx context.Context, occs []model.ShiftOccurrence) (int64, error)
	// DeleteByIDs 连同考勤与占用一起删除
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	Assign(ctx context.Context, occurrenceID, userID string) error
	Unassign(ctx context.Context, occurrenceID, userID string) (bool, error)
	ListAssignedToUser(ctx context.Context, userID string, from, to time.Time) ([]model.ShiftOccurrence, error)
	ListByPeriod(ctx context.Context, periodID string, from, to time.Time) ([]model.ShiftOccurrence, error)
	CountBySchedule(ctx context.Context, scheduleIDs []string) (map[string]int, error)
}

type occurrenceRepo struct {
	db *gorm.DB
}

func NewOccurrenceRepo(db *gorm.DB) OccurrenceRepository {
	return &occurrenceRepo{db: db}
}

func (r *occurrenceRepo) GetByID(ctx context.Context, id string) (*model.ShiftOccurrence, error) {
	var o model.ShiftOccurrence
	err := r.db.WithContext(ctx).
		Preload("Assignee").
		Preload("ShiftSchedule.ShiftType").
		Where("shift_occurrence_id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *occurrenceRepo) GetForUpdate(ctx context.Context, id string) (*model.ShiftOccurrence, error) {
	var o model.ShiftOccurrence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_occurrence_id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}

	// 加锁之后再读占用关系，保证看到其他事务已提交的结果
	var assignee model.ShiftOccurrenceAssignee
	err = r.db.WithContext(ctx).
		Where("shift_occurrence_id = ?", id).
		Limit(1).
		Find(&assignee).Error
	if err != nil {
		return nil, err
	}
	if assignee.UserID != "" {
		o.Assignee = &assignee
	}
	return &o, nil
}

func (r *occurrenceRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]model.ShiftOccurrence, error) {
	var list []model.ShiftOccurrence
	err := r.db.WithContext(ctx).
		Preload("Assignee").
		Where("shift_schedule_id = ?", scheduleID).
		Order("timestamp ASC, slot ASC").
		Find(&list).Error
	return list, err
}

func (r *occurrenceRepo) LockBySchedule(ctx context.Context, scheduleID string) ([]model.ShiftOccurrence, error) {
	var list []model.ShiftOccurrence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_schedule_id = ?", scheduleID).
		Order("timestamp ASC, slot ASC").
		Find(&list).Error
	if err != nil || len(list) == 0 {
		return list, err
	}

	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ShiftOccurrenceID
	}
	var assignees []model.ShiftOccurrenceAssignee
	if err := r.db.WithContext(ctx).Where("shift_occurrence_id IN ?", ids).Find(&assignees).Error; err != nil {
		return nil, err
	}
	byOcc := make(map[string]*model.ShiftOccurrenceAssignee, len(assignees))
	for i := range assignees {
		byOcc[assignees[i].ShiftOccurrenceID] = &assignees[i]
	}
	for i := range list {
		list[i].Assignee = byOcc[list[i].ShiftOccurrenceID]
	}
	return list, nil
}

func (r *occurrenceRepo) BatchCreate(ctx context.Context, occs []model.ShiftOccurrence) (int64, error) {
	if len(occs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shift_schedule_id"}, {Name: "timestamp"}, {Name: "slot"}},
			DoNothing: true,
		}).
		Create(&occs)
	return result.RowsAffected, result.Error
}

func (r *occurrenceRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("shift_occurrence_id IN ?", ids).Delete(&model.ShiftAttendance{}).Error; err != nil {
		return 0, err
	}
	if err := db.Where("shift_occurrence_id IN ?", ids).Delete(&model.ShiftOccurrenceAssignee{}).Error; err != nil {
		return 0, err
	}
	result := db.Where("shift_occurrence_id IN ?", ids).Delete(&model.ShiftOccurrence{})
	return result.RowsAffected, result.Error
}

func (r *occurrenceRepo) Assign(ctx context.Context, occurrenceID, userID string) error {
	return r.db.WithContext(ctx).
		Create(&model.ShiftOccurrenceAssignee{ShiftOccurrenceID: occurrenceID, UserID: userID}).Error
}

func (r *occurrenceRepo) Unassign(ctx context.Context, occurrenceID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("shift_occurrence_id = ? AND user_id = ?", occurrenceID, userID).
		Delete(&model.ShiftOccurrenceAssignee{})
	return result.RowsAffected > 0, result.Error
}

func (r *occurrenceRepo) ListAssignedToUser(ctx context.Context, userID string, from, to time.Time) ([]model.ShiftOccurrence, error) {
	var list []model.ShiftOccurrence
	db := r.db.WithContext(ctx).
		Preload("Assignee").
		Preload("ShiftSchedule.ShiftType").
		Joins("JOIN shift_occurrence_assignees oa ON oa.shift_occurrence_id = shift_occurrences.shift_occurrence_id").
		Where("oa.user_id = ?", userID)
	db = applyRange(db, from, to)
	err := db.Order("shift_occurrences.timestamp ASC").Find(&list).Error
	return list, err
}

func (r *occurrenceRepo) ListByPeriod(ctx context.Context, periodID string, from, to time.Time) ([]model.ShiftOccurrence, error) {
	var list []model.ShiftOccurrence
	db := r.db.WithContext(ctx).
		Preload("Assignee").
		Preload("ShiftSchedule.ShiftType").
		Joins("JOIN shift_schedules ss ON ss.shift_schedule_id = shift_occurrences.shift_schedule_id").
		Joins("JOIN shift_types st ON st.shift_type_id = ss.shift_type_id").
		Where("st.period_id = ?", periodID)
	db = applyRange(db, from, to)
	err := db.Order("shift_occurrences.timestamp ASC, shift_occurrences.slot ASC").Find(&list).Error
	return list, err
}

func (r *occurrenceRepo) CountBySchedule(ctx context.Context, scheduleIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(scheduleIDs))
	if len(scheduleIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ShiftScheduleID string
		Count           int
	}
	err := r.db.WithContext(ctx).
		Model(&model.ShiftOccurrence{}).
		Select("shift_schedule_id, COUNT(DISTINCT timestamp) AS count").
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

// applyRange 零值时间表示不限
func applyRange(db *gorm.DB, from, to time.Time) *gorm.DB {
	if !from.IsZero() {
		db = db.Where("shift_occurrences.timestamp >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("shift_occurrences.timestamp < ?", to)
	}
	return db
}
