package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// TxRunner 在事务中执行 fn，fn 收到绑定到该事务的 Repository 聚合
type TxRunner func(ctx context.Context, fn func(tx *Repository) error) error

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User            UserRepository
	Period          PeriodRepository
	PeriodException PeriodExceptionRepository
	ShiftType       ShiftTypeRepository
	ShiftSchedule   ShiftScheduleRepository
	Occurrence      OccurrenceRepository
	Attendance      AttendanceRepository
	SystemSetting   SystemSettingRepository

	// Tx 为 nil 时 Transaction 直接在当前聚合上执行（测试桩）
	Tx TxRunner
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:            NewUserRepo(db),
		Period:          NewPeriodRepo(db),
		PeriodException: NewPeriodExceptionRepo(db),
		ShiftType:       NewShiftTypeRepo(db),
		ShiftSchedule:   NewShiftScheduleRepo(db),
		Occurrence:      NewOccurrenceRepo(db),
		Attendance:      NewAttendanceRepo(db),
		SystemSetting:   NewSystemSettingRepo(db),
		Tx: func(ctx context.Context, fn func(tx *Repository) error) error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return fn(NewRepository(tx))
			})
		},
	}
}

// Transaction 在单个数据库事务中执行 fn，fn 返回错误时整体回滚
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.Tx == nil {
		return fn(r)
	}
	return r.Tx(ctx, fn)
}

// IsUniqueViolation 判断是否为唯一约束冲突（SQLSTATE 23505）
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
