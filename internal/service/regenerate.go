package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/internal/scheduling"
	"hums/backend/pkg/calendar"
	apperrors "hums/backend/pkg/errors"
	"hums/backend/pkg/metrics"
)

// ErrRegenerateFailed 周期级重新生成在某个模板上失败，Detail 中带模板 ID
var ErrRegenerateFailed = apperrors.Internal(50011, "排班实例重新生成失败")

// regenerator 排班实例重新生成：周期展开 + 对账 + 写入，全程在调用方给出的事务内
type regenerator struct {
	cal     *calendar.Calendar
	metrics metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

type regenerateResult struct {
	Created int
	Deleted int
}

// run 重新生成单个模板的实例。现存实例行先加锁，已报名用户补入新建的未来槽位。
func (g *regenerator) run(ctx context.Context, tx *repository.Repository, sched *model.ShiftSchedule, period *model.Period, exceptions []model.PeriodException) (regenerateResult, error) {
	var res regenerateResult

	windows := make([]scheduling.Window, len(exceptions))
	for i, e := range exceptions {
		windows[i] = scheduling.Window{Start: e.StartAt, End: e.EndAt}
	}
	expected, err := scheduling.ExpectedInstants(g.cal,
		scheduling.Window{Start: period.StartAt, End: period.EndAt},
		scheduling.WeeklyRule{DayOfWeek: time.Weekday(sched.DayOfWeek), StartTime: sched.StartTime},
		windows)
	if err != nil {
		return res, ErrScheduleInvalid.WithDetail("开始时间 %q 无法解析", sched.StartTime).Wrap(err)
	}

	occs, err := tx.Occurrence.LockBySchedule(ctx, sched.ShiftScheduleID)
	if err != nil {
		return res, err
	}
	live := make([]scheduling.LiveOccurrence, len(occs))
	for i := range occs {
		live[i] = scheduling.LiveOccurrence{ID: occs[i].ShiftOccurrenceID, Timestamp: occs[i].Timestamp, Slot: occs[i].Slot}
	}

	plan := scheduling.Reconcile(expected, live, sched.SlotCount)
	if plan.Empty() {
		return res, nil
	}

	if len(plan.Delete) > 0 {
		deleted, err := tx.Occurrence.DeleteByIDs(ctx, plan.Delete)
		if err != nil {
			return res, err
		}
		res.Deleted = int(deleted)
	}

	if len(plan.Create) > 0 {
		created := make([]model.ShiftOccurrence, len(plan.Create))
		touched := make(map[int64]bool)
		for i, k := range plan.Create {
			created[i] = model.ShiftOccurrence{
				ShiftOccurrenceID: uuid.NewString(),
				ShiftScheduleID:   sched.ShiftScheduleID,
				Timestamp:         k.Timestamp,
				Slot:              k.Slot,
			}
			touched[k.Timestamp.UnixNano()] = true
		}
		inserted, err := tx.Occurrence.BatchCreate(ctx, created)
		if err != nil {
			return res, err
		}
		if err := scheduling.VerifyInserted(len(created), inserted); err != nil {
			g.logger.Error("排班实例写入数量不一致",
				zap.String("shift_schedule_id", sched.ShiftScheduleID),
				zap.Int("requested", len(created)),
				zap.Int64("inserted", inserted))
			return res, err
		}
		res.Created = len(created)

		if err := g.fillRegistrants(ctx, tx, sched.ShiftScheduleID, plan.Delete, occs, created, touched); err != nil {
			return res, err
		}
	}

	g.metrics.RecordReconcile(res.Created, res.Deleted)
	g.logger.Info("排班实例已重新生成",
		zap.String("shift_schedule_id", sched.ShiftScheduleID),
		zap.Int("created", res.Created),
		zap.Int("deleted", res.Deleted))
	return res, nil
}

// fillRegistrants 已报名用户进入新建时刻（或扩容槽位）中尚未开始的空槽
func (g *regenerator) fillRegistrants(ctx context.Context, tx *repository.Repository, scheduleID string, deletedIDs []string, before, created []model.ShiftOccurrence, touched map[int64]bool) error {
	registrations, err := tx.ShiftSchedule.ListAssignments(ctx, scheduleID)
	if err != nil || len(registrations) == 0 {
		return err
	}
	userIDs := make([]string, len(registrations))
	for i, r := range registrations {
		userIDs[i] = r.UserID
	}

	gone := make(map[string]bool, len(deletedIDs))
	for _, id := range deletedIDs {
		gone[id] = true
	}
	current := make([]model.ShiftOccurrence, 0, len(before)+len(created))
	for _, o := range before {
		if !gone[o.ShiftOccurrenceID] && touched[o.Timestamp.UnixNano()] {
			current = append(current, o)
		}
	}
	current = append(current, created...)

	filled, err := fillFutureSlots(ctx, tx, current, userIDs, g.now())
	if err != nil {
		return err
	}
	if len(filled.Full) > 0 {
		g.logger.Debug("部分新建时刻槽位不足，未能补入全部报名用户",
			zap.String("shift_schedule_id", scheduleID),
			zap.Times("full_timestamps", filled.Full))
	}
	return nil
}

// regeneratePeriod 逐个模板重新生成，每个模板一个事务；中途失败时已处理的模板保持更新，
// 并以失败模板的 ID 返回错误。
func (g *regenerator) regeneratePeriod(ctx context.Context, repo *repository.Repository, periodID string) (*dto.RegenerateResult, error) {
	schedules, err := repo.ShiftSchedule.ListByPeriod(ctx, periodID)
	if err != nil {
		g.logger.Error("查询周期排班模板失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}

	result := &dto.RegenerateResult{}
	for i := range schedules {
		id := schedules[i].ShiftScheduleID
		var res regenerateResult
		err := repo.Transaction(ctx, func(tx *repository.Repository) error {
			sched, err := tx.ShiftSchedule.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			period, err := tx.Period.GetByID(ctx, periodID)
			if err != nil {
				return err
			}
			exceptions, err := tx.PeriodException.ListByPeriod(ctx, periodID)
			if err != nil {
				return err
			}
			res, err = g.run(ctx, tx, sched, period, exceptions)
			return err
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 模板在遍历期间被删除
			continue
		}
		if err != nil {
			g.logger.Error("周期排班重新生成失败",
				zap.String("period_id", periodID),
				zap.String("shift_schedule_id", id),
				zap.Error(err))
			return result, ErrRegenerateFailed.WithDetail("排班模板 %s", id).Wrap(err)
		}
		result.Schedules++
		result.Created += res.Created
		result.Deleted += res.Deleted
	}
	return result, nil
}
