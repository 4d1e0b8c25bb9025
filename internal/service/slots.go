package service

import (
	"context"
	"sort"
	"time"

	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/internal/scheduling"
	"hums/backend/pkg/calendar"
)

// fillResult fillFutureSlots 的结果
type fillResult struct {
	Assigned int
	// Full 至少有一个用户因槽位已满而未能占位的时刻
	Full []time.Time
}

// fillFutureSlots 对每个尚未开始的时刻，把 userIDs 中尚未占位的用户依次放入槽位编号最小的空槽。
// 时刻已满时跳过并记入 Full。occs 会被原地更新占用信息。
func fillFutureSlots(ctx context.Context, tx *repository.Repository, occs []model.ShiftOccurrence, userIDs []string, now time.Time) (fillResult, error) {
	var res fillResult
	for _, group := range groupByTimestamp(occs) {
		if !group[0].Timestamp.After(now) {
			continue
		}
		held := make(map[string]bool, len(group))
		for _, o := range group {
			if id := o.AssigneeID(); id != "" {
				held[id] = true
			}
		}
		for _, uid := range userIDs {
			if held[uid] {
				continue
			}
			slot := firstFreeSlot(group)
			if slot == nil {
				res.Full = append(res.Full, group[0].Timestamp)
				break
			}
			if err := assignOccurrence(ctx, tx, slot, uid, false); err != nil {
				return res, err
			}
			held[uid] = true
			res.Assigned++
		}
	}
	return res, nil
}

// assignOccurrence 写入占用关系与 upcoming 考勤
func assignOccurrence(ctx context.Context, tx *repository.Repository, occ *model.ShiftOccurrence, userID string, makeup bool) error {
	if err := tx.Occurrence.Assign(ctx, occ.ShiftOccurrenceID, userID); err != nil {
		if repository.IsUniqueViolation(err) {
			return ErrAlreadyAssigned.WithDetail("实例 %s 槽位 %d", occ.ShiftOccurrenceID, occ.Slot)
		}
		return err
	}
	occ.Assignee = &model.ShiftOccurrenceAssignee{ShiftOccurrenceID: occ.ShiftOccurrenceID, UserID: userID}
	return tx.Attendance.Upsert(ctx, &model.ShiftAttendance{
		ShiftOccurrenceID: occ.ShiftOccurrenceID,
		UserID:            userID,
		Status:            string(scheduling.StatusUpcoming),
		IsMakeup:          makeup,
	})
}

// groupByTimestamp 按时刻分组，组间按时间升序、组内按槽位升序
func groupByTimestamp(occs []model.ShiftOccurrence) [][]*model.ShiftOccurrence {
	index := make(map[int64]int)
	var groups [][]*model.ShiftOccurrence
	for i := range occs {
		k := occs[i].Timestamp.UnixNano()
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], &occs[i])
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].Timestamp.Before(groups[j][0].Timestamp) })
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i].Slot < g[j].Slot })
	}
	return groups
}

func firstFreeSlot(group []*model.ShiftOccurrence) *model.ShiftOccurrence {
	for _, o := range group {
		if o.Assignee == nil {
			return o
		}
	}
	return nil
}

// occurrenceWindow 实例的计划时间段 [start, end)
func occurrenceWindow(cal *calendar.Calendar, occ *model.ShiftOccurrence, sched *model.ShiftSchedule) (time.Time, time.Time, error) {
	end, err := cal.OccurrenceEnd(occ.Timestamp, sched.StartTime, sched.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return occ.Timestamp, end, nil
}

func overlapsInstant(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
