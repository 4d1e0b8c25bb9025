package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"hums/backend/config"
	"hums/backend/internal/access"
	"hums/backend/internal/dto"
	"hums/backend/internal/event"
	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/pkg/calendar"
)

// ── 测试辅助 ──
//
// 固定时钟为 2024-01-10（周三）12:00 UTC，周期为 2024 年 1 月整月。
// 周三 14:00 的模板在周期内有 1/3、1/10、1/17、1/24、1/31 五个时刻，其中 1/3 已过去。

const testPeriodID = "period-0001"

var (
	testNow   = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	jan       = func(day, hour int) time.Time { return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC) }
	testAdmin = access.Principal{UserID: "admin-001", Permissions: []string{access.PermPeriodManage, access.PermScheduleManage}}
)

type testEnv struct {
	store  *memStore
	repo   *repository.Repository
	svc    *Service
	broker *event.Broker

	mu  sync.Mutex
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: newMemStore(), now: testNow}
	env.repo = newMockRepository(env.store)
	env.broker = event.NewBroker(event.Options{BufferSize: 16, ReplaySize: 32}, nil, zap.NewNop())

	cfg := &config.Config{
		Schedule: config.ScheduleConfig{LateGraceMinutes: 5, EarlyLeaveGraceMinutes: 5},
		Cache:    config.CacheConfig{SettingsTTL: time.Minute},
	}
	env.svc = NewService(Deps{
		Config:   cfg,
		Repo:     env.repo,
		Calendar: calendar.NewInLocation(time.UTC),
		Events:   env.broker,
		Access:   access.NewClaimsChecker(),
		Logger:   zap.NewNop(),
		Now:      env.clock,
	})

	env.store.periods[testPeriodID] = model.Period{
		PeriodID:       testPeriodID,
		Name:           "2024年1月",
		StartAt:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndAt:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		IsVisible:      true,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) setNow(t time.Time) {
	e.mu.Lock()
	e.now = t
	e.mu.Unlock()
}

func (e *testEnv) period() model.Period {
	return e.store.periods[testPeriodID]
}

func (e *testEnv) updatePeriod(fn func(p *model.Period)) {
	p := e.store.periods[testPeriodID]
	fn(&p)
	e.store.periods[testPeriodID] = p
}

func (e *testEnv) addUser(id string, roles ...string) access.Principal {
	e.store.users[id] = model.User{UserID: id, Name: "成员" + id, Email: id + "@example.com", RoleIDs: model.StringArray(roles)}
	return access.Principal{UserID: id, RoleIDs: roles}
}

func (e *testEnv) addShiftType(t *testing.T, name string, opts ...func(*model.ShiftType)) string {
	t.Helper()
	st := &model.ShiftType{
		PeriodID:      testPeriodID,
		Name:          name,
		Location:      "A101",
		CanSelfAssign: true,
	}
	for _, opt := range opts {
		opt(st)
	}
	if err := e.repo.ShiftType.Create(context.Background(), st); err != nil {
		t.Fatalf("创建班次类型失败: %v", err)
	}
	return st.ShiftTypeID
}

func (e *testEnv) addSchedule(t *testing.T, typeID string, dow int, start, end string, slots int) string {
	t.Helper()
	detail, err := e.svc.Schedule.Create(context.Background(), &dto.CreateScheduleRequest{
		ShiftTypeID: typeID,
		DayOfWeek:   &dow,
		StartTime:   start,
		EndTime:     end,
		SlotCount:   slots,
	}, "admin-001")
	if err != nil {
		t.Fatalf("创建排班模板失败: %v", err)
	}
	return detail.ID
}

// occurrence 返回模板在指定时刻、指定槽位的实例
func (e *testEnv) occurrence(t *testing.T, scheduleID string, at time.Time, slot int) model.ShiftOccurrence {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	for _, o := range e.store.occurrences {
		if o.ShiftScheduleID == scheduleID && o.Timestamp.Equal(at) && o.Slot == slot {
			return e.store.hydrateOccurrence(o)
		}
	}
	t.Fatalf("未找到实例 %s %s slot=%d", scheduleID, at.Format(time.RFC3339), slot)
	return model.ShiftOccurrence{}
}

func (e *testEnv) occurrencesOf(scheduleID string) []model.ShiftOccurrence {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var list []model.ShiftOccurrence
	for _, o := range e.store.occurrences {
		if o.ShiftScheduleID == scheduleID {
			list = append(list, e.store.hydrateOccurrence(o))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.Before(list[j].Timestamp)
		}
		return list[i].Slot < list[j].Slot
	})
	return list
}

func (e *testEnv) attendanceOf(t *testing.T, occurrenceID, userID string) *model.ShiftAttendance {
	t.Helper()
	a, err := e.repo.Attendance.Get(context.Background(), occurrenceID, userID)
	if err != nil {
		return nil
	}
	return a
}

func (e *testEnv) heldBy(userID string) []model.ShiftOccurrence {
	occs, _ := e.repo.Occurrence.ListAssignedToUser(context.Background(), userID, time.Time{}, time.Time{})
	return occs
}
