package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	pkgerrors "hums/backend/pkg/errors"
)

// ── 内存数据集 ──
//
// 所有 mock repo 共享同一个 memStore，以便模拟跨表的 JOIN 与级联删除。
// Transaction 用 txMu 串行化，相当于对所有行加锁；fn 返回错误时恢复快照。

type regKey struct{ scheduleID, userID string }

type memData struct {
	users       map[string]model.User
	periods     map[string]model.Period
	exceptions  map[string]model.PeriodException
	types       map[string]model.ShiftType
	schedules   map[string]model.ShiftSchedule
	regs        map[regKey]time.Time
	occurrences map[string]model.ShiftOccurrence
	assignees   map[string]string // occurrence → user
	attendance  map[string]model.ShiftAttendance
	setting     *model.SystemSetting
}

func (d memData) clone() memData {
	c := memData{
		users:       make(map[string]model.User, len(d.users)),
		periods:     make(map[string]model.Period, len(d.periods)),
		exceptions:  make(map[string]model.PeriodException, len(d.exceptions)),
		types:       make(map[string]model.ShiftType, len(d.types)),
		schedules:   make(map[string]model.ShiftSchedule, len(d.schedules)),
		regs:        make(map[regKey]time.Time, len(d.regs)),
		occurrences: make(map[string]model.ShiftOccurrence, len(d.occurrences)),
		assignees:   make(map[string]string, len(d.assignees)),
		attendance:  make(map[string]model.ShiftAttendance, len(d.attendance)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.periods {
		c.periods[k] = v
	}
	for k, v := range d.exceptions {
		c.exceptions[k] = v
	}
	for k, v := range d.types {
		c.types[k] = v
	}
	for k, v := range d.schedules {
		c.schedules[k] = v
	}
	for k, v := range d.regs {
		c.regs[k] = v
	}
	for k, v := range d.occurrences {
		c.occurrences[k] = v
	}
	for k, v := range d.assignees {
		c.assignees[k] = v
	}
	for k, v := range d.attendance {
		c.attendance[k] = v
	}
	if d.setting != nil {
		s := *d.setting
		c.setting = &s
	}
	return c
}

type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	seq  int
	memData

	// shortInsert 中的模板在 BatchCreate 时少写一行，模拟写入数量不一致
	shortInsert map[string]bool
}

func newMemStore() *memStore {
	return &memStore{memData: memData{}.clone()}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

// newMockRepository 创建以 memStore 为后端的 Repository 聚合
func newMockRepository(store *memStore) *repository.Repository {
	repo := &repository.Repository{
		User:            &mockUserRepo{store},
		Period:          &mockPeriodRepo{store},
		PeriodException: &mockPeriodExceptionRepo{store},
		ShiftType:       &mockShiftTypeRepo{store},
		ShiftSchedule:   &mockShiftScheduleRepo{store},
		Occurrence:      &mockOccurrenceRepo{store},
		Attendance:      &mockAttendanceRepo{store},
		SystemSetting:   &mockSystemSettingRepo{s: store},
	}
	repo.Tx = func(ctx context.Context, fn func(tx *repository.Repository) error) error {
		store.txMu.Lock()
		defer store.txMu.Unlock()

		store.mu.Lock()
		snapshot := store.memData.clone()
		store.mu.Unlock()

		if err := fn(repo); err != nil {
			store.mu.Lock()
			store.memData = snapshot
			store.mu.Unlock()
			return err
		}
		return nil
	}
	return repo
}

// ── 读取时的关联填充 ──

func (s *memStore) hydrateSchedule(sc model.ShiftSchedule) model.ShiftSchedule {
	if st, ok := s.types[sc.ShiftTypeID]; ok {
		sc.ShiftType = &st
	}
	return sc
}

func (s *memStore) hydrateOccurrence(o model.ShiftOccurrence) model.ShiftOccurrence {
	if uid, ok := s.assignees[o.ShiftOccurrenceID]; ok {
		o.Assignee = &model.ShiftOccurrenceAssignee{ShiftOccurrenceID: o.ShiftOccurrenceID, UserID: uid}
	} else {
		o.Assignee = nil
	}
	if sc, ok := s.schedules[o.ShiftScheduleID]; ok {
		sc = s.hydrateSchedule(sc)
		o.ShiftSchedule = &sc
	}
	return o
}

func (s *memStore) hydrateAttendance(a model.ShiftAttendance) model.ShiftAttendance {
	if o, ok := s.occurrences[a.ShiftOccurrenceID]; ok {
		o = s.hydrateOccurrence(o)
		a.Occurrence = &o
	}
	if u, ok := s.users[a.UserID]; ok {
		a.User = &u
	}
	return a
}

func (s *memStore) periodOfSchedule(scheduleID string) string {
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return ""
	}
	return s.types[sc.ShiftTypeID].PeriodID
}

// ── 级联删除 ──

func (s *memStore) deleteOccurrence(id string) {
	for aid, a := range s.attendance {
		if a.ShiftOccurrenceID == id {
			delete(s.attendance, aid)
		}
	}
	delete(s.assignees, id)
	delete(s.occurrences, id)
}

func (s *memStore) deleteSchedule(id string) {
	for oid, o := range s.occurrences {
		if o.ShiftScheduleID == id {
			s.deleteOccurrence(oid)
		}
	}
	for k := range s.regs {
		if k.scheduleID == id {
			delete(s.regs, k)
		}
	}
	delete(s.schedules, id)
}

func (s *memStore) deleteShiftType(id string) {
	for sid, sc := range s.schedules {
		if sc.ShiftTypeID == id {
			s.deleteSchedule(sid)
		}
	}
	delete(s.types, id)
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		return &u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.User
	for _, id := range ids {
		if u, ok := m.s.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

// ── Mock PeriodRepository ──

type mockPeriodRepo struct{ s *memStore }

func (m *mockPeriodRepo) Create(_ context.Context, p *model.Period) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p.PeriodID == "" {
		p.PeriodID = m.s.nextID("period")
	}
	if p.Version == 0 {
		p.Version = 1
	}
	m.s.periods[p.PeriodID] = *p
	return nil
}

func (m *mockPeriodRepo) GetByID(_ context.Context, id string) (*model.Period, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.periods[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) List(_ context.Context, visibleOnly bool) ([]model.Period, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Period
	for _, p := range m.s.periods {
		if visibleOnly && !p.IsVisible {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.After(result[j].StartAt) })
	return result, nil
}

func (m *mockPeriodRepo) Update(_ context.Context, p *model.Period) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.periods[p.PeriodID]
	if !ok || cur.Version != p.Version {
		return pkgerrors.ErrOptimisticLock
	}
	p.Version++
	m.s.periods[p.PeriodID] = *p
	return nil
}

func (m *mockPeriodRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for tid, st := range m.s.types {
		if st.PeriodID == id {
			m.s.deleteShiftType(tid)
		}
	}
	for eid, e := range m.s.exceptions {
		if e.PeriodID == id {
			delete(m.s.exceptions, eid)
		}
	}
	delete(m.s.periods, id)
	return nil
}

// ── Mock PeriodExceptionRepository ──

type mockPeriodExceptionRepo struct{ s *memStore }

func (m *mockPeriodExceptionRepo) Create(_ context.Context, e *model.PeriodException) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if e.PeriodExceptionID == "" {
		e.PeriodExceptionID = m.s.nextID("exc")
	}
	m.s.exceptions[e.PeriodExceptionID] = *e
	return nil
}

func (m *mockPeriodExceptionRepo) BatchCreate(ctx context.Context, es []model.PeriodException) error {
	for i := range es {
		if err := m.Create(ctx, &es[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockPeriodExceptionRepo) GetByID(_ context.Context, id string) (*model.PeriodException, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if e, ok := m.s.exceptions[id]; ok {
		return &e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodExceptionRepo) ListByPeriod(_ context.Context, periodID string) ([]model.PeriodException, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.PeriodException
	for _, e := range m.s.exceptions {
		if e.PeriodID == periodID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

func (m *mockPeriodExceptionRepo) Update(_ context.Context, e *model.PeriodException) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.exceptions[e.PeriodExceptionID] = *e
	return nil
}

func (m *mockPeriodExceptionRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.exceptions, id)
	return nil
}

// ── Mock ShiftTypeRepository ──

type mockShiftTypeRepo struct{ s *memStore }

func (m *mockShiftTypeRepo) Create(_ context.Context, t *model.ShiftType) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t.ShiftTypeID == "" {
		t.ShiftTypeID = m.s.nextID("type")
	}
	if t.Version == 0 {
		t.Version = 1
	}
	m.s.types[t.ShiftTypeID] = *t
	return nil
}

func (m *mockShiftTypeRepo) GetByID(_ context.Context, id string) (*model.ShiftType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.types[id]; ok {
		return &t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShiftTypeRepo) ListByPeriod(_ context.Context, periodID string) ([]model.ShiftType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ShiftType
	for _, t := range m.s.types {
		if t.PeriodID == periodID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockShiftTypeRepo) Update(_ context.Context, t *model.ShiftType) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.types[t.ShiftTypeID]
	if !ok || cur.Version != t.Version {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version++
	stored := *t
	stored.Period = nil
	m.s.types[t.ShiftTypeID] = stored
	return nil
}

func (m *mockShiftTypeRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.deleteShiftType(id)
	return nil
}

// ── Mock ShiftScheduleRepository ──

type mockShiftScheduleRepo struct{ s *memStore }

func (m *mockShiftScheduleRepo) Create(_ context.Context, sc *model.ShiftSchedule) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, other := range m.s.schedules {
		if other.ShiftTypeID == sc.ShiftTypeID && other.DayOfWeek == sc.DayOfWeek && other.StartTime == sc.StartTime {
			return gorm.ErrDuplicatedKey
		}
	}
	if sc.ShiftScheduleID == "" {
		sc.ShiftScheduleID = m.s.nextID("sched")
	}
	if sc.Version == 0 {
		sc.Version = 1
	}
	stored := *sc
	stored.ShiftType = nil
	m.s.schedules[sc.ShiftScheduleID] = stored
	return nil
}

func (m *mockShiftScheduleRepo) GetByID(_ context.Context, id string) (*model.ShiftSchedule, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sc, ok := m.s.schedules[id]; ok {
		sc = m.s.hydrateSchedule(sc)
		return &sc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShiftScheduleRepo) GetForUpdate(_ context.Context, id string) (*model.ShiftSchedule, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sc, ok := m.s.schedules[id]; ok {
		return &sc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShiftScheduleRepo) filter(keep func(model.ShiftSchedule) bool, hydrate bool) []model.ShiftSchedule {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ShiftSchedule
	for _, sc := range m.s.schedules {
		if !keep(sc) {
			continue
		}
		if hydrate {
			sc = m.s.hydrateSchedule(sc)
		}
		result = append(result, sc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].ShiftScheduleID < result[j].ShiftScheduleID
	})
	return result
}

func (m *mockShiftScheduleRepo) ListByShiftType(_ context.Context, shiftTypeID string) ([]model.ShiftSchedule, error) {
	return m.filter(func(sc model.ShiftSchedule) bool { return sc.ShiftTypeID == shiftTypeID }, false), nil
}

func (m *mockShiftScheduleRepo) LockByShiftType(_ context.Context, shiftTypeID string) ([]model.ShiftSchedule, error) {
	list := m.filter(func(sc model.ShiftSchedule) bool { return sc.ShiftTypeID == shiftTypeID }, false)
	sort.Slice(list, func(i, j int) bool { return list[i].ShiftScheduleID < list[j].ShiftScheduleID })
	return list, nil
}

func (m *mockShiftScheduleRepo) ListByPeriod(_ context.Context, periodID string) ([]model.ShiftSchedule, error) {
	return m.filter(func(sc model.ShiftSchedule) bool { return m.s.types[sc.ShiftTypeID].PeriodID == periodID }, true), nil
}

func (m *mockShiftScheduleRepo) ExistsDuplicate(_ context.Context, shiftTypeID string, dayOfWeek int, startTime, excludeID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sc := range m.s.schedules {
		if sc.ShiftScheduleID != excludeID && sc.ShiftTypeID == shiftTypeID && sc.DayOfWeek == dayOfWeek && sc.StartTime == startTime {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockShiftScheduleRepo) Update(_ context.Context, sc *model.ShiftSchedule) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.schedules[sc.ShiftScheduleID]
	if !ok || cur.Version != sc.Version {
		return pkgerrors.ErrOptimisticLock
	}
	sc.Version++
	stored := *sc
	stored.ShiftType = nil
	m.s.schedules[sc.ShiftScheduleID] = stored
	return nil
}

func (m *mockShiftScheduleRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.deleteSchedule(id)
	return nil
}

func (m *mockShiftScheduleRepo) IsRegistered(_ context.Context, scheduleID, userID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.regs[regKey{scheduleID, userID}]
	return ok, nil
}

func (m *mockShiftScheduleRepo) AddAssignment(_ context.Context, scheduleID, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := regKey{scheduleID, userID}
	if _, ok := m.s.regs[k]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.s.seq++
	m.s.regs[k] = time.Unix(int64(m.s.seq), 0)
	return nil
}

func (m *mockShiftScheduleRepo) RemoveAssignment(_ context.Context, scheduleID, userID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := regKey{scheduleID, userID}
	if _, ok := m.s.regs[k]; !ok {
		return false, nil
	}
	delete(m.s.regs, k)
	return true, nil
}

func (m *mockShiftScheduleRepo) ListAssignments(_ context.Context, scheduleID string) ([]model.ShiftScheduleAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ShiftScheduleAssignment
	for k, at := range m.s.regs {
		if k.scheduleID != scheduleID {
			continue
		}
		a := model.ShiftScheduleAssignment{ShiftScheduleID: k.scheduleID, UserID: k.userID, CreatedAt: at}
		if u, ok := m.s.users[k.userID]; ok {
			a.User = &u
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockShiftScheduleRepo) CountAssignments(_ context.Context, scheduleIDs []string) (map[string]int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(scheduleIDs))
	for _, id := range scheduleIDs {
		want[id] = true
	}
	counts := make(map[string]int, len(scheduleIDs))
	for k := range m.s.regs {
		if want[k.scheduleID] {
			counts[k.scheduleID]++
		}
	}
	return counts, nil
}

func (m *mockShiftScheduleRepo) ListRegisteredByUser(_ context.Context, userID, periodID string) ([]model.ShiftSchedule, error) {
	m.s.mu.Lock()
	mine := make(map[string]bool)
	for k := range m.s.regs {
		if k.userID == userID {
			mine[k.scheduleID] = true
		}
	}
	m.s.mu.Unlock()
	return m.filter(func(sc model.ShiftSchedule) bool {
		return mine[sc.ShiftScheduleID] && m.s.types[sc.ShiftTypeID].PeriodID == periodID
	}, true), nil
}

// ── Mock OccurrenceRepository ──

type mockOccurrenceRepo struct{ s *memStore }

func (m *mockOccurrenceRepo) GetByID(_ context.Context, id string) (*model.ShiftOccurrence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if o, ok := m.s.occurrences[id]; ok {
		o = m.s.hydrateOccurrence(o)
		return &o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOccurrenceRepo) GetForUpdate(ctx context.Context, id string) (*model.ShiftOccurrence, error) {
	o, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.ShiftSchedule = nil
	return o, nil
}

func (m *mockOccurrenceRepo) filter(keep func(model.ShiftOccurrence) bool) []model.ShiftOccurrence {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ShiftOccurrence
	for _, o := range m.s.occurrences {
		if keep(o) {
			result = append(result, m.s.hydrateOccurrence(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].Slot < result[j].Slot
	})
	return result
}

func (m *mockOccurrenceRepo) ListBySchedule(_ context.Context, scheduleID string) ([]model.ShiftOccurrence, error) {
	return m.filter(func(o model.ShiftOccurrence) bool { return o.ShiftScheduleID == scheduleID }), nil
}

func (m *mockOccurrenceRepo) LockBySchedule(ctx context.Context, scheduleID string) ([]model.ShiftOccurrence, error) {
	return m.ListBySchedule(ctx, scheduleID)
}

func (m *mockOccurrenceRepo) BatchCreate(_ context.Context, occs []model.ShiftOccurrence) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if len(occs) > 0 && m.s.shortInsert[occs[0].ShiftScheduleID] {
		occs = occs[:len(occs)-1]
	}
	var inserted int64
	for _, o := range occs {
		dup := false
		for _, cur := range m.s.occurrences {
			if cur.ShiftScheduleID == o.ShiftScheduleID && cur.Timestamp.Equal(o.Timestamp) && cur.Slot == o.Slot {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		o.Assignee, o.ShiftSchedule = nil, nil
		m.s.occurrences[o.ShiftOccurrenceID] = o
		inserted++
	}
	return inserted, nil
}

func (m *mockOccurrenceRepo) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.s.occurrences[id]; ok {
			m.s.deleteOccurrence(id)
			n++
		}
	}
	return n, nil
}

func (m *mockOccurrenceRepo) Assign(_ context.Context, occurrenceID, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.assignees[occurrenceID]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.s.assignees[occurrenceID] = userID
	return nil
}

func (m *mockOccurrenceRepo) Unassign(_ context.Context, occurrenceID, userID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.assignees[occurrenceID] != userID {
		return false, nil
	}
	delete(m.s.assignees, occurrenceID)
	return true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func (m *mockOccurrenceRepo) ListAssignedToUser(_ context.Context, userID string, from, to time.Time) ([]model.ShiftOccurrence, error) {
	return m.filter(func(o model.ShiftOccurrence) bool {
		return m.s.assignees[o.ShiftOccurrenceID] == userID && inRange(o.Timestamp, from, to)
	}), nil
}

func (m *mockOccurrenceRepo) ListByPeriod(_ context.Context, periodID string, from, to time.Time) ([]model.ShiftOccurrence, error) {
	return m.filter(func(o model.ShiftOccurrence) bool {
		return m.s.periodOfSchedule(o.ShiftScheduleID) == periodID && inRange(o.Timestamp, from, to)
	}), nil
}

func (m *mockOccurrenceRepo) CountBySchedule(_ context.Context, scheduleIDs []string) (map[string]int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(scheduleIDs))
	for _, id := range scheduleIDs {
		want[id] = true
	}
	seen := make(map[string]map[int64]bool)
	for _, o := range m.s.occurrences {
		if !want[o.ShiftScheduleID] {
			continue
		}
		if seen[o.ShiftScheduleID] == nil {
			seen[o.ShiftScheduleID] = make(map[int64]bool)
		}
		seen[o.ShiftScheduleID][o.Timestamp.UnixNano()] = true
	}
	counts := make(map[string]int, len(seen))
	for id, ts := range seen {
		counts[id] = len(ts)
	}
	return counts, nil
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct{ s *memStore }

func (m *mockAttendanceRepo) GetByID(_ context.Context, id string) (*model.ShiftAttendance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.s.attendance[id]; ok {
		a = m.s.hydrateAttendance(a)
		return &a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) find(occurrenceID, userID string) (model.ShiftAttendance, bool) {
	for _, a := range m.s.attendance {
		if a.ShiftOccurrenceID == occurrenceID && a.UserID == userID {
			return a, true
		}
	}
	return model.ShiftAttendance{}, false
}

func (m *mockAttendanceRepo) Get(_ context.Context, occurrenceID, userID string) (*model.ShiftAttendance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.find(occurrenceID, userID); ok {
		return &a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) Upsert(_ context.Context, a *model.ShiftAttendance) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if cur, ok := m.find(a.ShiftOccurrenceID, a.UserID); ok {
		a.ShiftAttendanceID = cur.ShiftAttendanceID
	} else if a.ShiftAttendanceID == "" {
		a.ShiftAttendanceID = m.s.nextID("att")
	}
	stored := *a
	stored.Occurrence, stored.User = nil, nil
	m.s.attendance[a.ShiftAttendanceID] = stored
	return nil
}

func (m *mockAttendanceRepo) Update(_ context.Context, a *model.ShiftAttendance) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.attendance[a.ShiftAttendanceID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *a
	stored.Occurrence, stored.User = nil, nil
	m.s.attendance[a.ShiftAttendanceID] = stored
	return nil
}

func (m *mockAttendanceRepo) Delete(_ context.Context, occurrenceID, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.find(occurrenceID, userID); ok {
		delete(m.s.attendance, a.ShiftAttendanceID)
	}
	return nil
}

func (m *mockAttendanceRepo) ListByPeriod(_ context.Context, periodID, userID string) ([]model.ShiftAttendance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ShiftAttendance
	for _, a := range m.s.attendance {
		if userID != "" && a.UserID != userID {
			continue
		}
		o, ok := m.s.occurrences[a.ShiftOccurrenceID]
		if !ok || m.s.periodOfSchedule(o.ShiftScheduleID) != periodID {
			continue
		}
		result = append(result, m.s.hydrateAttendance(a))
	}
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].Occurrence.Timestamp, result[j].Occurrence.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return result[i].ShiftAttendanceID < result[j].ShiftAttendanceID
	})
	return result, nil
}

func (m *mockAttendanceRepo) ListUpcomingStartedBefore(_ context.Context, before time.Time) ([]model.ShiftAttendance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ShiftAttendance
	for _, a := range m.s.attendance {
		o, ok := m.s.occurrences[a.ShiftOccurrenceID]
		if !ok || a.Status != "upcoming" || !o.Timestamp.Before(before) {
			continue
		}
		result = append(result, m.s.hydrateAttendance(a))
	}
	return result, nil
}

func (m *mockAttendanceRepo) MarkAbsent(_ context.Context, ids []string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		a, ok := m.s.attendance[id]
		if !ok || a.Status != "upcoming" {
			continue
		}
		a.Status = "absent"
		a.TimeIn, a.TimeOut = nil, nil
		a.DidArriveLate, a.DidLeaveEarly = false, false
		m.s.attendance[id] = a
		n++
	}
	return n, nil
}

// ── Mock SystemSettingRepository ──

type mockSystemSettingRepo struct {
	s     *memStore
	reads int
}

func (m *mockSystemSettingRepo) Get(_ context.Context) (*model.SystemSetting, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.reads++
	if m.s.setting == nil {
		return nil, gorm.ErrRecordNotFound
	}
	s := *m.s.setting
	return &s, nil
}

func (m *mockSystemSettingRepo) Upsert(_ context.Context, s *model.SystemSetting) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored := *s
	stored.Singleton = true
	m.s.setting = &stored
	return nil
}
