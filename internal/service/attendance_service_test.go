package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hums/backend/internal/dto"
	"hums/backend/internal/model"
	"hums/backend/internal/scheduling"
)

// setupAttendance u1 报名周三 14:00-16:00，返回模板 ID
func setupAttendance(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := newTestEnv(t)
	u1 := env.addUser("u1")
	typeID := env.addShiftType(t, "前台值班")
	schedID := env.addSchedule(t, typeID, 3, "14:00", "16:00", 1)
	if _, err := env.svc.Assignment.Register(context.Background(), u1, schedID); err != nil {
		t.Fatalf("报名失败: %v", err)
	}
	return env, schedID
}

func clockAt(userID string, at time.Time) *dto.TimeClockRequest {
	s := at.Format(time.RFC3339)
	return &dto.TimeClockRequest{UserID: userID, At: &s}
}

// ── 打卡测试 ──

func TestAttendanceService_TimeInLate_TimeOutEarly(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)

	in, err := env.svc.Attendance.RecordTimeIn(context.Background(), occ.ShiftOccurrenceID, clockAt("u1", jan(10, 14).Add(10*time.Minute)))
	if err != nil {
		t.Fatalf("签到应成功: %v", err)
	}
	if in.Status != string(scheduling.StatusPresent) || !in.DidArriveLate {
		t.Errorf("超过 5 分钟宽限应记为迟到，实际: %+v", in)
	}

	out, err := env.svc.Attendance.RecordTimeOut(context.Background(), occ.ShiftOccurrenceID, clockAt("u1", jan(10, 15).Add(30*time.Minute)))
	if err != nil {
		t.Fatalf("签退应成功: %v", err)
	}
	if !out.DidLeaveEarly || !out.DidArriveLate || out.TimeIn == nil || out.TimeOut == nil {
		t.Errorf("签退后应保留签到信息并记为早退，实际: %+v", out)
	}
}

func TestAttendanceService_TimeIn_WithinGrace(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)

	in, err := env.svc.Attendance.RecordTimeIn(context.Background(), occ.ShiftOccurrenceID, clockAt("u1", jan(10, 14).Add(3*time.Minute)))
	if err != nil {
		t.Fatalf("签到应成功: %v", err)
	}
	if in.DidArriveLate {
		t.Error("宽限期内签到不应记为迟到")
	}
}

func TestAttendanceService_TimeIn_UsesUpdatedGrace(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)

	// 先读一次，让设置进入缓存
	env.svc.Settings.Grace(context.Background())
	grace := 15
	if _, err := env.svc.Settings.Update(context.Background(), &dto.UpdateSettingsRequest{LateGraceMinutes: &grace}, "admin-001"); err != nil {
		t.Fatalf("更新设置失败: %v", err)
	}

	in, err := env.svc.Attendance.RecordTimeIn(context.Background(), occ.ShiftOccurrenceID, clockAt("u1", jan(10, 14).Add(10*time.Minute)))
	if err != nil {
		t.Fatalf("签到应成功: %v", err)
	}
	if in.DidArriveLate {
		t.Error("宽限期调整为 15 分钟后不应记为迟到")
	}
}

func TestAttendanceService_TimeOut_NotClockedIn(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)

	_, err := env.svc.Attendance.RecordTimeOut(context.Background(), occ.ShiftOccurrenceID, clockAt("u1", jan(10, 16)))
	if !errors.Is(err, ErrNotClockedIn) {
		t.Errorf("期望 ErrNotClockedIn，实际: %v", err)
	}
}

func TestAttendanceService_Clock_Errors(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)
	bad := "10 点"

	cases := []struct {
		name    string
		occID   string
		req     *dto.TimeClockRequest
		wantErr error
	}{
		{"时间格式错误", occ.ShiftOccurrenceID, &dto.TimeClockRequest{UserID: "u1", At: &bad}, ErrInvalidClockTime},
		{"实例不存在", "missing", clockAt("u1", jan(10, 14)), ErrOccurrenceNotFound},
		{"未被分配", occ.ShiftOccurrenceID, clockAt("u9", jan(10, 14)), ErrAttendanceNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Attendance.RecordTimeIn(context.Background(), tc.occID, tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("期望 %v，实际: %v", tc.wantErr, err)
			}
		})
	}
}

func TestAttendanceService_TimeIn_DefaultsToNow(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)
	env.setNow(jan(10, 14).Add(time.Minute))

	in, err := env.svc.Attendance.RecordTimeIn(context.Background(), occ.ShiftOccurrenceID, &dto.TimeClockRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("签到应成功: %v", err)
	}
	if in.TimeIn == nil || *in.TimeIn != "2024-01-10T14:01:00Z" {
		t.Errorf("未给出时间时应使用服务端当前时间，实际: %v", in.TimeIn)
	}
}

// ── MarkMissedShifts 测试 ──

func TestAttendanceService_MarkMissedShifts_SkipsDropped(t *testing.T) {
	env, schedID := setupAttendance(t)
	u1 := env.addUser("u1")
	dropped := env.occurrence(t, schedID, jan(17, 14), 0)
	if _, err := env.svc.Assignment.Drop(context.Background(), u1, dropped.ShiftOccurrenceID, ""); err != nil {
		t.Fatalf("放弃失败: %v", err)
	}

	// 1/10 班次进行中，尚未结束
	n, err := env.svc.Attendance.MarkMissedShifts(context.Background(), jan(10, 15))
	if err != nil || n != 0 {
		t.Fatalf("进行中的班次不应被标记，实际: n=%d, err=%v", n, err)
	}

	n, err = env.svc.Attendance.MarkMissedShifts(context.Background(), jan(18, 0))
	if err != nil {
		t.Fatalf("MarkMissedShifts 失败: %v", err)
	}
	if n != 1 {
		t.Errorf("期望仅标记 1/10 为缺勤，实际: %d", n)
	}

	missed := env.attendanceOf(t, env.occurrence(t, schedID, jan(10, 14), 0).ShiftOccurrenceID, "u1")
	if missed.Status != string(scheduling.StatusAbsent) {
		t.Errorf("期望 1/10 为 absent，实际: %s", missed.Status)
	}
	kept := env.attendanceOf(t, dropped.ShiftOccurrenceID, "u1")
	if kept.Status != string(scheduling.StatusDropped) {
		t.Errorf("dropped 记录不应被覆盖，实际: %s", kept.Status)
	}

	// 重复执行不产生新的标记
	if n, _ := env.svc.Attendance.MarkMissedShifts(context.Background(), jan(18, 0)); n != 0 {
		t.Errorf("重复执行期望 0，实际: %d", n)
	}
}

// ── Excuse / RevokeExcuse 测试 ──

func TestAttendanceService_ExcuseAndRevoke(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(24, 14), 0)
	att := env.attendanceOf(t, occ.ShiftOccurrenceID, "u1")

	resp, err := env.svc.Attendance.Excuse(context.Background(), att.ShiftAttendanceID, "admin-001", "生病")
	if err != nil {
		t.Fatalf("Excuse 应成功: %v", err)
	}
	if resp.Status != string(scheduling.StatusExcused) || !resp.IsExcused {
		t.Errorf("期望 excused，实际: %+v", resp)
	}

	_, err = env.svc.Attendance.RecordTimeIn(context.Background(), occ.ShiftOccurrenceID, clockAt("u1", jan(24, 14)))
	if !errors.Is(err, ErrAttendanceProtected) {
		t.Errorf("已请假的记录打卡应返回 ErrAttendanceProtected，实际: %v", err)
	}

	resp, err = env.svc.Attendance.RevokeExcuse(context.Background(), att.ShiftAttendanceID, "admin-001")
	if err != nil {
		t.Fatalf("RevokeExcuse 应成功: %v", err)
	}
	if resp.Status != string(scheduling.StatusUpcoming) || resp.IsExcused || resp.ExcuseNotes != nil {
		t.Errorf("未结束的班次撤销后应恢复 upcoming，实际: %+v", resp)
	}

	_, err = env.svc.Attendance.RevokeExcuse(context.Background(), att.ShiftAttendanceID, "admin-001")
	if !errors.Is(err, ErrNotExcused) {
		t.Errorf("期望 ErrNotExcused，实际: %v", err)
	}
}

func TestAttendanceService_RevokeExcuse_AfterShiftEnded(t *testing.T) {
	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)
	att := env.attendanceOf(t, occ.ShiftOccurrenceID, "u1")
	if _, err := env.svc.Attendance.Excuse(context.Background(), att.ShiftAttendanceID, "admin-001", ""); err != nil {
		t.Fatalf("Excuse 失败: %v", err)
	}

	env.setNow(jan(11, 0))
	resp, err := env.svc.Attendance.RevokeExcuse(context.Background(), att.ShiftAttendanceID, "admin-001")
	if err != nil {
		t.Fatalf("RevokeExcuse 失败: %v", err)
	}
	if resp.Status != string(scheduling.StatusAbsent) {
		t.Errorf("已结束的班次撤销后应为 absent，实际: %s", resp.Status)
	}
}

func TestAttendanceService_Excuse_Dropped(t *testing.T) {
	env, schedID := setupAttendance(t)
	u1 := env.addUser("u1")
	occ := env.occurrence(t, schedID, jan(17, 14), 0)
	if _, err := env.svc.Assignment.Drop(context.Background(), u1, occ.ShiftOccurrenceID, ""); err != nil {
		t.Fatalf("放弃失败: %v", err)
	}
	att := env.attendanceOf(t, occ.ShiftOccurrenceID, "u1")

	_, err := env.svc.Attendance.Excuse(context.Background(), att.ShiftAttendanceID, "admin-001", "")
	if !errors.Is(err, ErrAttendanceProtected) {
		t.Errorf("期望 ErrAttendanceProtected，实际: %v", err)
	}
	if _, err := env.svc.Attendance.Excuse(context.Background(), "missing", "admin-001", ""); !errors.Is(err, ErrAttendanceNotFound) {
		t.Errorf("期望 ErrAttendanceNotFound，实际: %v", err)
	}
}

// ── 查询与统计测试 ──

func TestAttendanceService_StatsAndReview(t *testing.T) {
	env, schedID := setupAttendance(t)
	u1 := env.addUser("u1")
	first := env.occurrence(t, schedID, jan(10, 14), 0)
	if _, err := env.svc.Attendance.RecordTimeIn(context.Background(), first.ShiftOccurrenceID, clockAt("u1", jan(10, 14))); err != nil {
		t.Fatalf("签到失败: %v", err)
	}
	if _, err := env.svc.Attendance.RecordTimeOut(context.Background(), first.ShiftOccurrenceID, clockAt("u1", jan(10, 16))); err != nil {
		t.Fatalf("签退失败: %v", err)
	}
	dropped := env.occurrence(t, schedID, jan(17, 14), 0)
	if _, err := env.svc.Assignment.Drop(context.Background(), u1, dropped.ShiftOccurrenceID, ""); err != nil {
		t.Fatalf("放弃失败: %v", err)
	}
	env.setNow(jan(18, 0))

	stats, err := env.svc.Attendance.Stats(context.Background(), testPeriodID, "u1")
	if err != nil {
		t.Fatalf("Stats 失败: %v", err)
	}
	if stats.Total != 4 || stats.Present != 1 || stats.Dropped != 1 || stats.Upcoming != 2 {
		t.Errorf("状态计数不符: %+v", stats)
	}
	if stats.Eligible != 1 || stats.AttendanceRate != 100 || stats.ActualHours != 2 || stats.ScheduledHours != 2 {
		t.Errorf("出勤率与工时不符: %+v", stats)
	}

	review, err := env.svc.Attendance.ListForReview(context.Background(), testPeriodID)
	if err != nil {
		t.Fatalf("ListForReview 失败: %v", err)
	}
	if len(review) != 1 || review[0].OccurrenceID != dropped.ShiftOccurrenceID || !review[0].NeedsReview {
		t.Errorf("期望只有放弃的记录需要复核，实际: %+v", review)
	}

	page, total, err := env.svc.Attendance.List(context.Background(), &dto.AttendanceQuery{
		PeriodID:          testPeriodID,
		PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 3},
	})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 4 || len(page) != 1 {
		t.Errorf("期望共 4 条、第 2 页 1 条，实际: total=%d, page=%d", total, len(page))
	}
	if page[0].ScheduledAt != "2024-01-31T14:00:00Z" {
		t.Errorf("期望按时间排序，最后一条为 1/31，实际: %s", page[0].ScheduledAt)
	}
}

func TestAttendanceService_MakeupRecordKeepsFlag(t *testing.T) {
	env, _ := setupAttendance(t)
	u2 := env.addUser("u2")
	typeID := env.addShiftType(t, "实验室")
	schedID := env.addSchedule(t, typeID, 4, "10:00", "12:00", 1)
	occ := env.occurrence(t, schedID, jan(11, 10), 0)
	if err := env.repo.Occurrence.Assign(context.Background(), occ.ShiftOccurrenceID, u2.UserID); err != nil {
		t.Fatalf("分配失败: %v", err)
	}
	if err := env.repo.Attendance.Upsert(context.Background(), &model.ShiftAttendance{
		ShiftOccurrenceID: occ.ShiftOccurrenceID, UserID: "u2", Status: "upcoming", IsMakeup: true,
	}); err != nil {
		t.Fatalf("写入考勤失败: %v", err)
	}

	in, err := env.svc.Attendance.RecordTimeIn(context.Background(), occ.ShiftOccurrenceID, clockAt("u2", jan(11, 10)))
	if err != nil {
		t.Fatalf("签到失败: %v", err)
	}
	if !in.IsMakeup {
		t.Error("打卡不应清除补班标记")
	}
}
