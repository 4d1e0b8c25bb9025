package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ── ExportSchedule 测试 ──

func TestExportService_ExportSchedule(t *testing.T) {
	env := newTestEnv(t)
	u1, u2 := env.addUser("u1"), env.addUser("u2")
	typeID := env.addShiftType(t, "前台值班")
	schedID := env.addSchedule(t, typeID, 3, "14:00", "16:00", 2)
	env.addSchedule(t, typeID, 1, "10:00", "12:00", 1)
	if _, err := env.svc.Assignment.Register(context.Background(), u1, schedID); err != nil {
		t.Fatalf("u1 报名失败: %v", err)
	}
	if _, err := env.svc.Assignment.Register(context.Background(), u2, schedID); err != nil {
		t.Fatalf("u2 报名失败: %v", err)
	}

	buf, filename, err := env.svc.Export.ExportSchedule(context.Background(), testPeriodID)
	if err != nil {
		t.Fatalf("ExportSchedule 应成功: %v", err)
	}
	if !strings.HasPrefix(filename, "排班表_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名不符: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("打开导出文件失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("排班表")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("期望标题+表头+2 行数据，实际: %d 行", len(rows))
	}
	if rows[1][0] != "星期" || rows[1][5] != "报名成员" {
		t.Errorf("表头不符: %v", rows[1])
	}

	// 按星期排序：周一在前
	monday := rows[2]
	if monday[0] != "周一" || monday[4] != "0/1" || monday[5] != "-" {
		t.Errorf("周一行不符: %v", monday)
	}
	wednesday := rows[3]
	if wednesday[0] != "周三" || wednesday[2] != "14:00-16:00" || wednesday[3] != "A101" || wednesday[4] != "2/2" {
		t.Errorf("周三行不符: %v", wednesday)
	}
	if wednesday[5] != "成员u1、成员u2" {
		t.Errorf("报名成员应按报名顺序列出，实际: %s", wednesday[5])
	}
}

func TestExportService_ExportSchedule_Empty(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Export.ExportSchedule(context.Background(), testPeriodID)
	if !errors.Is(err, ErrExportNoSchedule) {
		t.Errorf("期望 ErrExportNoSchedule，实际: %v", err)
	}

	_, _, err = env.svc.Export.ExportSchedule(context.Background(), "missing")
	if !errors.Is(err, ErrPeriodNotFound) {
		t.Errorf("期望 ErrPeriodNotFound，实际: %v", err)
	}
}

// ── ExportAttendance 测试 ──

func TestExportService_ExportAttendance(t *testing.T) {
	empty := newTestEnv(t)
	empty.addSchedule(t, empty.addShiftType(t, "前台值班"), 3, "14:00", "16:00", 1)
	_, _, err := empty.svc.Export.ExportAttendance(context.Background(), testPeriodID)
	if !errors.Is(err, ErrExportNoRecords) {
		t.Fatalf("无考勤记录时期望 ErrExportNoRecords，实际: %v", err)
	}

	env, schedID := setupAttendance(t)
	occ := env.occurrence(t, schedID, jan(10, 14), 0)
	if _, err := env.svc.Attendance.RecordTimeIn(context.Background(), occ.ShiftOccurrenceID, clockAt("u1", jan(10, 14))); err != nil {
		t.Fatalf("签到失败: %v", err)
	}

	buf, _, err := env.svc.Export.ExportAttendance(context.Background(), testPeriodID)
	if err != nil {
		t.Fatalf("ExportAttendance 应成功: %v", err)
	}
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("打开导出文件失败: %v", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex("考勤明细"); idx < 0 {
		t.Error("缺少考勤明细工作表")
	}
	if v, _ := f.GetCellValue("考勤明细", "A3"); v != "2024-01-10" {
		t.Errorf("明细日期不符: %s", v)
	}
	if v, _ := f.GetCellValue("考勤明细", "E3"); v != "成员u1" {
		t.Errorf("明细成员不符: %s", v)
	}
	if v, _ := f.GetCellValue("考勤明细", "F3"); v != "出勤" {
		t.Errorf("明细状态不符: %s", v)
	}
	if v, _ := f.GetCellValue("考勤明细", "F4"); v != "待上岗" {
		t.Errorf("未来班次应为待上岗，实际: %s", v)
	}
	if v, _ := f.GetCellValue("成员统计", "A3"); v != "成员u1" {
		t.Errorf("统计成员不符: %s", v)
	}
}

// ── ExportUserCalendar 测试 ──

func TestExportService_ExportUserCalendar(t *testing.T) {
	env, _ := setupAttendance(t)

	feed, err := env.svc.Export.ExportUserCalendar(context.Background(), "u1", testPeriodID)
	if err != nil {
		t.Fatalf("ExportUserCalendar 应成功: %v", err)
	}
	if n := strings.Count(feed, "BEGIN:VEVENT"); n != 4 {
		t.Errorf("期望 4 个已分配班次，实际: %d", n)
	}
	if !strings.Contains(feed, "SUMMARY:前台值班") || !strings.Contains(feed, "@hums") {
		t.Error("订阅内容缺少班次信息")
	}

	empty, err := env.svc.Export.ExportUserCalendar(context.Background(), "u2", testPeriodID)
	if err != nil {
		t.Fatalf("ExportUserCalendar 失败: %v", err)
	}
	if strings.Contains(empty, "BEGIN:VEVENT") {
		t.Error("未分配用户不应有事件")
	}
}
