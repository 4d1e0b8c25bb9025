package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hums/backend/internal/model"
	"hums/backend/internal/repository"
	"hums/backend/internal/scheduling"
	"hums/backend/pkg/calendar"
	apperrors "hums/backend/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSchedule   = apperrors.BadRequest(40025, "该周期暂无排班模板")
	ErrExportNoRecords    = apperrors.BadRequest(40026, "该周期暂无考勤记录")
	ErrExportGenerateFail = apperrors.Internal(50020, "生成导出文件失败")
)

// ExportService 导出业务接口
//
//   - Excel 以 bytes.Buffer 返回，由 Handler 层设置响应头后写出
//   - 日历订阅返回 VCALENDAR 文本
type ExportService interface {
	// ExportSchedule 导出周期排班表：每个模板一行，列出报名成员
	ExportSchedule(ctx context.Context, periodID string) (*bytes.Buffer, string, error)
	// ExportAttendance 导出考勤明细与按成员汇总的统计
	ExportAttendance(ctx context.Context, periodID string) (*bytes.Buffer, string, error)
	// ExportUserCalendar 用户在周期内已分配班次的 ICS 订阅
	ExportUserCalendar(ctx context.Context, userID, periodID string) (string, error)
}

type exportService struct {
	repo   *repository.Repository
	cal    *calendar.Calendar
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, cal *calendar.Calendar, logger *zap.Logger, now func() time.Time) ExportService {
	if now == nil {
		now = time.Now
	}
	return &exportService{repo: repo, cal: cal, logger: logger, now: now}
}

var dayNames = [7]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

var statusNames = map[string]string{
	string(scheduling.StatusUpcoming):      "待上岗",
	string(scheduling.StatusPresent):       "出勤",
	string(scheduling.StatusAbsent):        "缺勤",
	string(scheduling.StatusExcused):       "请假",
	string(scheduling.StatusDropped):       "放弃",
	string(scheduling.StatusDroppedMakeup): "放弃(已补班)",
}

// ═══════════════════════════════════════════════════════════
// ExportSchedule — 排班表
// ═══════════════════════════════════════════════════════════
//
// | 星期 | 班次类型 | 时间 | 地点 | 名额 | 报名成员 |

func (s *exportService) ExportSchedule(ctx context.Context, periodID string) (*bytes.Buffer, string, error) {
	period, err := s.getPeriod(ctx, periodID)
	if err != nil {
		return nil, "", err
	}
	schedules, err := s.repo.ShiftSchedule.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("查询排班模板失败", zap.Error(err))
		return nil, "", err
	}
	if len(schedules) == 0 {
		return nil, "", ErrExportNoSchedule
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		if schedules[i].DayOfWeek != schedules[j].DayOfWeek {
			return schedules[i].DayOfWeek < schedules[j].DayOfWeek
		}
		return schedules[i].StartTime < schedules[j].StartTime
	})

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "排班表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"星期", "班次类型", "时间", "地点", "名额", "报名成员"}
	widths := []float64{8, 16, 14, 18, 8, 40}
	writeTitle(f, sheetName, fmt.Sprintf("%s — 排班表", period.Name), headers, widths)

	row := 3
	for i := range schedules {
		sc := &schedules[i]
		assignments, err := s.repo.ShiftSchedule.ListAssignments(ctx, sc.ShiftScheduleID)
		if err != nil {
			s.logger.Error("查询报名成员失败", zap.String("shift_schedule_id", sc.ShiftScheduleID), zap.Error(err))
			return nil, "", err
		}
		names := make([]string, 0, len(assignments))
		for _, a := range assignments {
			if a.User != nil {
				names = append(names, a.User.Name)
			} else {
				names = append(names, a.UserID)
			}
		}
		typeName, location := "", ""
		if sc.ShiftType != nil {
			typeName, location = sc.ShiftType.Name, sc.ShiftType.Location
		}
		members := strings.Join(names, "、")
		if members == "" {
			members = "-"
		}
		f.SetSheetRow(sheetName, cell("A", row), &[]interface{}{
			dayNames[sc.DayOfWeek%7],
			typeName,
			fmt.Sprintf("%s-%s", shortTime(sc.StartTime), shortTime(sc.EndTime)),
			location,
			fmt.Sprintf("%d/%d", len(assignments), sc.SlotCount),
			members,
		})
		row++
	}

	return s.write(f, fmt.Sprintf("排班表_%s.xlsx", period.Name))
}

// ═══════════════════════════════════════════════════════════
// ExportAttendance — 考勤明细 + 成员统计
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportAttendance(ctx context.Context, periodID string) (*bytes.Buffer, string, error) {
	period, err := s.getPeriod(ctx, periodID)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.repo.Attendance.ListByPeriod(ctx, periodID, "")
	if err != nil {
		s.logger.Error("查询考勤记录失败", zap.Error(err))
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", ErrExportNoRecords
	}

	f := excelize.NewFile()
	defer f.Close()

	detail := "考勤明细"
	idx, _ := f.NewSheet(detail)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	writeTitle(f, detail, fmt.Sprintf("%s — 考勤明细", period.Name),
		[]string{"日期", "星期", "班次类型", "时间", "成员", "状态", "签到", "签退", "迟到", "早退", "补班", "备注"},
		[]float64{12, 8, 16, 14, 12, 12, 10, 10, 6, 6, 6, 30})

	loc := s.cal.Location()
	type userAgg struct {
		name    string
		records []scheduling.AttendanceRecord
	}
	byUser := make(map[string]*userAgg)
	var userOrder []string

	row := 3
	for i := range rows {
		a := &rows[i]
		var start, end time.Time
		typeName := ""
		if a.Occurrence != nil && a.Occurrence.ShiftSchedule != nil {
			start, end, _ = occurrenceWindow(s.cal, a.Occurrence, a.Occurrence.ShiftSchedule)
			if st := a.Occurrence.ShiftSchedule.ShiftType; st != nil {
				typeName = st.Name
			}
		}
		name := a.UserID
		if a.User != nil {
			name = a.User.Name
		}

		f.SetSheetRow(detail, cell("A", row), &[]interface{}{
			localDate(start, loc),
			dayNames[int(start.In(loc).Weekday())],
			typeName,
			fmt.Sprintf("%s-%s", localClock(start, loc), localClock(end, loc)),
			name,
			statusNames[a.Status],
			localClockPtr(a.TimeIn, loc),
			localClockPtr(a.TimeOut, loc),
			yesNo(a.DidArriveLate),
			yesNo(a.DidLeaveEarly),
			yesNo(a.IsMakeup),
			notesOf(a),
		})
		row++

		agg, ok := byUser[a.UserID]
		if !ok {
			agg = &userAgg{name: name}
			byUser[a.UserID] = agg
			userOrder = append(userOrder, a.UserID)
		}
		agg.records = append(agg.records, toRecord(a, start, end))
	}

	summary := "成员统计"
	f.NewSheet(summary)
	writeTitle(f, summary, fmt.Sprintf("%s — 成员统计", period.Name),
		[]string{"成员", "出勤", "缺勤", "迟到", "早退", "放弃", "补班放弃", "请假", "出勤率(%)", "实际工时", "计划工时"},
		[]float64{12, 8, 8, 8, 8, 8, 10, 8, 10, 10, 10})

	now := s.now()
	row = 3
	for _, uid := range userOrder {
		agg := byUser[uid]
		st := scheduling.ComputeStats(agg.records, now)
		f.SetSheetRow(summary, cell("A", row), &[]interface{}{
			agg.name, st.Present, st.Absent, st.Late, st.LeftEarly,
			st.Dropped, st.DroppedMakeup, st.Excused,
			st.AttendanceRate, st.ActualHours, st.ScheduledHours,
		})
		row++
	}

	return s.write(f, fmt.Sprintf("考勤_%s.xlsx", period.Name))
}

// ═══════════════════════════════════════════════════════════
// ExportUserCalendar — ICS 订阅
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportUserCalendar(ctx context.Context, userID, periodID string) (string, error) {
	period, err := s.getPeriod(ctx, periodID)
	if err != nil {
		return "", err
	}
	occs, err := s.repo.Occurrence.ListAssignedToUser(ctx, userID, period.StartAt, period.EndAt)
	if err != nil {
		s.logger.Error("查询用户排班实例失败", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}

	entries := make([]calendarEntry, 0, len(occs))
	for i := range occs {
		o := &occs[i]
		if o.ShiftSchedule == nil || o.ShiftSchedule.ShiftType == nil || o.ShiftSchedule.ShiftType.PeriodID != periodID {
			continue
		}
		start, end, err := occurrenceWindow(s.cal, o, o.ShiftSchedule)
		if err != nil {
			continue
		}
		st := o.ShiftSchedule.ShiftType
		entry := calendarEntry{
			UID:      o.ShiftOccurrenceID + "@hums",
			Summary:  st.Name,
			Location: st.Location,
			Start:    start,
			End:      end,
		}
		if st.Description != nil {
			entry.Description = *st.Description
		}
		entries = append(entries, entry)
	}
	return BuildCalendarFeed(period.Name, entries, s.now()), nil
}

// ── 辅助函数 ──

func (s *exportService) getPeriod(ctx context.Context, id string) (*model.Period, error) {
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询排班周期失败", zap.String("period_id", id), zap.Error(err))
		return nil, err
	}
	return period, nil
}

func (s *exportService) write(f *excelize.File, filename string) (*bytes.Buffer, string, error) {
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail.Wrap(err)
	}
	return buf, filename, nil
}

// writeTitle 第 1 行合并标题，第 2 行表头
func writeTitle(f *excelize.File, sheet, title string, headers []string, widths []float64) {
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheet, "A1", title)
	f.MergeCell(sheet, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	f.SetSheetRow(sheet, "A2", &row)
	f.SetCellStyle(sheet, "A2", cell(colName(len(headers)-1), 2), headerStyle)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// shortTime HH:MM:SS → HH:MM
func shortTime(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

func localDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02")
}

func localClock(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("15:04")
}

func localClockPtr(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return localClock(*t, loc)
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return ""
}

func notesOf(a *model.ShiftAttendance) string {
	switch {
	case a.DroppedNotes != nil:
		return *a.DroppedNotes
	case a.ExcuseNotes != nil:
		return *a.ExcuseNotes
	}
	return ""
}
