package service

import (
	"strings"
	"testing"
	"time"
)

func TestParseExceptionICS(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("缺少时区数据: %v", err)
	}
	raw := crlf(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Holidays//CN
BEGIN:VEVENT
UID:allday@test
DTSTART;VALUE=DATE:20240108
DTEND;VALUE=DATE:20240109
SUMMARY:调休
END:VEVENT
BEGIN:VEVENT
UID:timed@test
DTSTART;TZID=Asia/Shanghai:20240110T090000
DTEND;TZID=Asia/Shanghai:20240110T120000
SUMMARY:设备检修
END:VEVENT
BEGIN:VEVENT
UID:noend@test
DTSTART;VALUE=DATE:20240115
END:VEVENT
BEGIN:VEVENT
UID:utc@test
DTSTART:20240120T010000Z
DTEND:20240120T020000Z
SUMMARY:停电
END:VEVENT
END:VCALENDAR
`)

	list, err := ParseExceptionICS(strings.NewReader(raw), shanghai)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("期望 4 个事件，实际: %d", len(list))
	}

	byName := make(map[string]parsedException)
	for _, e := range list {
		byName[e.Name] = e
	}

	allDay := byName["调休"]
	if !allDay.Start.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, shanghai)) ||
		!allDay.End.Equal(time.Date(2024, 1, 8, 23, 59, 59, 0, shanghai)) {
		t.Errorf("全天事件应覆盖 1/8 当天，实际: %s ~ %s", allDay.Start, allDay.End)
	}

	timed := byName["设备检修"]
	if !timed.Start.Equal(time.Date(2024, 1, 10, 9, 0, 0, 0, shanghai)) ||
		!timed.End.Equal(time.Date(2024, 1, 10, 11, 59, 59, 0, shanghai)) {
		t.Errorf("定时事件区间不符: %s ~ %s", timed.Start, timed.End)
	}

	noEnd, ok := byName["节假日"]
	if !ok {
		t.Fatal("缺少 SUMMARY 时应使用默认名称")
	}
	if !noEnd.End.Equal(time.Date(2024, 1, 15, 23, 59, 59, 0, shanghai)) {
		t.Errorf("缺少 DTEND 的全天事件应持续一天，实际: %s", noEnd.End)
	}

	utc := byName["停电"]
	if !utc.Start.Equal(time.Date(2024, 1, 20, 1, 0, 0, 0, time.UTC)) {
		t.Errorf("UTC 时间解析错误: %s", utc.Start)
	}
}

func TestParseExceptionICS_Invalid(t *testing.T) {
	if _, err := ParseExceptionICS(strings.NewReader("garbage"), time.UTC); err == nil {
		t.Error("非法内容应返回错误")
	}
}

func TestBuildCalendarFeed(t *testing.T) {
	stamp := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	feed := BuildCalendarFeed("2024年1月", []calendarEntry{
		{UID: "occ-1@hums", Summary: "前台值班", Location: "A101", Start: jan(17, 14), End: jan(17, 16)},
		{UID: "occ-2@hums", Summary: "实验室", Start: jan(18, 10), End: jan(18, 12)},
	}, stamp)

	for _, want := range []string{"BEGIN:VCALENDAR", "METHOD:PUBLISH", "X-WR-CALNAME:2024年1月", "UID:occ-1@hums", "SUMMARY:前台值班", "LOCATION:A101", "DTSTART:20240117T140000Z"} {
		if !strings.Contains(feed, want) {
			t.Errorf("订阅内容缺少 %q", want)
		}
	}
	if n := strings.Count(feed, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("期望 2 个 VEVENT，实际: %d", n)
	}
}
