// Package calendar 提供按单一配置时区进行的日期/时间换算。
//
// 所有比较都在绝对时刻（time.Time）上进行，墙上时间只在“民用日期 + 时刻”
// 合成绝对时刻时使用，避免夏令时切换造成的漂移。
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay 墙上时刻（HH:MM[:SS]）
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay 解析 "HH:MM" 或 "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("无效的时刻格式 %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		if len(p) != 2 {
			return TimeOfDay{}, fmt.Errorf("无效的时刻格式 %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("无效的时刻格式 %q: %w", s, err)
		}
		vals[i] = n
	}
	t := TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("时刻超出范围 %q", s)
	}
	return t, nil
}

// MustParseTimeOfDay 解析失败时 panic，仅用于常量与测试
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Seconds 距午夜秒数
func (t TimeOfDay) Seconds() int { return t.Hour*3600 + t.Minute*60 + t.Second }

// Minutes 距午夜分钟数（舍去秒）
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// String 规范化为 HH:MM:SS
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// NormalizeTime 将 "9:00"/"09:00" 等输入统一为 HH:MM:SS
func NormalizeTime(s string) (string, error) {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// Date 民用日期（无时区）
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// AddDays 民用日期加减天数（按日历而非 24h 计算）
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday 星期（0=周日）
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// Before 日期先后比较
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Calendar 绑定单一时区的日期换算器
type Calendar struct {
	loc *time.Location
}

// New 按 IANA 时区名创建 Calendar
func New(tzName string) (*Calendar, error) {
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("加载时区 %q 失败: %w", tzName, err)
	}
	return &Calendar{loc: loc}, nil
}

// NewInLocation 直接使用已加载的时区
func NewInLocation(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc}
}

// Location 配置的时区
func (c *Calendar) Location() *time.Location { return c.loc }

// DateOf 绝对时刻在配置时区下的民用日期
func (c *Calendar) DateOf(t time.Time) Date {
	lt := t.In(c.loc)
	return Date{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()}
}

// Compose 民用日期 + 墙上时刻 → 配置时区下的绝对时刻
func (c *Calendar) Compose(d Date, tod TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, tod.Second, 0, c.loc)
}

// NextWeekday 返回 start 所在民用日期当天或之后第一个星期为 dow 的日期。
// end 非空时，若该日期晚于 end 的民用日期则返回 false。
func (c *Calendar) NextWeekday(start time.Time, dow time.Weekday, end *time.Time) (Date, bool) {
	d := c.DateOf(start)
	delta := (int(dow) - int(d.Weekday()) + 7) % 7
	d = d.AddDays(delta)
	if end != nil && c.DateOf(*end).Before(d) {
		return Date{}, false
	}
	return d, true
}

// OccurrenceEnd 计算一次排班的计划结束时刻。
// endTime <= startTime 视为跨夜，结束日期顺延到下一个民用日。
func (c *Calendar) OccurrenceEnd(start time.Time, startTime, endTime string) (time.Time, error) {
	st, err := ParseTimeOfDay(startTime)
	if err != nil {
		return time.Time{}, err
	}
	et, err := ParseTimeOfDay(endTime)
	if err != nil {
		return time.Time{}, err
	}
	d := c.DateOf(start)
	if et.Seconds() <= st.Seconds() {
		d = d.AddDays(1)
	}
	return c.Compose(d, et), nil
}

// Duration 计划时长（跨夜自动加一天）
func (c *Calendar) Duration(start time.Time, startTime, endTime string) (time.Duration, error) {
	end, err := c.OccurrenceEnd(start, startTime, endTime)
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

// MinutesRange 将时间段换算成 [start,end) 分钟区间，跨夜时 end 加 1440
func MinutesRange(startTime, endTime string) (int, int, error) {
	st, err := ParseTimeOfDay(startTime)
	if err != nil {
		return 0, 0, err
	}
	et, err := ParseTimeOfDay(endTime)
	if err != nil {
		return 0, 0, err
	}
	s, e := st.Minutes(), et.Minutes()
	if e <= s {
		e += 24 * 60
	}
	return s, e, nil
}

// Overlaps 半开区间重叠判定：start1 < end2 && start2 < end1
func Overlaps(start1, end1, start2, end2 int) bool {
	return start1 < end2 && start2 < end1
}
