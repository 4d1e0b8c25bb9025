// Package scheduling 排班核心算法：周期展开、增量对账、均衡校验、考勤状态规则。
//
// 本包只处理纯数据结构，不依赖 model/repository；与存储层之间的映射在 service 层完成。
package scheduling

import (
	"sort"
	"time"

	"hums/backend/pkg/calendar"
)

// Window 时间窗口。作为周期使用时为 [Start, End)，作为例外使用时两端均包含。
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains 闭区间包含判定（例外窗口语义）
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// WeeklyRule 每周重复规则
type WeeklyRule struct {
	DayOfWeek time.Weekday
	StartTime string
}

// Generate 展开周期内所有匹配星期的发生时刻，满足 period.Start <= t < period.End。
// 结果按时间升序且去重；窗口内没有目标星期时返回空切片。
func Generate(cal *calendar.Calendar, period Window, rule WeeklyRule) ([]time.Time, error) {
	tod, err := calendar.ParseTimeOfDay(rule.StartTime)
	if err != nil {
		return nil, err
	}

	out := []time.Time{}
	if !period.Start.Before(period.End) {
		return out, nil
	}

	d, ok := cal.NextWeekday(period.Start, rule.DayOfWeek, &period.End)
	if !ok {
		return out, nil
	}
	last := cal.DateOf(period.End)
	for ; !last.Before(d); d = d.AddDays(7) {
		t := cal.Compose(d, tod)
		if t.Before(period.Start) {
			continue
		}
		if !t.Before(period.End) {
			break
		}
		out = append(out, t)
	}
	return sortUnique(out), nil
}

// ExcludeExceptions 剔除落在任一例外窗口（两端包含）内的时刻，保持原有顺序
func ExcludeExceptions(instants []time.Time, exceptions []Window) []time.Time {
	if len(exceptions) == 0 {
		return instants
	}
	out := make([]time.Time, 0, len(instants))
	for _, t := range instants {
		excluded := false
		for _, ex := range exceptions {
			if ex.Contains(t) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, t)
		}
	}
	return out
}

// ExpectedInstants 周期展开后扣除例外，得到某排班模板应存在的全部时刻
func ExpectedInstants(cal *calendar.Calendar, period Window, rule WeeklyRule, exceptions []Window) ([]time.Time, error) {
	instants, err := Generate(cal, period, rule)
	if err != nil {
		return nil, err
	}
	return ExcludeExceptions(instants, exceptions), nil
}

func sortUnique(ts []time.Time) []time.Time {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	out := ts[:0]
	for i, t := range ts {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}
