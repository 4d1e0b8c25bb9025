package scheduling

import (
	"hums/backend/pkg/calendar"
	apperrors "hums/backend/pkg/errors"
)

// Dimension 均衡维度
type Dimension string

const (
	DimensionPeriod  Dimension = "period"
	DimensionDay     Dimension = "day"
	DimensionOverlap Dimension = "overlap"
)

var (
	ErrUnbalancedPeriod  = apperrors.BadRequest(40031, "违反周期均衡规则，请优先报名人数较少的班次")
	ErrUnbalancedDay     = apperrors.BadRequest(40032, "违反同日均衡规则，请优先报名当天人数较少的班次")
	ErrUnbalancedOverlap = apperrors.BadRequest(40033, "违反时段重叠均衡规则，请优先报名重叠时段中人数较少的班次")
)

// BalancingRules 班次类型上的三个均衡开关
type BalancingRules struct {
	AcrossPeriod  bool
	AcrossDay     bool
	AcrossOverlap bool
}

// Any 是否启用了任一规则
func (r BalancingRules) Any() bool { return r.AcrossPeriod || r.AcrossDay || r.AcrossOverlap }

// ScheduleLoad 均衡校验所需的排班模板快照
type ScheduleLoad struct {
	ID        string
	DayOfWeek int
	StartTime string
	EndTime   string
	SlotCount int
	Filled    int
}

// Full 已满员
func (s ScheduleLoad) Full() bool { return s.Filled >= s.SlotCount }

// Overlaps 同一天且时间段重叠（分钟区间，跨夜时结束加一天）
func (s ScheduleLoad) Overlaps(o ScheduleLoad) bool {
	if s.DayOfWeek != o.DayOfWeek {
		return false
	}
	s1, e1, err := calendar.MinutesRange(s.StartTime, s.EndTime)
	if err != nil {
		return false
	}
	s2, e2, err := calendar.MinutesRange(o.StartTime, o.EndTime)
	if err != nil {
		return false
	}
	return calendar.Overlaps(s1, e1, s2, e2)
}

// Violation 一次均衡校验失败的说明
type Violation struct {
	Dimension Dimension
	Sibling   ScheduleLoad
}

// BlockedBy 返回第一个未通过的均衡维度及造成阻塞的兄弟模板。
//
// 只有当同一作用域内存在未满且人数严格少于候选当前人数的兄弟模板时才阻塞，
// 即候选报名后最多领先任一未满兄弟 1 人。人数持平时允许报名：若要求兄弟人数
// 不少于候选报名后的人数，任意两个持平的未满模板会互相阻塞，全部为空时无人能报名。
// 已满的兄弟模板不参与比较。所有规则基于同一份兄弟集合计算。
func BlockedBy(rules BalancingRules, candidate ScheduleLoad, siblings []ScheduleLoad) (Violation, bool) {
	if !rules.Any() {
		return Violation{}, false
	}
	var period, day, overlap *ScheduleLoad
	for i := range siblings {
		sib := &siblings[i]
		if sib.ID == candidate.ID || sib.Full() {
			continue
		}
		if sib.Filled >= candidate.Filled {
			continue
		}
		if period == nil {
			period = sib
		}
		if sib.DayOfWeek == candidate.DayOfWeek {
			if day == nil {
				day = sib
			}
			if overlap == nil && candidate.Overlaps(*sib) {
				overlap = sib
			}
		}
	}

	switch {
	case rules.AcrossPeriod && period != nil:
		return Violation{Dimension: DimensionPeriod, Sibling: *period}, true
	case rules.AcrossDay && day != nil:
		return Violation{Dimension: DimensionDay, Sibling: *day}, true
	case rules.AcrossOverlap && overlap != nil:
		return Violation{Dimension: DimensionOverlap, Sibling: *overlap}, true
	}
	return Violation{}, false
}

// CheckBalancing 校验均衡规则，失败时返回对应维度的错误
func CheckBalancing(rules BalancingRules, candidate ScheduleLoad, siblings []ScheduleLoad) error {
	v, blocked := BlockedBy(rules, candidate, siblings)
	if !blocked {
		return nil
	}
	var base *apperrors.AppError
	switch v.Dimension {
	case DimensionPeriod:
		base = ErrUnbalancedPeriod
	case DimensionDay:
		base = ErrUnbalancedDay
	default:
		base = ErrUnbalancedOverlap
	}
	return base.WithDetail("班次 %s（周%d %s-%s）当前 %d 人，本班次报名后将达 %d 人",
		v.Sibling.ID, v.Sibling.DayOfWeek, v.Sibling.StartTime, v.Sibling.EndTime,
		v.Sibling.Filled, candidate.Filled+1)
}
