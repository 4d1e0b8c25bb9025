package scheduling

import (
	"sort"
	"time"

	apperrors "hums/backend/pkg/errors"
)

// ErrRowCountMismatch 实际插入行数与计划不一致（数据完整性错误）
var ErrRowCountMismatch = apperrors.Internal(50010, "排班实例写入数量不一致")

// LiveOccurrence 库中现存的一条排班实例
type LiveOccurrence struct {
	ID        string
	Timestamp time.Time
	Slot      int
}

// SlotKey 待创建的 (时刻, 槽位)
type SlotKey struct {
	Timestamp time.Time
	Slot      int
}

// Plan 对账结果：Create 与 Delete 互不相交
type Plan struct {
	Create []SlotKey
	Delete []string
}

// Empty 无需任何变更
func (p Plan) Empty() bool { return len(p.Create) == 0 && len(p.Delete) == 0 }

// Reconcile 比较期望时刻与现存实例，计算最小增删集合。
//
// 时刻差异：期望有而库中无的时刻创建全部槽位 0..slotCount-1；库中有而期望无的时刻整体删除。
// 槽位差异：两侧都有的时刻，删除 >= slotCount 的槽位，补齐缺失的槽位，其余槽位原样保留。
// 时刻按绝对时间比较，与 time.Location 无关。
func Reconcile(expected []time.Time, live []LiveOccurrence, slotCount int) Plan {
	if slotCount < 0 {
		slotCount = 0
	}

	want := make(map[int64]time.Time, len(expected))
	for _, t := range expected {
		want[t.UnixNano()] = t
	}

	// 按时刻聚合现存槽位（O(n) 扫描）
	have := make(map[int64]map[int]string, len(live))
	for _, o := range live {
		k := o.Timestamp.UnixNano()
		if have[k] == nil {
			have[k] = make(map[int]string)
		}
		have[k][o.Slot] = o.ID
	}

	var plan Plan
	for k, t := range want {
		slots, ok := have[k]
		if !ok {
			for s := 0; s < slotCount; s++ {
				plan.Create = append(plan.Create, SlotKey{Timestamp: t, Slot: s})
			}
			continue
		}
		for s := 0; s < slotCount; s++ {
			if _, exists := slots[s]; !exists {
				plan.Create = append(plan.Create, SlotKey{Timestamp: t, Slot: s})
			}
		}
	}

	var deletes []LiveOccurrence
	for _, o := range live {
		if _, ok := want[o.Timestamp.UnixNano()]; !ok || o.Slot >= slotCount || o.Slot < 0 {
			deletes = append(deletes, o)
		}
	}

	sort.Slice(plan.Create, func(i, j int) bool {
		a, b := plan.Create[i], plan.Create[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Slot < b.Slot
	})
	sort.Slice(deletes, func(i, j int) bool {
		a, b := deletes[i], deletes[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Slot < b.Slot
	})
	for _, o := range deletes {
		plan.Delete = append(plan.Delete, o.ID)
	}
	return plan
}

// VerifyInserted 校验插入行数，不一致时返回 ErrRowCountMismatch
func VerifyInserted(requested int, inserted int64) error {
	if int64(requested) != inserted {
		return ErrRowCountMismatch.WithDetail("期望 %d 行，实际 %d 行", requested, inserted)
	}
	return nil
}
