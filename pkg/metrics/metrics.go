package metrics

// Collector 排班子系统的指标采集接口
type Collector interface {
	// RecordAssignment 记录一次分配操作结果（op: register/pickup/...，result: success/rejected/error）
	RecordAssignment(op, result string)
	// RecordReconcile 记录一次对账的增删行数
	RecordReconcile(created, deleted int)
	// RecordEventPublished 记录一次事件发布及其投递到的订阅者数
	RecordEventPublished(eventType string, delivered int)
	// RecordEventDropped 订阅者缓冲区已满，事件被丢弃
	RecordEventDropped()
	// SetSubscribers 当前在线订阅者数
	SetSubscribers(n int)
	// RecordAbsentMarked 后台缺勤标记数量
	RecordAbsentMarked(n int)
}

// Nop 丢弃所有指标
type Nop struct{}

var _ Collector = Nop{}

// NewNop 创建空实现（测试或禁用指标时使用）
func NewNop() Nop { return Nop{} }

func (Nop) RecordAssignment(_, _ string)         {}
func (Nop) RecordReconcile(_, _ int)             {}
func (Nop) RecordEventPublished(_ string, _ int) {}
func (Nop) RecordEventDropped()                  {}
func (Nop) SetSubscribers(_ int)                 {}
func (Nop) RecordAbsentMarked(_ int)             {}
