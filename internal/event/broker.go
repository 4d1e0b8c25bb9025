// Package event 进程内按 Period 划分的排班变更发布/订阅。
//
// 投递语义为 at-most-once：订阅者缓冲区满时事件被丢弃；重连时通过 lastEventID
// 从最近事件环形缓冲中补发，仅在同一进程生命周期内有效。
package event

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"hums/backend/pkg/metrics"
)

// Type 事件类型
type Type string

const (
	TypeRegister   Type = "register"
	TypeUnregister Type = "unregister"
)

// Event 排班报名变更事件
type Event struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	ShiftScheduleID string    `json:"shift_schedule_id"`
	UserID          string    `json:"user_id"`
	PeriodID        string    `json:"period_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher 事件发布端（由分配流程在事务提交后调用）
type Publisher interface {
	Publish(e Event) Event
}

// Options Broker 参数
type Options struct {
	BufferSize int // 每个订阅者的通道缓冲
	ReplaySize int // 每个 Period 保留用于断线补发的最近事件数
}

// Broker 事件代理，由组合根创建一次并注入分配服务与订阅接口
type Broker struct {
	subscribers *xsync.Map[uint64, *subscriber]
	nextSubID   atomic.Uint64

	// mu 串行化 ID 分配、补发缓冲与扇出，保证每个订阅者看到的事件按 ID 递增
	mu       sync.Mutex
	lastNano int64
	replay   map[string][]Event

	opts    Options
	metrics metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

var _ Publisher = (*Broker)(nil)

// NewBroker 创建 Broker
func NewBroker(opts Options, collector metrics.Collector, logger *zap.Logger) *Broker {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 16
	}
	if opts.ReplaySize < 0 {
		opts.ReplaySize = 0
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subscribers: xsync.NewMap[uint64, *subscriber](),
		replay:      make(map[string][]Event),
		opts:        opts,
		metrics:     collector,
		logger:      logger,
		now:         time.Now,
	}
}

// Publish 分配严格递增的追踪 ID 并扇出给该 Period 的订阅者，返回带 ID 的事件
func (b *Broker) Publish(e Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := now.UnixNano()
	if n <= b.lastNano {
		n = b.lastNano + 1
	}
	b.lastNano = n
	e.ID = strconv.FormatInt(n, 10)
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}

	if b.opts.ReplaySize > 0 {
		ring := append(b.replay[e.PeriodID], e)
		if len(ring) > b.opts.ReplaySize {
			ring = ring[len(ring)-b.opts.ReplaySize:]
		}
		b.replay[e.PeriodID] = ring
	}

	delivered := 0
	b.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		if sub.periodID != e.PeriodID {
			return true
		}
		if sub.trySend(e) {
			delivered++
		} else {
			b.metrics.RecordEventDropped()
			b.logger.Debug("订阅者缓冲区已满，事件丢弃",
				zap.String("period_id", e.PeriodID), zap.String("event_id", e.ID))
		}
		return true
	})
	b.metrics.RecordEventPublished(string(e.Type), delivered)
	return e
}

// Subscribe 订阅某 Period 的事件。lastEventID 非空时先补发其后的缓存事件。
// ctx 取消或调用返回的 unsubscribe 后通道关闭，不再投递。
func (b *Broker) Subscribe(ctx context.Context, periodID, lastEventID string) (<-chan Event, func()) {
	b.mu.Lock()
	var backlog []Event
	if lastEventID != "" {
		if after, err := strconv.ParseInt(lastEventID, 10, 64); err == nil {
			for _, e := range b.replay[periodID] {
				if id, _ := strconv.ParseInt(e.ID, 10, 64); id > after {
					backlog = append(backlog, e)
				}
			}
		}
	}

	id := b.nextSubID.Add(1)
	sub := &subscriber{
		periodID: periodID,
		ch:       make(chan Event, b.opts.BufferSize+len(backlog)),
	}
	for _, e := range backlog {
		sub.trySend(e)
	}
	b.subscribers.Store(id, sub)
	b.mu.Unlock()

	b.metrics.SetSubscribers(b.subscribers.Size())

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { b.removeSubscriber(id) })
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return sub.ch, func() {
		stop()
		unsubscribe()
	}
}

// SubscriberCount 当前订阅者数
func (b *Broker) SubscriberCount() int { return b.subscribers.Size() }

// Close 关闭所有订阅（进程退出时调用）
func (b *Broker) Close() {
	b.subscribers.Range(func(id uint64, _ *subscriber) bool {
		b.removeSubscriber(id)
		return true
	})
}

func (b *Broker) removeSubscriber(id uint64) {
	if sub, ok := b.subscribers.LoadAndDelete(id); ok {
		sub.close()
		b.metrics.SetSubscribers(b.subscribers.Size())
	}
}
