package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus 基于 client_golang 的指标实现，首次记录时惰性注册
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignments    *prometheus.CounterVec
	reconcileRows  *prometheus.CounterVec
	eventsSent     *prometheus.CounterVec
	eventsDelivery prometheus.Histogram
	eventsDropped  prometheus.Counter
	subscribers    prometheus.Gauge
	absentMarked   prometheus.Counter
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus reg 为 nil 时使用默认注册器，namespace 为空时使用 "hums"
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "hums"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "schedule",
			Name:      "assignment_ops_total",
			Help:      "Assignment workflow operations by op and result.",
		}, []string{"op", "result"})
		p.reconcileRows = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "schedule",
			Name:      "reconcile_rows_total",
			Help:      "Occurrence rows created/deleted by reconciliation.",
		}, []string{"action"})
		p.eventsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Schedule events published by type.",
		}, []string{"type"})
		p.eventsDelivery = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "events",
			Name:      "delivered_subscribers",
			Help:      "Number of subscribers an event was delivered to.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		})
		p.eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because a subscriber buffer was full.",
		})
		p.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Current number of live event subscribers.",
		})
		p.absentMarked = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "attendance",
			Name:      "absent_marked_total",
			Help:      "Attendance rows marked absent by the background sweep.",
		})

		p.reg.MustRegister(p.assignments)
		p.reg.MustRegister(p.reconcileRows)
		p.reg.MustRegister(p.eventsSent)
		p.reg.MustRegister(p.eventsDelivery)
		p.reg.MustRegister(p.eventsDropped)
		p.reg.MustRegister(p.subscribers)
		p.reg.MustRegister(p.absentMarked)
	})
}

func (p *Prometheus) RecordAssignment(op, result string) {
	p.ensureRegistered()
	p.assignments.WithLabelValues(op, result).Inc()
}

func (p *Prometheus) RecordReconcile(created, deleted int) {
	p.ensureRegistered()
	p.reconcileRows.WithLabelValues("create").Add(float64(created))
	p.reconcileRows.WithLabelValues("delete").Add(float64(deleted))
}

func (p *Prometheus) RecordEventPublished(eventType string, delivered int) {
	p.ensureRegistered()
	p.eventsSent.WithLabelValues(eventType).Inc()
	p.eventsDelivery.Observe(float64(delivered))
}

func (p *Prometheus) RecordEventDropped() {
	p.ensureRegistered()
	p.eventsDropped.Inc()
}

func (p *Prometheus) SetSubscribers(n int) {
	p.ensureRegistered()
	p.subscribers.Set(float64(n))
}

func (p *Prometheus) RecordAbsentMarked(n int) {
	p.ensureRegistered()
	p.absentMarked.Add(float64(n))
}
