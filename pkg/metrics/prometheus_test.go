package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_RecordsAssignments(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordAssignment("pickup", "success")
	p.RecordAssignment("pickup", "success")
	p.RecordAssignment("pickup", "rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.assignments.WithLabelValues("pickup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.assignments.WithLabelValues("pickup", "rejected")))
}

func TestPrometheus_ReconcileAndSubscribers(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")

	p.RecordReconcile(4, 2)
	p.SetSubscribers(3)
	p.RecordAbsentMarked(5)

	assert.Equal(t, 4.0, testutil.ToFloat64(p.reconcileRows.WithLabelValues("create")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.reconcileRows.WithLabelValues("delete")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.subscribers))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.absentMarked))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.Contains(t, families[0].GetName(), "hums_")
}

func TestNop_SatisfiesCollector(t *testing.T) {
	var c Collector = NewNop()
	c.RecordAssignment("register", "success")
	c.RecordEventPublished("register", 0)
	c.SetSubscribers(1)
}
