package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.MovementRecorded("SALE")
	m.MovementRecorded("SALE")
	m.Discrepancy("close")
	m.SessionClosed("clean")
	m.LiquidationGroup("created")
	m.EventPublishFailed()
	m.Retried("record_movement")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.movements.WithLabelValues("SALE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discrepancies.WithLabelValues("close")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsClosed.WithLabelValues("clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.liquidations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("record_movement")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MovementRecorded("SALE")
		m.Discrepancy("audit")
		m.SessionClosed("discrepancy")
		m.LiquidationGroup("failed")
		m.EventPublishFailed()
		m.Retried("status")
	})
}
