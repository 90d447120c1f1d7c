// Package metrics exposes Prometheus counters for cash custody.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	movements      *prometheus.CounterVec
	discrepancies  *prometheus.CounterVec
	sessionsClosed *prometheus.CounterVec
	liquidations   *prometheus.CounterVec
	eventFailures  prometheus.Counter
	retries        *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashbox",
			Name:      "movements_total",
			Help:      "Cash movements appended to the ledger, by type.",
		}, []string{"type"}),
		discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashbox",
			Name:      "discrepancies_total",
			Help:      "Counted amounts that did not match the system balance, by stage.",
		}, []string{"stage"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashbox",
			Name:      "sessions_closed_total",
			Help:      "Cashbox sessions closed, by reconciliation outcome.",
		}, []string{"outcome"}),
		liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashbox",
			Name:      "liquidation_groups_total",
			Help:      "Employee groups processed by the liquidation batch, by result.",
		}, []string{"result"}),
		eventFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cashbox",
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be delivered to the event stream.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cashbox",
			Name:      "transient_retries_total",
			Help:      "Retries of idempotent operations after transient store errors.",
		}, []string{"operation"}),
	}
	reg.MustRegister(m.movements, m.discrepancies, m.sessionsClosed, m.liquidations, m.eventFailures, m.retries)
	return m
}

func (m *Metrics) MovementRecorded(movementType string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(movementType).Inc()
}

// Discrepancy counts a non-zero difference found at stage "audit" or "close".
func (m *Metrics) Discrepancy(stage string) {
	if m == nil {
		return
	}
	m.discrepancies.WithLabelValues(stage).Inc()
}

func (m *Metrics) SessionClosed(outcome string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(outcome).Inc()
}

// LiquidationGroup counts a group result: created, skipped or failed.
func (m *Metrics) LiquidationGroup(result string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(result).Inc()
}

func (m *Metrics) EventPublishFailed() {
	if m == nil {
		return
	}
	m.eventFailures.Inc()
}

func (m *Metrics) Retried(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}
