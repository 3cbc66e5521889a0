// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitcore"

// Metrics groups every collector the server updates.
type Metrics struct {
	registry *prometheus.Registry

	// RPCRequests counts finished RPCs by procedure and Connect code ("ok" on success).
	RPCRequests *prometheus.CounterVec

	// RPCDuration observes RPC latency by procedure.
	RPCDuration *prometheus.HistogramVec

	// PlansRegenerated counts settlement plans written for a group.
	PlansRegenerated prometheus.Counter

	// SettlementsRecorded counts settlements written as part of a plan.
	SettlementsRecorded prometheus.Counter

	// SettlementsPaid counts recorded settlements moved to paid.
	SettlementsPaid prometheus.Counter

	// MarkPaidNoops counts mark-paid calls on settlements that were already paid.
	MarkPaidNoops prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates the collectors on reg. Tests pass their own registry
// to keep counts isolated.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Finished RPCs by procedure and result code.",
		}, []string{"procedure", "code"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		PlansRegenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "plans_regenerated_total",
			Help:      "Settlement plans recomputed and stored.",
		}),
		SettlementsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "settlements_recorded_total",
			Help:      "Settlements recorded as part of a plan.",
		}),
		SettlementsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "settlements_paid_total",
			Help:      "Settlements marked paid.",
		}),
		MarkPaidNoops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "mark_paid_noops_total",
			Help:      "Mark-paid calls on settlements that were already paid.",
		}),
	}
	reg.MustRegister(
		m.RPCRequests,
		m.RPCDuration,
		m.PlansRegenerated,
		m.SettlementsRecorded,
		m.SettlementsPaid,
		m.MarkPaidNoops,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
