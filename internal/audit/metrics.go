package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Ingestion: outcome of POST /api/audit/logs as seen by the caller
	RequestsTotal *prometheus.CounterVec

	// Delivery: events written to or failed at the sink
	DispatchedTotal *prometheus.CounterVec

	// Load shedding: events that never reached the sink
	DroppedTotal *prometheus.CounterVec

	// Saturation: events waiting in the dispatcher buffer
	BufferFill prometheus.Gauge

	FlushDuration *prometheus.HistogramVec

	// 0 closed, 1 half-open, 2 open
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null object: an unregistered local registry when none is given.
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "evco_audit_requests_total",
			Help: "Audit ingestion requests by result.",
		}, []string{"result"}), // accepted, bad_request, unauthorized, forbidden, other

		DispatchedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "evco_audit_events_dispatched_total",
			Help: "Audit events handed to the sink by outcome.",
		}, []string{"sink", "outcome"}),

		DroppedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "evco_audit_events_dropped_total",
			Help: "Audit events dropped before reaching the sink.",
		}, []string{"reason"}), // overflow, stopped

		BufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "evco_audit_buffer_utilization",
			Help: "Current number of events in the dispatcher buffer.",
		}),

		FlushDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evco_audit_flush_duration_seconds",
			Help:    "Time spent writing one batch to the sink.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"sink"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "evco_audit_circuit_breaker_state",
			Help: "Sink circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"sink"}),
	}
}
