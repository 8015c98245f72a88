package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for synthesis runs and the synthd
// service. A nil *Metrics records nothing.
type Metrics struct {
	SynthesisTotal      *prometheus.CounterVec
	SynthesisDurationMs *prometheus.HistogramVec
	ViolationsTotal     *prometheus.CounterVec
	GraphNodes          *prometheus.GaugeVec
	Routes              *prometheus.GaugeVec
	PolicyDecisionTotal *prometheus.CounterVec
	CacheTotal          *prometheus.CounterVec
	HTTPRequestTotal    *prometheus.CounterVec
	RateLimitHitTotal   *prometheus.CounterVec
	BreakerStateChanges *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates and registers all metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SynthesisTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlapi_synthesis_total",
			Help: "Total number of synthesis runs by outcome.",
		}, []string{"source", "outcome"}),

		SynthesisDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mlapi_synthesis_duration_ms",
			Help:    "Synthesis duration in milliseconds, validation through route table.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"source"}),

		ViolationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlapi_violations_total",
			Help: "Total configuration violations reported, by kind.",
		}, []string{"kind"}),

		GraphNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mlapi_graph_nodes",
			Help: "Resource graph nodes of the last successful synthesis, by kind.",
		}, []string{"source", "kind"}),

		Routes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mlapi_routes",
			Help: "Routes in the last successful synthesis.",
		}, []string{"source"}),

		PolicyDecisionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlapi_policy_decision_total",
			Help: "Total policy gate decisions per entity.",
		}, []string{"decision"}),

		CacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlapi_manifest_cache_total",
			Help: "Manifest cache lookups by result.",
		}, []string{"result"}),

		HTTPRequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlapi_http_request_total",
			Help: "Total HTTP requests served by synthd.",
		}, []string{"route", "status"}),

		RateLimitHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlapi_rate_limit_hit_total",
			Help: "Requests rejected by the compile endpoint rate limit.",
		}, []string{"route"}),

		BreakerStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mlapi_history_breaker_transitions_total",
			Help: "Synthesis history circuit breaker transitions by new state.",
		}, []string{"state"}),
	}
}

// SynthesisLabels holds the values recorded for one synthesis run.
type SynthesisLabels struct {
	Source     string
	Outcome    string
	DurationMs float64
	Violations map[string]int
	Nodes      map[string]int
	Routes     int
}

const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeIntegrity = "integrity_error"
	OutcomeError     = "error"
)

// RecordSynthesis records metrics for a completed run. Node and route gauges
// only move on success.
func (m *Metrics) RecordSynthesis(labels SynthesisLabels) {
	if m == nil {
		return
	}
	m.SynthesisTotal.WithLabelValues(labels.Source, labels.Outcome).Inc()
	m.SynthesisDurationMs.WithLabelValues(labels.Source).Observe(labels.DurationMs)

	for kind, n := range labels.Violations {
		if n > 0 {
			m.ViolationsTotal.WithLabelValues(kind).Add(float64(n))
		}
	}

	if labels.Outcome != OutcomeSuccess {
		return
	}
	for kind, n := range labels.Nodes {
		m.GraphNodes.WithLabelValues(labels.Source, kind).Set(float64(n))
	}
	m.Routes.WithLabelValues(labels.Source).Set(float64(labels.Routes))
}

func (m *Metrics) RecordPolicyDecision(allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.PolicyDecisionTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordHTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestTotal.WithLabelValues(route, status).Inc()
}

func (m *Metrics) RecordRateLimitHit(route string) {
	if m == nil {
		return
	}
	m.RateLimitHitTotal.WithLabelValues(route).Inc()
}

func (m *Metrics) RecordBreakerTransition(state string) {
	if m == nil {
		return
	}
	m.BreakerStateChanges.WithLabelValues(state).Inc()
}
