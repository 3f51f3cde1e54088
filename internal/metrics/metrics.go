package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// LLM metrics
	LLMCallsTotal        *prometheus.CounterVec
	LLMCallDuration      *prometheus.HistogramVec
	LLMAttemptsTotal     *prometheus.CounterVec
	LLMKeyRotationsTotal *prometheus.CounterVec

	// Action metrics
	ActionsTotal        *prometheus.CounterVec
	ActionErrorsTotal   *prometheus.CounterVec
	ActionsSkippedTotal *prometheus.CounterVec

	// Loop metrics
	LoopIterationsTotal prometheus.Counter
	LoopErrorsTotal     prometheus.Counter
	LoopSleepSeconds    prometheus.Gauge

	// Verification metrics
	VerificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// LLM metrics
		LLMCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Total number of LLM invocations",
			},
			[]string{"provider", "status"},
		),
		LLMCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_call_duration_seconds",
				Help:    "Duration of LLM invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		LLMAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_attempts_total",
				Help: "Total number of per-key, per-model LLM attempts",
			},
			[]string{"provider", "outcome"},
		),
		LLMKeyRotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_key_rotations_total",
				Help: "Total number of API key rotations after soft failures",
			},
			[]string{"provider"},
		),

		// Action metrics
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actions_total",
				Help: "Total number of executed platform actions",
			},
			[]string{"action"},
		),
		ActionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "action_errors_total",
				Help: "Total number of failed platform actions",
			},
			[]string{"action"},
		),
		ActionsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actions_skipped_total",
				Help: "Total number of actions skipped by cooldown or guard checks",
			},
			[]string{"action", "reason"},
		),

		// Loop metrics
		LoopIterationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loop_iterations_total",
				Help: "Total number of completed agent loop iterations",
			},
		),
		LoopErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loop_errors_total",
				Help: "Total number of agent loop iterations that ended in error",
			},
		),
		LoopSleepSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loop_sleep_seconds",
				Help: "Delay chosen before the next loop iteration",
			},
		),

		// Verification metrics
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifications_total",
				Help: "Total number of verification challenges answered",
			},
			[]string{"method", "status"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	// LLM metrics
	m.registry.MustRegister(m.LLMCallsTotal)
	m.registry.MustRegister(m.LLMCallDuration)
	m.registry.MustRegister(m.LLMAttemptsTotal)
	m.registry.MustRegister(m.LLMKeyRotationsTotal)

	// Action metrics
	m.registry.MustRegister(m.ActionsTotal)
	m.registry.MustRegister(m.ActionErrorsTotal)
	m.registry.MustRegister(m.ActionsSkippedTotal)

	// Loop metrics
	m.registry.MustRegister(m.LoopIterationsTotal)
	m.registry.MustRegister(m.LoopErrorsTotal)
	m.registry.MustRegister(m.LoopSleepSeconds)

	// Verification metrics
	m.registry.MustRegister(m.VerificationsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
