package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

const metricsNamespace = "chessgate"

// Move outcomes used as the "outcome" label.
const (
	OutcomeOK          = "ok"
	OutcomeCached      = "cached"
	OutcomeError       = "error"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeNotFound    = "not_found"
)

// Metrics holds the Prometheus collectors for the manager.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	moves        *prometheus.CounterVec
	moveLatency  *prometheus.HistogramVec
	probes       *prometheus.CounterVec
	available    *prometheus.GaugeVec
	breakerState *prometheus.GaugeVec
	reloads      *prometheus.CounterVec
	engines      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: engine, outcome (ok, cached, error, circuit_open, not_found)
		moves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "moves_total",
			Help:      "Move requests by engine and outcome",
		}, []string{"engine", "outcome"}),

		moveLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "move_duration_seconds",
			Help:      "Time to obtain a verified move",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"engine"}),

		// Labels: engine, result (up, down)
		probes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "availability_probes_total",
			Help:      "Availability probes by engine and result",
		}, []string{"engine", "result"}),

		available: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "engine_available",
			Help:      "1 if the last probe succeeded, 0 otherwise",
		}, []string{"engine"}),

		// 0 closed, 1 half-open, 2 open
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per engine",
		}, []string{"engine"}),

		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "reloads_total",
			Help:      "Engine configuration reloads by result",
		}, []string{"result"}),

		engines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "engines",
			Help:      "Number of engines currently loaded",
		}),
	}
}

func (m *Metrics) observeMove(engine, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(engine, outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeError {
		m.moveLatency.WithLabelValues(engine).Observe(d.Seconds())
	}
}

func (m *Metrics) observeProbe(engine string, up bool) {
	if m == nil {
		return
	}
	result, value := "down", 0.0
	if up {
		result, value = "up", 1.0
	}
	m.probes.WithLabelValues(engine, result).Inc()
	m.available.WithLabelValues(engine).Set(value)
}

func (m *Metrics) setBreakerState(engine string, state gobreaker.State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(engine).Set(float64(state))
}

func (m *Metrics) observeReload(ok bool, engines int) {
	if m == nil {
		return
	}
	if !ok {
		m.reloads.WithLabelValues("failure").Inc()
		return
	}
	m.reloads.WithLabelValues("success").Inc()
	m.engines.Set(float64(engines))
}

func (m *Metrics) setEngineCount(n int) {
	if m == nil {
		return
	}
	m.engines.Set(float64(n))
}
