// ABOUTME: Prometheus counters for the engine's operational surface: turns generated, turn
// ABOUTME: failures, and active sessions, fed by a bus-observer goroutine per session.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3data/mase-engine/engine"
)

// Metrics holds the process-wide collectors this server registers, on its
// own registry so tests can build several without collisions.
type Metrics struct {
	registry *prometheus.Registry

	turnsGenerated *prometheus.CounterVec
	turnFailures   prometheus.Counter
	sessionsActive prometheus.Gauge
	turnLatency    prometheus.Histogram
}

// NewMetrics builds and registers the engine's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.turnsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mase",
			Subsystem: "engine",
			Name:      "turns_generated_total",
			Help:      "Total turns appended to any session log",
		},
		[]string{"kind"},
	)
	m.turnFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mase",
		Subsystem: "engine",
		Name:      "turn_failures_total",
		Help:      "Fatal per-turn failures after exhausting retries",
	})
	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mase",
		Subsystem: "engine",
		Name:      "sessions_active",
		Help:      "Sessions currently running in this process",
	})
	m.turnLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mase",
		Subsystem: "engine",
		Name:      "turn_latency_seconds",
		Help:      "LLM turn latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	m.registry.MustRegister(m.turnsGenerated, m.turnFailures, m.sessionsActive, m.turnLatency)
	return m
}

// Handler serves the /metrics scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionStarted and SessionEnded bracket a session's lifetime on the
// active-sessions gauge.
func (m *Metrics) SessionStarted() { m.sessionsActive.Inc() }
func (m *Metrics) SessionEnded()   { m.sessionsActive.Dec() }

// Observe runs for the life of one session, reading its bus from the start
// and updating counters until ctx is cancelled or the session completes.
func (m *Metrics) Observe(ctx context.Context, bus *engine.Bus) {
	cursor := bus.Cursor()
	for {
		if ctx.Err() != nil {
			return
		}
		e, next, ok := bus.Read(ctx, cursor, 2*time.Second)
		if !ok {
			continue
		}
		cursor = next
		switch e.Type {
		case engine.EventTurn:
			if e.Turn == nil {
				continue
			}
			kind := "agent"
			if e.Turn.IsHuman {
				kind = "human"
			}
			m.turnsGenerated.WithLabelValues(kind).Inc()
			if e.Turn.LatencyMs > 0 {
				m.turnLatency.Observe(float64(e.Turn.LatencyMs) / 1000.0)
			}
		case engine.EventError:
			m.turnFailures.Inc()
		case engine.EventState:
			if e.State != nil && e.State.State == engine.StateComplete {
				return
			}
		}
	}
}
