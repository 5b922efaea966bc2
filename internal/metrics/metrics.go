// Package metrics exposes Prometheus collectors for tutor turns, mistake
// logging and the HTTP API. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tool call outcomes.
const (
	ToolLogged      = "logged"
	ToolDuplicate   = "duplicate"
	ToolFailed      = "failed"
	ToolUnsupported = "unsupported"
)

// Metrics groups every collector the application registers.
type Metrics struct {
	registry prometheus.Gatherer

	TurnsTotal      *prometheus.CounterVec
	TurnDuration    prometheus.Histogram
	ToolCallsTotal  *prometheus.CounterVec
	MistakesLogged  *prometheus.CounterVec
	FollowUpsTotal  prometheus.Counter
	ActiveSessions  prometheus.Gauge
	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry
// together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parla_turns_total",
				Help: "Total number of tutor turns by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "parla_turn_duration_seconds",
				Help:    "Duration of tutor turns including tool handling and follow-up",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30},
			},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parla_tool_calls_total",
				Help: "Tool calls requested by the model, by result",
			},
			[]string{"result"},
		),
		MistakesLogged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parla_mistakes_logged_total",
				Help: "Mistakes persisted to the mistake log, by error type",
			},
			[]string{"error_type"},
		),
		FollowUpsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parla_followups_total",
				Help: "Follow-up model calls issued after tool-only replies",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "parla_active_sessions",
				Help: "Lessons started and not yet ended in this process",
			},
		),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.TurnsTotal,
		m.TurnDuration,
		m.ToolCallsTotal,
		m.MistakesLogged,
		m.FollowUpsTotal,
		m.ActiveSessions,
		m.RequestCounter,
		m.RequestDuration,
	)
	return m
}

// ObserveTurn records a finished turn. outcome is "ok" or "error".
func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

// ToolCall counts one tool call with its result.
func (m *Metrics) ToolCall(result string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(result).Inc()
}

// MistakeLogged counts a persisted mistake.
func (m *Metrics) MistakeLogged(errorType string) {
	if m == nil {
		return
	}
	m.MistakesLogged.WithLabelValues(errorType).Inc()
}

// FollowUp counts a follow-up model call.
func (m *Metrics) FollowUp() {
	if m == nil {
		return
	}
	m.FollowUpsTotal.Inc()
}

// SessionStarted and SessionEnded track live lessons.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
