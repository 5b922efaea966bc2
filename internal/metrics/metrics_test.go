package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTurn("ok", time.Second)
	m.ToolCall(ToolLogged)
	m.MistakeLogged("grammar")
	m.FollowUp()
	m.SessionStarted()
	m.SessionEnded()

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
	assert.NotNil(t, m.Middleware(h))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveTurn("ok", 200*time.Millisecond)
	m.ObserveTurn("error", time.Second)
	m.ToolCall(ToolLogged)
	m.ToolCall(ToolDuplicate)
	m.MistakeLogged("grammar")
	m.FollowUp()
	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues(ToolDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MistakesLogged.WithLabelValues("grammar")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FollowUpsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/lessons/{id}/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons/abc/messages", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/api/v1/lessons/{id}/messages", "404"))
	assert.Equal(t, 1.0, got)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}
