package metrics

import (
	"errors"
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

func TestCollectorSessions(t *testing.T) {
	c := NewCollector("drill")

	c.SessionStarted("openai")
	c.SessionStarted("gemini")
	c.SessionEnded("openai", "closed")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsEnded.WithLabelValues("openai", "closed")))
}

func TestCollectorTurns(t *testing.T) {
	c := NewCollector("drill")

	c.TurnCompleted("claude", time.Second, true, false, nil)
	c.TurnCompleted("claude", time.Second, false, false, nil)
	c.TurnCompleted("claude", time.Second, false, false, errors.New("boom"))
	c.TurnCompleted("claude", time.Second, true, true, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("claude", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("claude", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("claude", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsCompleted.WithLabelValues("claude")))
}

func TestCollectorModelCalls(t *testing.T) {
	c := NewCollector("drill")
	c.ObserveModelCall("openai", 200*time.Millisecond, nil)
	c.ObserveModelCall("openai", time.Second, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelCallsTotal.WithLabelValues("openai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelCallsTotal.WithLabelValues("openai", "error")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := NewCollector("drill")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/session/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/session/{id}", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "drill_http_requests_total"))
}
