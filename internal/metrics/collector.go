// Package metrics exposes Prometheus metrics for sessions, turns and model
// calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records drill metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	modelCallsTotal   *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	sessionsActive    prometheus.Gauge
	sessionsStarted   *prometheus.CounterVec
	sessionsEnded     *prometheus.CounterVec
	turnsTotal        *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	sessionsCompleted *prometheus.CounterVec
}

// NewCollector creates a collector registering under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		modelCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Total number of language model calls",
		}, []string{"vendor", "status"}),

		modelCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"vendor"}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live drill sessions",
		}),

		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of drill sessions started",
		}, []string{"vendor"}),

		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of drill sessions ended",
		}, []string{"vendor", "reason"}),

		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns by outcome",
		}, []string{"vendor", "outcome"}),

		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"vendor"}),

		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of sessions that passed every stage",
		}, []string{"vendor"}),
	}
}

// ObserveModelCall records one language model call.
func (c *Collector) ObserveModelCall(vendor string, elapsed time.Duration, err error) {
	c.modelCallsTotal.WithLabelValues(vendor, status(err)).Inc()
	c.modelCallDuration.WithLabelValues(vendor).Observe(elapsed.Seconds())
}

// SessionStarted records a new session.
func (c *Collector) SessionStarted(vendor string) {
	c.sessionsStarted.WithLabelValues(vendor).Inc()
	c.sessionsActive.Inc()
}

// SessionEnded records a closed or expired session.
func (c *Collector) SessionEnded(vendor, reason string) {
	c.sessionsEnded.WithLabelValues(vendor, reason).Inc()
	c.sessionsActive.Dec()
}

// TurnCompleted records the outcome of a turn.
func (c *Collector) TurnCompleted(vendor string, elapsed time.Duration, passed, finished bool, err error) {
	outcome := "failed"
	switch {
	case err != nil:
		outcome = "error"
	case passed:
		outcome = "passed"
	}
	c.turnsTotal.WithLabelValues(vendor, outcome).Inc()
	if err == nil {
		c.turnDuration.WithLabelValues(vendor).Observe(elapsed.Seconds())
	}
	if finished && err == nil {
		c.sessionsCompleted.WithLabelValues(vendor).Inc()
	}
}

// Middleware records request counts and latency by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
