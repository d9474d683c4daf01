// Package metrics exposes Prometheus instrumentation for the API
// server and the ledger engines.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halolabs/memberd/internal/common/config"
	"github.com/halolabs/memberd/internal/common/errorx"
)

// Metrics holds the process registry and the service counters.
// All observe methods are nil-safe so wiring stays optional.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	pointsOps   *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	orders      prometheus.Counter
}

// New builds a Metrics with its own registry, including the standard
// Go and process collectors.
func New(cfg config.MetricsConfig) *Metrics {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "memberd"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   buckets,
		}, []string{"method", "route"}),
		pointsOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_operations_total",
			Help:      "Point ledger mutations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "card_redemptions_total",
			Help:      "Recharge card redemption attempts, by outcome.",
		}, []string{"outcome"}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recharge_orders_total",
			Help:      "Online recharge orders created.",
		}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.pointsOps, m.redemptions, m.orders)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// outcome maps an engine error to a counter label.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *errorx.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "error"
}

// ObservePointsOp counts a ledger mutation.
func (m *Metrics) ObservePointsOp(operation string, err error) {
	if m == nil {
		return
	}
	m.pointsOps.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveRedemption counts a card redemption attempt.
func (m *Metrics) ObserveRedemption(err error) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome(err)).Inc()
}

// ObserveOrder counts an online recharge order.
func (m *Metrics) ObserveOrder() {
	if m == nil {
		return
	}
	m.orders.Inc()
}
