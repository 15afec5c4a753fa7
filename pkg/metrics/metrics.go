package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sift_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// UploadsTotal counts processed CV uploads by terminal outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_uploads_total",
			Help: "Processed CV uploads by terminal status.",
		},
		[]string{"status"},
	)

	// DispatchesTotal counts analysis dispatch attempts by outcome.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_dispatches_total",
			Help: "Analysis dispatch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// CreditDenialsTotal counts debits refused because the quota was spent.
	CreditDenialsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sift_credit_denials_total",
			Help: "Debit attempts refused because the monthly quota was exhausted.",
		},
	)

	// AnalysisDuration observes end-to-end CV analysis latency.
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sift_analysis_duration_seconds",
			Help:    "End-to-end CV analysis latency.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	// WebsocketConnections tracks currently open realtime subscribers.
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sift_websocket_connections",
			Help: "Currently open realtime websocket connections.",
		},
	)
)

// Middleware records request counts and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		method := c.Method()
		status := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, route, status).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler exposes the prometheus scrape endpoint as a fiber handler.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
