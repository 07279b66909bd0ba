package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resourcebase_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resourcebase_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Realtime metrics
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resourcebase_ws_connections",
			Help: "Open websocket connections",
		},
	)

	WSUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resourcebase_ws_users",
			Help: "Users with at least one open websocket connection",
		},
	)

	// Notification metrics
	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resourcebase_notifications_created_total",
			Help: "Notifications stored by type",
		},
		[]string{"type"},
	)

	NotificationPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resourcebase_notification_pushes_total",
			Help: "Realtime push attempts by outcome (delivered, skipped, failed)",
		},
		[]string{"outcome"},
	)

	// Write path metrics
	Votes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resourcebase_votes_total",
			Help: "Vote requests by resulting action",
		},
		[]string{"action"},
	)

	BadgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resourcebase_badges_awarded_total",
			Help: "Badges awarded by type and level",
		},
		[]string{"type", "level"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(WSConnections)
	prometheus.MustRegister(WSUsers)
	prometheus.MustRegister(NotificationsCreated)
	prometheus.MustRegister(NotificationPushes)
	prometheus.MustRegister(Votes)
	prometheus.MustRegister(BadgesAwarded)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
