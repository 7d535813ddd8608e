package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "univast_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "univast_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Lifecycle
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "univast_application_transitions_total",
			Help: "Application status transitions by target status",
		},
		[]string{"from", "to"},
	)

	SubmissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "univast_application_submissions_total",
			Help: "Applications submitted",
		},
	)

	// Notifications
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "univast_notifications_total",
			Help: "Notification dispatch attempts by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// Attachments
	AttachmentBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "univast_attachment_bytes",
			Help:    "Size of stored attachments",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"category"},
	)

	AttachmentOrphansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "univast_attachment_orphans_total",
			Help: "Attachments that could not be released after their owner was removed",
		},
	)

	// Scheduler
	CronRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "univast_cron_runs_total",
			Help: "Scheduled job runs by job and outcome",
		},
		[]string{"job", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TransitionsTotal,
		SubmissionsTotal,
		NotificationsTotal,
		AttachmentBytes,
		AttachmentOrphansTotal,
		CronRunsTotal,
	)
}

// Middleware records request counts and latency per matched route
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		RecordRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))

		return err
	}
}

// Handler exposes the default registry for scraping
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RecordRequest is a helper to record one HTTP request
func RecordRequest(method, route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
