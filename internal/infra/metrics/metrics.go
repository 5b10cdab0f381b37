// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkshare_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parkshare_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reservationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkshare_reservation_transitions_total",
		Help: "Reservation lifecycle transitions by operation and result",
	}, []string{"operation", "result"})

	reservationBillCents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parkshare_reservation_bill_cents",
		Help:    "Bill of closed reservations in cents",
		Buckets: prometheus.ExponentialBuckets(50, 2, 12),
	})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkshare_auth_attempts_total",
		Help: "Authentication steps by step and result",
	}, []string{"step", "result"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkshare_notifications_total",
		Help: "Notification deliveries by channel, template and result",
	}, []string{"channel", "template", "result"})

	notificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parkshare_notification_duration_seconds",
		Help:    "Duration of notification deliveries",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	cleanupOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkshare_cleanup_operations_total",
		Help: "Count of expiry cleanups by source, kind and result",
	}, []string{"source", "kind", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveReservation records a reservation operation outcome.
func ObserveReservation(operation string, err error) {
	reservationTransitions.WithLabelValues(operation, result(err)).Inc()
}

// ObserveBill records the bill of a closed reservation.
func ObserveBill(cents int64) {
	reservationBillCents.Observe(float64(cents))
}

// ObserveAuth records the outcome of an authentication step.
func ObserveAuth(step string, err error) {
	authAttempts.WithLabelValues(step, result(err)).Inc()
}

// ObserveNotification records a notification delivery.
func ObserveNotification(channel, template string, err error, duration time.Duration) {
	notificationsSent.WithLabelValues(channel, template, result(err)).Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// ObserveCleanup increments the cleanup counter for the given source, kind and result.
func ObserveCleanup(source, kind string, err error) {
	cleanupOperations.WithLabelValues(source, kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
