// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendancehook"

// Outcome labels for notifications.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	Notifications        *prometheus.CounterVec
	NotificationDuration *prometheus.HistogramVec
	ValidationFailures   prometheus.Counter
	RateLimited          prometheus.Counter
	Requests             *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, along with the standard Go
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "WhatsApp notifications dispatched, by message type and outcome.",
		}, []string{"type", "outcome"}),
		NotificationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Latency of the outbound WhatsApp API call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Attendance payloads rejected by validation.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Notifications,
		m.NotificationDuration,
		m.ValidationFailures,
		m.RateLimited,
		m.Requests,
	)

	return m
}

// ObserveNotification records one outbound call.
func (m *Metrics) ObserveNotification(msgType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(msgType, outcome).Inc()
	m.NotificationDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncValidationFailure counts a rejected payload.
func (m *Metrics) IncValidationFailure() {
	if m == nil {
		return
	}
	m.ValidationFailures.Inc()
}

// IncRateLimited counts a request rejected by the limiter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// ObserveRequest counts one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
