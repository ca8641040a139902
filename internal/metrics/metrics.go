// Package metrics defines the Prometheus collectors exported on /metrics.
// Every method is safe on a nil *Metrics so services can run without them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpDuration  *prometheus.HistogramVec
	attendance    *prometheus.CounterVec
	duplicates    prometheus.Counter
	notifications *prometheus.CounterVec
	emails        *prometheus.CounterVec
	rateLimited   prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		attendance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marked_total",
			Help: "Attendance records created, by status and source.",
		}, []string{"status", "source"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_duplicate_total",
			Help: "Check-ins rejected because the staff member was already marked that day.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications created, by audience.",
		}, []string{"audience"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emails_total",
			Help: "Emails handled by the worker, by template and result.",
		}, []string{"template", "result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpDuration, m.attendance, m.duplicates, m.notifications, m.emails, m.rateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) AttendanceMarked(status, source string) {
	if m == nil {
		return
	}
	m.attendance.WithLabelValues(status, source).Inc()
}

func (m *Metrics) DuplicateCheckIn() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) NotificationCreated(audience string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(audience).Inc()
}

func (m *Metrics) EmailHandled(template, result string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(template, result).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
