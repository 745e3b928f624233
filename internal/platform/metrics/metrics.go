package metrics

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus metrics. A nil *Collector is a
// valid no-op recorder.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	PatientsCreatedTotal *prometheus.CounterVec
	BookingsTotal        *prometheus.CounterVec
	StatusChangesTotal   *prometheus.CounterVec
	RecordAccessTotal    *prometheus.CounterVec
}

// NewCollector registers all metrics on a fresh registry together with the
// Go runtime and process collectors.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		PatientsCreatedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "patients_created_total",
			Help:      "Patient records created, by source (admin or booking).",
		}, []string{"source"}),

		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Self-service booking attempts by outcome.",
		}, []string{"outcome"}),

		StatusChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "status_changes_total",
			Help:      "Appointment status changes by new status and origin (admin or self_service).",
		}, []string{"status", "origin"}),

		RecordAccessTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "record_access_total",
			Help:      "Audited accesses to patient, doctor and appointment records by resource and action.",
		}, []string{"resource", "action"}),
	}
}

// ObservePool exports connection pool statistics as gauges read at scrape time.
func (c *Collector) ObservePool(namespace string, pool *pgxpool.Pool) {
	if c == nil || pool == nil {
		return
	}
	gauge := func(name, help string, fn func(*pgxpool.Stat) float64) {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(pool.Stat()) }))
	}
	gauge("open_connections", "Current number of open database connections.",
		func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) })
	gauge("acquired_connections", "Connections currently checked out of the pool.",
		func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) })
	gauge("max_connections", "Configured pool size.",
		func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) })
}

// PatientCreated counts a new patient row. source is "admin" or "booking".
func (c *Collector) PatientCreated(source string) {
	if c == nil {
		return
	}
	c.PatientsCreatedTotal.WithLabelValues(source).Inc()
}

// BookingOutcome counts a booking attempt: "created", "rejected" or "failed".
func (c *Collector) BookingOutcome(outcome string) {
	if c == nil {
		return
	}
	c.BookingsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) StatusChanged(status, origin string) {
	if c == nil {
		return
	}
	c.StatusChangesTotal.WithLabelValues(status, origin).Inc()
}

func (c *Collector) RecordAccess(resource, action string) {
	if c == nil {
		return
	}
	c.RecordAccessTotal.WithLabelValues(resource, action).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
