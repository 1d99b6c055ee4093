package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handoff outcomes used as metric labels
const (
	OutcomeDelivered  = "delivered"
	OutcomeOffline    = "offline"
	OutcomeRejected   = "rejected"
	OutcomePersisted  = "persisted"
	OutcomeStoreError = "store_error"
)

// MetricsCollector handles Prometheus metrics collection.
// Each collector owns its registry so several services can live in one process.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	handoffSendsTotal      *prometheus.CounterVec
	handoffCompletions     *prometheus.CounterVec
	registrationsTotal     *prometheus.CounterVec
	registeredConnections  prometheus.Gauge
	authAttemptsTotal      *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	systemErrors           *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	labels := prometheus.Labels{"service": serviceName}

	m := &MetricsCollector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Duration of HTTP requests in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"method", "endpoint"},
		),
		handoffSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "handoff_sends_total",
				Help:        "Doctor to reception sends by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		handoffCompletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "handoff_completions_total",
				Help:        "Receptionist completions by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		registrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "realtime_registrations_total",
				Help:        "Session registrations by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		registeredConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "realtime_registered_users",
				Help:        "Users currently published in the identity directory",
				ConstLabels: labels,
			},
		),
		authAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "auth_attempts_total",
				Help:        "Total number of authentication attempts",
				ConstLabels: labels,
			},
			[]string{"method", "status"},
		),
		storeOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "store_operation_duration_seconds",
				Help:        "Duration of storage operations in seconds",
				Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
				ConstLabels: labels,
			},
			[]string{"operation", "collection"},
		),
		systemErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "system_errors_total",
				Help:        "Total number of system errors",
				ConstLabels: labels,
			},
			[]string{"error_type", "component"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.handoffSendsTotal,
		m.handoffCompletions,
		m.registrationsTotal,
		m.registeredConnections,
		m.authAttemptsTotal,
		m.storeOperationDuration,
		m.systemErrors,
		prometheus.NewGoCollector(),
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordHandoffSend records the outcome of one send_to_reception
func (m *MetricsCollector) RecordHandoffSend(outcome string) {
	m.handoffSendsTotal.WithLabelValues(outcome).Inc()
}

// RecordHandoffCompletion records the outcome of one mark_as_done
func (m *MetricsCollector) RecordHandoffCompletion(outcome string) {
	m.handoffCompletions.WithLabelValues(outcome).Inc()
}

// RecordRegistration records an accepted or rejected registration
func (m *MetricsCollector) RecordRegistration(accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	m.registrationsTotal.WithLabelValues(outcome).Inc()
}

// SetRegisteredUsers reports the directory size
func (m *MetricsCollector) SetRegisteredUsers(n int) {
	m.registeredConnections.Set(float64(n))
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(method, status string) {
	m.authAttemptsTotal.WithLabelValues(method, status).Inc()
}

// RecordStoreOperation records storage operation latency
func (m *MetricsCollector) RecordStoreOperation(operation, collection string, duration time.Duration) {
	m.storeOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	m.systemErrors.WithLabelValues(errorType, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
