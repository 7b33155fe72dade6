package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Lifecycle operation results.
const (
	ResultSuccess   = "success"
	ResultNotFound  = "not_found"
	ResultRejected  = "rejected"
	ResultForbidden = "forbidden"
	ResultError     = "error"
)

// Metrics holds every prometheus collector the service exports. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	operations        *prometheus.CounterVec
	numberFallbacks   prometheus.Counter
	numberCollisions  prometheus.Counter
	propagationDepth  prometheus.Histogram
	notificationsSent *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(registry)
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sow_lifecycle_operations_total",
			Help: "Scope of work lifecycle operations by outcome",
		}, []string{"operation", "result"}),
		numberFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sow_number_fallbacks_total",
			Help: "Numbers issued from the timestamp fallback after every sequential proposal collided",
		}),
		numberCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sow_number_collisions_total",
			Help: "Sequential number proposals rejected because they were already taken",
		}),
		propagationDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sow_propagation_depth",
			Help:    "Number of ancestors touched by one upward status propagation",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 100},
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sow_notifications_total",
			Help: "Notification dispatch attempts by channel and result",
		}, []string{"channel", "result"}),
	}
	registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.operations,
		m.numberFallbacks,
		m.numberCollisions,
		m.propagationDepth,
		m.notificationsSent,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest counts a served HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOperation counts a lifecycle operation outcome.
func (m *Metrics) RecordOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// RecordNumberCollision counts a taken sequential proposal.
func (m *Metrics) RecordNumberCollision() {
	if m == nil {
		return
	}
	m.numberCollisions.Inc()
}

// RecordNumberFallback counts a timestamp-derived number.
func (m *Metrics) RecordNumberFallback() {
	if m == nil {
		return
	}
	m.numberFallbacks.Inc()
}

// ObservePropagationDepth records how many ancestors a walk updated.
func (m *Metrics) ObservePropagationDepth(depth int) {
	if m == nil {
		return
	}
	m.propagationDepth.Observe(float64(depth))
}

// RecordNotification counts a notification dispatch attempt.
func (m *Metrics) RecordNotification(channel, result string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(channel, result).Inc()
}
