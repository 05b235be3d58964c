package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the scheduling service exports
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka / outbox metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec
	OutboxPending        prometheus.Gauge

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Shop-floor metrics
	PunchesTotal          *prometheus.CounterVec
	StageActualHours      *prometheus.HistogramVec
	JobsCompleted         prometheus.Counter
	SchedulingValidations *prometheus.CounterVec
	RowLayers             *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "opcentrix",
	}
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"service", "method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"service", "method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "http_requests_in_flight",
		Help:        "Number of HTTP requests currently being processed",
		ConstLabels: prometheus.Labels{"service": config.ServiceName},
	})

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)
	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Unpublished outbox events seen by the last relay poll",
		ConstLabels: prometheus.Labels{"service": config.ServiceName},
	})

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "mongodb_operations_total", Help: "Total number of MongoDB operations"},
		[]string{"service", "collection", "operation", "status"},
	)
	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.PunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "stage_punches_total", Help: "Punch-in and punch-out attempts by outcome"},
		[]string{"service", "direction", "outcome"},
	)
	m.StageActualHours = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "stage_actual_hours",
			Help:      "Hours recorded on completed stage executions",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 12, 24, 48, 96},
		},
		[]string{"service", "stage"},
	)
	m.JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "jobs_completed_total",
		Help:        "Jobs moved to Completed by their final stage punch-out",
		ConstLabels: prometheus.Labels{"service": config.ServiceName},
	})
	m.SchedulingValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "scheduling_validations_total", Help: "Job scheduling validations by result"},
		[]string{"service", "result"},
	)
	m.RowLayers = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "machine_row_layers",
			Help:      "Layers computed for machine rows",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 12},
		},
		[]string{"service", "machine"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.KafkaEventsPublished, m.KafkaPublishDuration, m.OutboxPending,
		m.MongoDBOperations, m.MongoDBOperationDuration,
		m.PunchesTotal, m.StageActualHours, m.JobsCompleted, m.SchedulingValidations, m.RowLayers,
		m.CircuitBreakerState,
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish attempt
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// SetOutboxPending sets the pending outbox gauge
func (m *Metrics) SetOutboxPending(n int) {
	m.OutboxPending.Set(float64(n))
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordPunch records a punch attempt. direction is "in" or "out"; outcome is
// "ok" or the failure reason.
func (m *Metrics) RecordPunch(direction, outcome string) {
	m.PunchesTotal.WithLabelValues(m.serviceName, direction, outcome).Inc()
}

// RecordStageCompleted records the hours booked on a finished stage
func (m *Metrics) RecordStageCompleted(stage string, hours float64) {
	m.StageActualHours.WithLabelValues(m.serviceName, stage).Observe(hours)
}

// RecordJobCompleted counts a job reaching Completed
func (m *Metrics) RecordJobCompleted() {
	m.JobsCompleted.Inc()
}

// RecordSchedulingValidation records the outcome of a job scheduling validation
func (m *Metrics) RecordSchedulingValidation(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.SchedulingValidations.WithLabelValues(m.serviceName, result).Inc()
}

// RecordRowLayout records the layer count computed for a machine row
func (m *Metrics) RecordRowLayout(machineID string, layers int) {
	m.RowLayers.WithLabelValues(m.serviceName, machineID).Observe(float64(layers))
}

// SetCircuitBreakerState sets the circuit breaker state gauge
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
