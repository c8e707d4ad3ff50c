package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Instance metrics
	InstancesTotal            *prometheus.CounterVec
	InstanceDuration          *prometheus.HistogramVec
	InstancesActive           prometheus.Gauge
	InstanceStatusTransitions *prometheus.CounterVec

	// Vertex execution metrics
	VerticesEnteredTotal *prometheus.CounterVec
	VertexDuration       *prometheus.HistogramVec
	VertexErrors         *prometheus.CounterVec

	// Connector (service/send task HTTP call) metrics
	ConnectorRequestsTotal   *prometheus.CounterVec
	ConnectorRequestDuration *prometheus.HistogramVec
	ConnectorErrors          *prometheus.CounterVec

	// Event bus metrics
	EventsPublishedTotal *prometheus.CounterVec
	EventsConsumedTotal  *prometheus.CounterVec

	// Database metrics
	DBQueriesTotal      *prometheus.CounterVec
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "duragraph"
	}

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Instance metrics
		InstancesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_total",
				Help:      "Total number of process instances created",
			},
			[]string{"model"},
		),
		InstanceDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "instance_duration_seconds",
				Help:      "Instance lifetime from creation to a terminal status, in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"model", "status"},
		),
		InstancesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "instances_active",
				Help:      "Number of instances currently running or waiting",
			},
		),
		InstanceStatusTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_status_transitions_total",
				Help:      "Total number of instance status transitions",
			},
			[]string{"from_status", "to_status"},
		),

		// Vertex execution metrics
		VerticesEnteredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vertices_entered_total",
				Help:      "Total number of vertices entered by the scheduler",
			},
			[]string{"vertex_kind", "outcome"},
		),
		VertexDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vertex_duration_seconds",
				Help:      "Vertex run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"vertex_kind"},
		),
		VertexErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vertex_errors_total",
				Help:      "Total number of vertex run errors",
			},
			[]string{"vertex_kind", "error_kind"},
		),

		// Connector metrics
		ConnectorRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connector_requests_total",
				Help:      "Total number of connector HTTP calls (serviceTask/sendTask)",
			},
			[]string{"method", "status"},
		),
		ConnectorRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connector_request_duration_seconds",
				Help:      "Connector HTTP call duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"method"},
		),
		ConnectorErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connector_errors_total",
				Help:      "Total number of connector call errors",
			},
			[]string{"method", "error_kind"},
		),

		// Event bus metrics
		EventsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of journal events published to the outbox/NATS relay",
			},
			[]string{"event_type"},
		),
		EventsConsumedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_consumed_total",
				Help:      "Total number of events consumed from subscriptions",
			},
			[]string{"event_type"},
		),

		// Database metrics
		DBQueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_active",
				Help:      "Number of active database connections",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, reqSize, respSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordInstanceCreated records an instance creation
func (m *Metrics) RecordInstanceCreated(model string) {
	m.InstancesTotal.WithLabelValues(model).Inc()
	m.InstancesActive.Inc()
}

// RecordInstanceFinished records an instance reaching a terminal status
func (m *Metrics) RecordInstanceFinished(model, status string, duration time.Duration) {
	m.InstanceDuration.WithLabelValues(model, status).Observe(duration.Seconds())
	m.InstancesActive.Dec()
}

// RecordInstanceTransition records an instance status transition
func (m *Metrics) RecordInstanceTransition(fromStatus, toStatus string) {
	m.InstanceStatusTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordVertexEntered records the scheduler entering a vertex
func (m *Metrics) RecordVertexEntered(vertexKind, outcome string, duration time.Duration) {
	m.VerticesEnteredTotal.WithLabelValues(vertexKind, outcome).Inc()
	m.VertexDuration.WithLabelValues(vertexKind).Observe(duration.Seconds())
}

// RecordVertexError records a vertex run error
func (m *Metrics) RecordVertexError(vertexKind, errorKind string) {
	m.VertexErrors.WithLabelValues(vertexKind, errorKind).Inc()
}

// RecordConnectorRequest records a connector HTTP call
func (m *Metrics) RecordConnectorRequest(method, status string, duration time.Duration) {
	m.ConnectorRequestsTotal.WithLabelValues(method, status).Inc()
	m.ConnectorRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordConnectorError records a connector call error
func (m *Metrics) RecordConnectorError(method, errorKind string) {
	m.ConnectorErrors.WithLabelValues(method, errorKind).Inc()
}

// RecordEventPublished records an event published to the outbox/NATS relay
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordEventConsumed records an event consumed from a subscription
func (m *Metrics) RecordEventConsumed(eventType string) {
	m.EventsConsumedTotal.WithLabelValues(eventType).Inc()
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueriesTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
