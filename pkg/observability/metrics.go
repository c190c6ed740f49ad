package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBWaitCount        prometheus.Gauge

	// Access control
	AccessDecisionsTotal *prometheus.CounterVec

	// Activity fan-out
	FanoutDeliveriesTotal *prometheus.CounterVec
	FanoutFailuresTotal   *prometheus.CounterVec

	// External prediction service
	PredictionRequestsTotal *prometheus.CounterVec
	PredictionDuration      *prometheus.HistogramVec

	// Domain writes
	DomainOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskhub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "route"},
		),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskhub_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskhub_db_connections_in_use",
			Help: "Number of database connections in use",
		}),
		DBWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskhub_db_wait_count",
			Help: "Total number of connections waited for",
		}),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_access_decisions_total",
				Help: "Access-control decisions by outcome",
			},
			[]string{"outcome"},
		),
		FanoutDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_fanout_deliveries_total",
				Help: "Activity events delivered per sink",
			},
			[]string{"sink"},
		),
		FanoutFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_fanout_failures_total",
				Help: "Activity events dropped per sink",
			},
			[]string{"sink"},
		),
		PredictionRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_prediction_requests_total",
				Help: "Calls to the prediction service by endpoint and result",
			},
			[]string{"endpoint", "result"},
		),
		PredictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskhub_prediction_duration_seconds",
				Help:    "Prediction service latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		DomainOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_domain_operations_total",
				Help: "Successful domain writes by entity and operation",
			},
			[]string{"entity", "operation"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBWaitCount,
		m.AccessDecisionsTotal,
		m.FanoutDeliveriesTotal,
		m.FanoutFailuresTotal,
		m.PredictionRequestsTotal,
		m.PredictionDuration,
		m.DomainOperationsTotal,
	)

	return m
}

// RecordAccessDecision counts an access-control outcome
func (m *Metrics) RecordAccessDecision(outcome string) {
	if m == nil {
		return
	}
	m.AccessDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordFanout counts a fan-out delivery attempt for sink
func (m *Metrics) RecordFanout(sink string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FanoutFailuresTotal.WithLabelValues(sink).Inc()
		return
	}
	m.FanoutDeliveriesTotal.WithLabelValues(sink).Inc()
}

// RecordPrediction records a prediction service call
func (m *Metrics) RecordPrediction(endpoint string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.PredictionRequestsTotal.WithLabelValues(endpoint, result).Inc()
	m.PredictionDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordOperation counts a successful domain write
func (m *Metrics) RecordOperation(entity, operation string) {
	if m == nil {
		return
	}
	m.DomainOperationsTotal.WithLabelValues(entity, operation).Inc()
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux route template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
