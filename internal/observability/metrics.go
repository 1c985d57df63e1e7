package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	httpRequestsTotal           *prometheus.CounterVec
	httpLatencySeconds          *prometheus.HistogramVec
	httpErrorsTotal             *prometheus.CounterVec
	evaluationsCreatedTotal     *prometheus.CounterVec
	evaluationsFinalizedTotal   *prometheus.CounterVec
	notificationsPublishedTotal *prometheus.CounterVec
	sseClientsActive            prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gema",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Name:      "http_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Name:      "evaluations_created_total",
			Help:      "Evaluations created, by scope, source and status.",
		}, []string{"scope", "source", "status"})

		evaluationsFinalizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Name:      "evaluations_finalized_total",
			Help:      "Evaluations that reached the final status, by scope.",
		}, []string{"scope"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Name:      "notifications_published_total",
			Help:      "Notifications delivered to live subscribers, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gema",
			Name:      "notification_stream_clients",
			Help:      "Currently connected notification stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			evaluationsCreatedTotal,
			evaluationsFinalizedTotal,
			notificationsPublishedTotal,
			sseClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EvaluationsCreated exposes the evaluation creation counter.
func EvaluationsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsCreatedTotal
}

// EvaluationsFinalized exposes the evaluation finalisation counter.
func EvaluationsFinalized() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsFinalizedTotal
}

// NotificationsPublishedTotal exposes the notification delivery counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// SSEClientsActive exposes the gauge of connected stream clients.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
