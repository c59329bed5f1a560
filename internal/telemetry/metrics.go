package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "automateos"

var (
	jobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_enqueued_total",
		Help:      "Количество поставленных в очередь заданий.",
	}, []string{"backend"})

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_completed_total",
		Help:      "Количество завершённых заданий по итоговому статусу.",
	}, []string{"backend", "status"})

	nodeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "node_executions_total",
		Help:      "Количество выполнений узлов по типу и статусу.",
	}, []string{"node_type", "status"})

	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "node_duration_seconds",
		Help:      "Длительность выполнения узла.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"node_type"})

	workflowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "workflow_duration_seconds",
		Help:      "Длительность выполнения workflow.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 600},
	}, []string{"status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Количество HTTP запросов к API.",
	}, []string{"method", "status"})
)

// RecordJobEnqueued учитывает постановку задания в очередь.
func RecordJobEnqueued(backend string) {
	jobsEnqueued.WithLabelValues(backend).Inc()
}

// RecordJobCompleted учитывает завершение задания.
func RecordJobCompleted(backend, status string) {
	jobsCompleted.WithLabelValues(backend, status).Inc()
}

// RecordNode учитывает выполнение одного узла.
func RecordNode(nodeType, status string, d time.Duration) {
	nodeExecutions.WithLabelValues(nodeType, status).Inc()
	nodeDuration.WithLabelValues(nodeType).Observe(d.Seconds())
}

// RecordWorkflow учитывает выполнение workflow целиком.
func RecordWorkflow(status string, d time.Duration) {
	workflowDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordHTTPRequest учитывает запрос к API.
func RecordHTTPRequest(method string, status int) {
	httpRequests.WithLabelValues(method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
