package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts lifecycle and directory operations by outcome.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approvald_operations_total",
		Help: "Total number of approval operations by operation and result",
	}, []string{"operation", "result"})

	// OperationLatency records operation latency including the store transaction.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "approvald_operation_latency_seconds",
		Help:    "Approval operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// HistoryEntriesTotal counts ledger appends by action.
	HistoryEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approvald_history_entries_total",
		Help: "Total number of committed history entries by action",
	}, []string{"action"})

	// EventPublishFailures counts history events that could not be published.
	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "approvald_event_publish_failures_total",
		Help: "Total number of history events that failed to publish",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approvald_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// ExportsTotal counts snapshot exports by result.
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approvald_exports_total",
		Help: "Total number of CSV snapshot exports by result",
	}, []string{"result"})
)

// ObserveOperation records one finished operation.
func ObserveOperation(operation, result string, start time.Time) {
	OperationsTotal.WithLabelValues(operation, result).Inc()
	OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
