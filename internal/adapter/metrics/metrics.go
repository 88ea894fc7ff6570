package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the ingestion pipeline.
type PipelineMetrics struct {
	RecordsIngested  prometheus.Counter
	ExportRequests   *prometheus.CounterVec
	BatchesFlushed   *prometheus.CounterVec
	FlushFailures    prometheus.Counter
	RecordsRequeued  prometheus.Counter
	OpenPartitions   prometheus.Gauge
	FlushBatchSize   prometheus.Histogram
	QueryRequests    *prometheus.CounterVec
	QueryDuration    prometheus.Histogram
	TailPublishDrops prometheus.Counter
}

// NewPipelineMetrics initializes and registers the Prometheus metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		RecordsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghorn",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total number of log records accepted by the ingestion server.",
		}),
		ExportRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loghorn",
			Subsystem: "ingest",
			Name:      "export_requests_total",
			Help:      "Total number of Export RPCs by status.",
		}, []string{"status"}), // status: ok, error
		BatchesFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loghorn",
			Subsystem: "aggregator",
			Name:      "batches_flushed_total",
			Help:      "Total number of batches handed to the storage sink by trigger.",
		}, []string{"trigger"}), // trigger: size, age, shutdown
		FlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghorn",
			Subsystem: "aggregator",
			Name:      "flush_failures_total",
			Help:      "Total number of sink writes that failed and were requeued.",
		}),
		RecordsRequeued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghorn",
			Subsystem: "aggregator",
			Name:      "records_requeued_total",
			Help:      "Total number of records re-inserted after a failed sink write.",
		}),
		OpenPartitions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "loghorn",
			Subsystem: "aggregator",
			Name:      "open_partitions",
			Help:      "Number of partitions currently accumulating records.",
		}),
		FlushBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loghorn",
			Subsystem: "aggregator",
			Name:      "flush_batch_size",
			Help:      "Distribution of record counts per flushed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loghorn",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of query requests by status.",
		}, []string{"status"}), // status: ok, invalid, error
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loghorn",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query execution time against the store.",
			Buckets:   prometheus.DefBuckets,
		}),
		TailPublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "loghorn",
			Subsystem: "tail",
			Name:      "publish_drops_total",
			Help:      "Total number of records that could not be published to live tail.",
		}),
	}
}
