package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	GoroutinesCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_goroutines_count",
		Help: "The current number of goroutines",
	})

	MemoryAllocBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_memory_alloc_bytes",
		Help: "Current memory allocation in bytes",
	})

	HeapAllocBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_heap_alloc_bytes",
		Help: "Current heap allocation in bytes",
	})

	GCPauseNanosTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_gc_pause_nanos_total",
		Help: "Total time spent in GC pause in nanoseconds",
	})

	// Connector metrics
	TicksReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_ticks_received_total",
		Help: "Total number of ticks parsed from the feed and accepted",
	})

	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_parse_errors_total",
		Help: "Total number of malformed feed messages discarded",
	})

	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_ws_reconnects_total",
		Help: "Total number of websocket reconnect attempts",
	})

	ConnectorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_connector_state",
		Help: "Current stream connector state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=shutdown)",
	}, []string{"instrument"})

	// Queue metrics
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_queue_depth",
		Help: "Current number of ticks buffered in the event queue",
	})

	QueueCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_queue_capacity",
		Help: "Capacity of the event queue",
	})

	QueueEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_queue_evicted_total",
		Help: "Total number of ticks evicted under the drop-oldest policy",
	})

	// Persister metrics
	TicksPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_ticks_persisted_total",
		Help: "Total number of ticks durably written",
	})

	DuplicateTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_duplicate_ticks_total",
		Help: "Total number of redelivered ticks skipped by the dedup key",
	})

	PersistBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_persist_batches_total",
		Help: "Total number of write batches flushed",
	})

	PersistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_persist_errors_total",
		Help: "Total number of failed write attempts",
	})

	PersistBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_persist_batch_size",
		Help:    "Distribution of flushed batch sizes",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_persist_duration_seconds",
		Help:    "Duration of durable write operations",
		Buckets: prometheus.DefBuckets,
	})

	// Redis fan-out metrics
	RedisSetTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_set_total",
		Help: "Total number of Redis SET operations",
	})

	RedisSetErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_set_errors_total",
		Help: "Total number of Redis SET errors",
	})

	RedisPublishTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_publish_total",
		Help: "Total number of Redis PUBLISH operations",
	})

	RedisPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_redis_publish_errors_total",
		Help: "Total number of Redis PUBLISH errors",
	})

	RedisOperationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_redis_operation_duration_seconds",
		Help:    "Duration of Redis operations",
		Buckets: prometheus.DefBuckets,
	})

	// Mock generator metrics
	MockTicksGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_mock_ticks_generated_total",
		Help: "Total number of synthetic ticks generated",
	})
)
