package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Chunk pipeline metrics
	ChunksProcessed    *prometheus.CounterVec
	ChunkProcessingTime prometheus.Histogram
	DegradedChunks     prometheus.Counter

	// Analysis stage metrics
	StageFailures *prometheus.CounterVec
	StageLatency  *prometheus.HistogramVec

	// Reasoning engine metrics
	ReasoningLatency  prometheus.Histogram
	ReasoningTimeouts prometheus.Counter
	ReasoningParseErrors prometheus.Counter

	// Context store metrics
	StoreUpdates     prometheus.Counter
	StoreCorruptions prometheus.Counter

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionErrors  prometheus.Counter
	AMQPConnectionStatus  prometheus.Gauge

	// Resource metrics
	ActiveCalls        prometheus.Gauge
	WebsocketSubscribers prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		ChunksProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamdetect_chunks_processed_total",
				Help: "Total number of audio chunks processed",
			},
			[]string{"status"},
		)

		ChunkProcessingTime = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scamdetect_chunk_processing_seconds",
				Help:    "End-to-end processing time per audio chunk",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
			},
		)

		DegradedChunks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scamdetect_degraded_chunks_total",
				Help: "Chunks committed with a substituted default verdict",
			},
		)

		StageFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamdetect_stage_failures_total",
				Help: "Analysis stage failures recovered via fail-soft defaults",
			},
			[]string{"stage"},
		)

		StageLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scamdetect_stage_latency_seconds",
				Help:    "Latency of individual analysis stages",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"stage"},
		)

		ReasoningLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scamdetect_reasoning_latency_seconds",
				Help:    "Latency of reasoning engine calls",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
			},
		)

		ReasoningTimeouts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scamdetect_reasoning_timeouts_total",
				Help: "Reasoning engine calls that exceeded their timeout",
			},
		)

		ReasoningParseErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scamdetect_reasoning_parse_errors_total",
				Help: "Reasoning engine responses that could not be parsed",
			},
		)

		StoreUpdates = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scamdetect_store_updates_total",
				Help: "Successful call context updates",
			},
		)

		StoreCorruptions = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scamdetect_store_corruptions_total",
				Help: "Corrupt or unreadable call documents degraded to empty",
			},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamdetect_amqp_published_messages_total",
				Help: "Analysis results published to AMQP",
			},
			[]string{"status"},
		)

		AMQPConnectionErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scamdetect_amqp_connection_errors_total",
				Help: "AMQP connection failures",
			},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scamdetect_amqp_connection_status",
				Help: "AMQP connection status (1 = connected, 0 = disconnected)",
			},
		)

		ActiveCalls = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scamdetect_active_calls",
				Help: "Calls with at least one chunk currently in flight",
			},
		)

		WebsocketSubscribers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scamdetect_websocket_subscribers",
				Help: "Connected verdict feed subscribers",
			},
		)

		registry.MustRegister(
			ChunksProcessed,
			ChunkProcessingTime,
			DegradedChunks,
			StageFailures,
			StageLatency,
			ReasoningLatency,
			ReasoningTimeouts,
			ReasoningParseErrors,
			StoreUpdates,
			StoreCorruptions,
			AMQPPublishedMessages,
			AMQPConnectionErrors,
			AMQPConnectionStatus,
			ActiveCalls,
			WebsocketSubscribers,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the metrics registry for the HTTP /metrics endpoint.
// Returns nil if Init has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}
