package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultAnalysisTimeout bounds one batch analysis request
	DefaultAnalysisTimeout = 2 * time.Minute

	// QueueConnectTimeout is the timeout for establishing queue and cache connections
	QueueConnectTimeout = 5 * time.Second

	// ShutdownTimeout is the grace period for draining a stream monitor
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Retry and Backoff Constants
// =============================================================================

const (
	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the default backoff duration between retries
	DefaultRetryBackoff = 100 * time.Millisecond
)

// =============================================================================
// Buffer and Batch Size Constants
// =============================================================================

const (
	// DefaultBufferSize is the default buffer size for in-memory subjects
	DefaultBufferSize = 10000

	// DefaultFetchCount is the number of stream entries read per poll
	DefaultFetchCount = 100
)

// =============================================================================
// Stream Constants
// =============================================================================

const (
	// DefaultPointSubject carries incoming metric points
	DefaultPointSubject = "trendcore.points"

	// DefaultAnomalySubject carries detected anomalies
	DefaultAnomalySubject = "trendcore.anomalies"

	// DefaultStreamPrefix prefixes NATS stream and Redis stream names
	DefaultStreamPrefix = "trendcore"

	// DefaultConsumerGroup is the Redis and Kafka consumer group
	DefaultConsumerGroup = "trendcore-group"
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

// =============================================================================
// Cache Type Constants
// =============================================================================

// CacheType represents the backing store of the result cache
type CacheType string

const (
	// CacheTypeMemory keeps results in process (default)
	CacheTypeMemory CacheType = "memory"

	// CacheTypeRedis shares results through Redis
	CacheTypeRedis CacheType = "redis"

	// CacheTypeNone disables caching
	CacheTypeNone CacheType = "none"
)
