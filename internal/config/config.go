package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Stream   StreamConfig   `mapstructure:"stream"`
}

// AnalysisConfig holds the flat analysis options shared by every component
type AnalysisConfig struct {
	TimeWindow          string  `mapstructure:"time_window"`          // Lookback label (e.g. 24h, 7d), resolved by the caller
	Timezone            string  `mapstructure:"timezone"`             // Zone for calendar patterns (e.g. "Asia/Tokyo", "+09:00", "UTC")
	MinDataPoints       int     `mapstructure:"min_data_points"`      // Points needed for a full analysis
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"` // Trend R² above which confidence is high
	Sensitivity         float64 `mapstructure:"sensitivity"`          // Anomaly sensitivity, z threshold = 2/sensitivity
	WindowSize          int     `mapstructure:"window_size"`          // Rolling window for correlation and moving averages
	AnomalyWindow       int     `mapstructure:"anomaly_window"`       // Trailing window of streaming anomaly detection
	MaxLag              int     `mapstructure:"max_lag"`              // Bound of lagged correlation and period search
	Horizon             int     `mapstructure:"horizon"`              // Forecast steps
	ValidationSplit     float64 `mapstructure:"validation_split"`     // Share held out when backtesting
	SeasonalPeriod      int     `mapstructure:"seasonal_period"`      // 0 detects the period
	ClusterK            int     `mapstructure:"cluster_k"`            // k of pattern clustering
	Seed                uint64  `mapstructure:"seed"`                 // Seed of pattern clustering
	Workers             int     `mapstructure:"workers"`              // Metrics analysed concurrently
	Downsample          string  `mapstructure:"downsample"`           // none, auto, lttb, minmax, avg, m4
	MaxPoints           int     `mapstructure:"max_points"`           // Downsampling target per series
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // Queue type: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix (default: "trendcore")
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group (default: "trendcore-group")
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID
}

// CacheConfig represents the result cache configuration
type CacheConfig struct {
	Type      string        `mapstructure:"type"`       // memory (default), redis, none
	URL       string        `mapstructure:"url"`        // Redis URL when type is redis
	Password  string        `mapstructure:"password"`   // Optional authentication
	DB        int           `mapstructure:"db"`         // Redis database number
	KeyPrefix string        `mapstructure:"key_prefix"` // Prefix of every cache key
	TTL       time.Duration `mapstructure:"ttl"`        // Entry lifetime, 0 keeps entries forever
}

// StreamConfig represents the streaming anomaly monitor configuration
type StreamConfig struct {
	InputSubject  string   `mapstructure:"input_subject"`  // Subject carrying metric points
	OutputSubject string   `mapstructure:"output_subject"` // Subject receiving anomaly events
	Methods       []string `mapstructure:"methods"`        // Detectors run on every new point
	MaxMetrics    int      `mapstructure:"max_metrics"`    // Bound on tracked metrics, 0 is unbounded
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	return nil
}

// Validate validates analysis configuration
func (c *AnalysisConfig) Validate() error {
	if c.MinDataPoints < 2 {
		return fmt.Errorf("analysis.min_data_points must be at least 2")
	}

	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("analysis.confidence_threshold must be in (0, 1]")
	}

	if c.Sensitivity <= 0 || c.Sensitivity > 1 {
		return fmt.Errorf("analysis.sensitivity must be in (0, 1]")
	}

	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("analysis.validation_split must be in [0, 1)")
	}

	if c.Horizon < 1 {
		return fmt.Errorf("analysis.horizon must be at least 1")
	}

	if c.SeasonalPeriod < 0 || c.SeasonalPeriod == 1 {
		return fmt.Errorf("analysis.seasonal_period must be 0 (auto) or at least 2")
	}

	if c.WindowSize < 0 || c.AnomalyWindow < 0 || c.MaxLag < 0 || c.ClusterK < 0 || c.Workers < 0 {
		return fmt.Errorf("analysis window sizes, lags and counts must not be negative")
	}

	switch c.Downsample {
	case "", "none", "auto", "lttb", "minmax", "avg", "m4":
	default:
		return fmt.Errorf("analysis.downsample must be one of: none, auto, lttb, minmax, avg, m4")
	}

	if c.MaxPoints < 0 {
		return fmt.Errorf("analysis.max_points must not be negative")
	}

	if c.TimeWindow != "" {
		if _, err := ParseTimeWindow(c.TimeWindow); err != nil {
			return fmt.Errorf("analysis.time_window: %w", err)
		}
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	switch c.Type {
	case "", "nats", "redis", "memory":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("queue.kafka_brokers is required for kafka")
		}
	default:
		return fmt.Errorf("queue.type must be one of: nats, redis, kafka, memory")
	}

	if c.RedisDB < 0 {
		return fmt.Errorf("queue.redis_db must not be negative")
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	switch c.Type {
	case "", "memory", "none":
	case "redis":
		if c.URL == "" {
			return fmt.Errorf("cache.url is required for redis")
		}
	default:
		return fmt.Errorf("cache.type must be one of: memory, redis, none")
	}

	if c.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	return nil
}

// Validate validates stream configuration
func (c *StreamConfig) Validate() error {
	if c.InputSubject == "" || c.OutputSubject == "" {
		return fmt.Errorf("stream.input_subject and stream.output_subject are required")
	}

	if c.InputSubject == c.OutputSubject {
		return fmt.Errorf("stream.input_subject and stream.output_subject cannot be the same")
	}

	if len(c.Methods) == 0 {
		return fmt.Errorf("stream.methods must name at least one detector")
	}

	if c.MaxMetrics < 0 {
		return fmt.Errorf("stream.max_metrics must not be negative")
	}

	return nil
}
