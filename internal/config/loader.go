package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/soltixdb/trendcore/internal/utils"
)

// EnvPrefix prefixes environment overrides, e.g. TRENDCORE_ANALYSIS_HORIZON
const EnvPrefix = "TRENDCORE"

// Load loads configuration from file, defaults and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/trendcore")
	}

	setDefaults(v)

	// analysis.horizon is overridden by TRENDCORE_ANALYSIS_HORIZON
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Analysis defaults
	v.SetDefault("analysis.time_window", d.Analysis.TimeWindow)
	v.SetDefault("analysis.timezone", d.Analysis.Timezone)
	v.SetDefault("analysis.min_data_points", d.Analysis.MinDataPoints)
	v.SetDefault("analysis.confidence_threshold", d.Analysis.ConfidenceThreshold)
	v.SetDefault("analysis.sensitivity", d.Analysis.Sensitivity)
	v.SetDefault("analysis.window_size", d.Analysis.WindowSize)
	v.SetDefault("analysis.anomaly_window", d.Analysis.AnomalyWindow)
	v.SetDefault("analysis.max_lag", d.Analysis.MaxLag)
	v.SetDefault("analysis.horizon", d.Analysis.Horizon)
	v.SetDefault("analysis.validation_split", d.Analysis.ValidationSplit)
	v.SetDefault("analysis.seasonal_period", d.Analysis.SeasonalPeriod)
	v.SetDefault("analysis.cluster_k", d.Analysis.ClusterK)
	v.SetDefault("analysis.seed", d.Analysis.Seed)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.downsample", d.Analysis.Downsample)
	v.SetDefault("analysis.max_points", d.Analysis.MaxPoints)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.time_format", d.Logging.TimeFormat)

	// Queue defaults
	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.redis_stream", d.Queue.RedisStream)
	v.SetDefault("queue.redis_group", d.Queue.RedisGroup)
	v.SetDefault("queue.kafka_group_id", d.Queue.KafkaGroupID)

	// Cache defaults
	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	// Stream defaults
	v.SetDefault("stream.input_subject", d.Stream.InputSubject)
	v.SetDefault("stream.output_subject", d.Stream.OutputSubject)
	v.SetDefault("stream.methods", d.Stream.Methods)
	v.SetDefault("stream.max_metrics", d.Stream.MaxMetrics)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			TimeWindow:          "24h",
			Timezone:            "UTC",
			MinDataPoints:       10,
			ConfidenceThreshold: 0.8,
			Sensitivity:         0.7,
			WindowSize:          20,
			AnomalyWindow:       20,
			MaxLag:              10,
			Horizon:             24,
			ValidationSplit:     0.2,
			SeasonalPeriod:      0,
			ClusterK:            3,
			Seed:                1,
			Workers:             4,
			Downsample:          "none",
			MaxPoints:           1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stderr",
			TimeFormat: "RFC3339",
		},
		Queue: QueueConfig{
			Type:         string(utils.QueueTypeNATS),
			URL:          "nats://localhost:4222",
			RedisStream:  utils.DefaultStreamPrefix,
			RedisGroup:   utils.DefaultConsumerGroup,
			KafkaGroupID: utils.DefaultConsumerGroup,
		},
		Cache: CacheConfig{
			Type:      string(utils.CacheTypeMemory),
			KeyPrefix: "trendcore:",
			TTL:       time.Hour,
		},
		Stream: StreamConfig{
			InputSubject:  utils.DefaultPointSubject,
			OutputSubject: utils.DefaultAnomalySubject,
			Methods:       []string{"zscore", "iqr"},
		},
	}
}
