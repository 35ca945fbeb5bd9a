package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"

	"github.com/soltixdb/trendcore/internal/analytics/forecast"
	"github.com/soltixdb/trendcore/internal/config"
	"github.com/soltixdb/trendcore/internal/logging"
	"github.com/soltixdb/trendcore/internal/utils"
)

type weights = forecast.MemberWeights

// weightKey identifies weights by metric and the configuration that produced them
func weightKey(metricID string, cfg forecast.ForecastConfig) (string, error) {
	hash, err := Key(metricID, cfg)
	if err != nil {
		return "", err
	}
	return "weights:" + metricID + ":" + hash, nil
}

func cloneWeights(w weights) weights {
	out := make(weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// MemoryWeightStore keeps ensemble weights in process
type MemoryWeightStore struct {
	store *Store[weights]
}

// NewMemoryWeightStore creates an in-process weight store
func NewMemoryWeightStore(ttl time.Duration) *MemoryWeightStore {
	return &MemoryWeightStore{store: NewStore[weights](ttl)}
}

// LoadWeights implements forecast.WeightStore
func (s *MemoryWeightStore) LoadWeights(metricID string, cfg forecast.ForecastConfig) (forecast.MemberWeights, bool) {
	key, err := weightKey(metricID, cfg)
	if err != nil {
		return nil, false
	}
	w, ok := s.store.Get(key)
	if !ok {
		return nil, false
	}
	return cloneWeights(w), true
}

// SaveWeights implements forecast.WeightStore
func (s *MemoryWeightStore) SaveWeights(metricID string, cfg forecast.ForecastConfig, w forecast.MemberWeights) {
	key, err := weightKey(metricID, cfg)
	if err != nil {
		return
	}
	s.store.Set(key, cloneWeights(w))
}

// RedisWeightStore shares ensemble weights between processes. Values are snappy
// compressed JSON. Redis errors degrade to cache misses.
type RedisWeightStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *logging.Logger
}

// NewRedisWeightStore connects to Redis and verifies the connection
func NewRedisWeightStore(cfg config.CacheConfig) (*RedisWeightStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.URL, Password: cfg.Password, DB: cfg.DB}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), utils.QueueConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis cache: %w", err)
	}

	return &RedisWeightStore{
		client:  client,
		prefix:  cfg.KeyPrefix,
		ttl:     cfg.TTL,
		timeout: utils.QueueConnectTimeout,
		logger:  logging.Global().With("cache", "redis"),
	}, nil
}

// LoadWeights implements forecast.WeightStore
func (s *RedisWeightStore) LoadWeights(metricID string, cfg forecast.ForecastConfig) (forecast.MemberWeights, bool) {
	key, err := weightKey(metricID, cfg)
	if err != nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Failed to load weights", "metric_id", metricID, "error", err)
		}
		return nil, false
	}

	raw, err := snappy.Decode(nil, data)
	if err != nil {
		s.logger.Warn("Corrupt weights entry", "metric_id", metricID, "error", err)
		return nil, false
	}
	var w weights
	if err := json.Unmarshal(raw, &w); err != nil {
		s.logger.Warn("Corrupt weights entry", "metric_id", metricID, "error", err)
		return nil, false
	}
	return w, true
}

// SaveWeights implements forecast.WeightStore
func (s *RedisWeightStore) SaveWeights(metricID string, cfg forecast.ForecastConfig, w forecast.MemberWeights) {
	key, err := weightKey(metricID, cfg)
	if err != nil {
		return
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, snappy.Encode(nil, raw), s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to save weights", "metric_id", metricID, "error", err)
	}
}

// Close closes the Redis client
func (s *RedisWeightStore) Close() error {
	return s.client.Close()
}

// NewWeightStore builds the weight store selected by cfg.Type. The "none" type returns
// nil, which disables memoisation.
func NewWeightStore(cfg config.CacheConfig) (forecast.WeightStore, error) {
	switch utils.CacheType(cfg.Type) {
	case "", utils.CacheTypeMemory:
		return NewMemoryWeightStore(cfg.TTL), nil
	case utils.CacheTypeRedis:
		store, err := NewRedisWeightStore(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case utils.CacheTypeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s (supported: memory, redis, none)", cfg.Type)
	}
}
