package queue

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltixdb/trendcore/internal/config"
)

func TestNewQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	natsURL := startJetStream(t)

	tests := []struct {
		name    string
		cfg     config.QueueConfig
		want    interface{}
		wantErr bool
	}{
		{name: "memory", cfg: config.QueueConfig{Type: "memory"}, want: &MemoryQueue{}},
		{name: "case insensitive", cfg: config.QueueConfig{Type: "MEMORY"}, want: &MemoryQueue{}},
		{name: "default nats", cfg: config.QueueConfig{URL: natsURL}, want: &NATSQueue{}},
		{name: "redis", cfg: config.QueueConfig{Type: "redis", URL: mr.Addr()}, want: &RedisQueue{}},
		{name: "kafka", cfg: config.QueueConfig{Type: "kafka", KafkaBrokers: []string{"localhost:9092"}}, want: &KafkaQueue{}},
		{name: "kafka without brokers", cfg: config.QueueConfig{Type: "kafka"}, wantErr: true},
		{name: "unknown", cfg: config.QueueConfig{Type: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQueue(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer q.Close()
			assert.IsType(t, tt.want, q)
		})
	}
}

func TestNewPublisherAndSubscriber(t *testing.T) {
	pub, err := NewPublisher(config.QueueConfig{Type: "memory"})
	require.NoError(t, err)
	defer pub.Close()

	sub, err := NewSubscriber(config.QueueConfig{Type: "memory"})
	require.NoError(t, err)
	defer sub.Close()
}
