package queue

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaQueue_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaQueue(KafkaConfig{})
	assert.Error(t, err)
}

func TestNewKafkaQueue_Defaults(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	defer q.Close()

	assert.Equal(t, "trendcore-group", q.config.GroupID)
	assert.Equal(t, 100, q.config.BatchSize)
	assert.Equal(t, 10*time.Millisecond, q.config.BatchTimeout)
	assert.Equal(t, int(kafka.RequireOne), q.config.RequiredAcks)
	assert.Equal(t, 3, q.config.MaxRetries)
	assert.Equal(t, 3, q.config.CommitRetries)
}

func TestKafkaQueue_WriterPerTopic(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	defer q.Close()

	w := q.writer("trendcore.points")
	assert.Same(t, w, q.writer("trendcore.points"))
	assert.NotSame(t, w, q.writer("trendcore.anomalies"))
	assert.Equal(t, "trendcore.points", w.Topic)
	assert.ErrorIs(t, q.Unsubscribe("trendcore.points"), ErrNotSubscribed)
}
