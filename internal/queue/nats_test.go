package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNATSQueue(t *testing.T) *NATSQueue {
	t.Helper()
	conn, err := nats.Connect(startJetStream(t))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	q, err := NewNATSQueueWithConn(conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestNATSQueue_PublishSubscribe(t *testing.T) {
	q := newTestNATSQueue(t)

	received := make(chan []byte, 4)
	require.NoError(t, q.Subscribe("trendcore.points", collect(received)))
	require.NoError(t, q.Publish(context.Background(), "trendcore.points", []byte("hello")))

	assert.Equal(t, "hello", string(receive(t, received)))
	assert.ErrorIs(t, q.Subscribe("trendcore.points", collect(received)), ErrAlreadySubscribed)
}

func TestNATSQueue_ReplaysMessagesPublishedBeforeSubscribe(t *testing.T) {
	q := newTestNATSQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := q.PublishBatch(ctx, []BatchMessage{
		{Subject: "replay", Data: []byte("1")},
		{Subject: "replay", Data: []byte("2")},
		{Subject: "replay", Data: []byte("3")},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	received := make(chan []byte, 4)
	require.NoError(t, q.Subscribe("replay", collect(received)))
	for _, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, string(receive(t, received)))
	}
}

func TestNATSQueue_RedeliversAfterNak(t *testing.T) {
	q := newTestNATSQueue(t)

	var attempts atomic.Int32
	done := make(chan []byte, 1)
	require.NoError(t, q.Subscribe("retry", func(data []byte) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		done <- data
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), "retry", []byte("again")))
	assert.Equal(t, "again", string(receive(t, done)))
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestNATSQueue_Unsubscribe(t *testing.T) {
	q := newTestNATSQueue(t)

	require.NoError(t, q.Subscribe("s", func([]byte) error { return nil }))
	require.NoError(t, q.Unsubscribe("s"))
	assert.ErrorIs(t, q.Unsubscribe("s"), ErrNotSubscribed)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "trendcore_points", sanitizeName("trendcore.points"))
	assert.Equal(t, "a_b_c-d_e", sanitizeName("a*b>c-d_e"))
}
