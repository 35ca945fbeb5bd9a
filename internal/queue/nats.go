package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/soltixdb/trendcore/internal/logging"
	"github.com/soltixdb/trendcore/internal/utils"
)

// NATSConfig represents NATS JetStream configuration
type NATSConfig struct {
	URL          string // Server URL (e.g., nats://localhost:4222)
	Username     string
	Password     string
	StreamPrefix string        // Prefix of stream names (default: "trendcore")
	AckWait      time.Duration // Redelivery delay of unacked messages (default: 30s)
	MaxDeliver   int           // Delivery attempts per message (default: 3)
}

func (c *NATSConfig) applyDefaults() {
	if c.StreamPrefix == "" {
		c.StreamPrefix = utils.DefaultStreamPrefix
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = utils.DefaultMaxRetries
	}
}

// NATSQueue implements Queue using NATS JetStream. Each subject gets a file-backed
// stream and a durable consumer, so points survive a monitor restart.
type NATSQueue struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	config        NATSConfig
	ownsConn      bool
	streams       sync.Map // stream name -> struct{}, streams known to exist
	subscriptions map[string]*nats.Subscription
	mu            sync.Mutex
	logger        *logging.Logger
}

func newNATSQueue(cfg NATSConfig) (*NATSQueue, error) {
	opts := []nats.Option{
		nats.Name("trendcore"),
		nats.Timeout(utils.QueueConnectTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	q, err := newNATSQueueWithConn(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	q.ownsConn = true
	return q, nil
}

// newNATSQueueWithConn wraps an existing connection, which the caller keeps owning
func newNATSQueueWithConn(conn *nats.Conn, cfg NATSConfig) (*NATSQueue, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	cfg.applyDefaults()

	return &NATSQueue{
		conn:          conn,
		js:            js,
		config:        cfg,
		subscriptions: make(map[string]*nats.Subscription),
		logger:        logging.Global().With("queue", "nats"),
	}, nil
}

// ensureStream creates the stream capturing subject unless it already exists
func (q *NATSQueue) ensureStream(subject string) error {
	name := q.streamName(subject)
	if _, known := q.streams.Load(name); known {
		return nil
	}
	if _, err := q.js.StreamInfo(name); err == nil {
		q.streams.Store(name, struct{}{})
		return nil
	}
	_, err := q.js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	q.streams.Store(name, struct{}{})
	return nil
}

func (q *NATSQueue) streamName(subject string) string {
	return q.config.StreamPrefix + "-" + sanitizeName(subject)
}

// Publish publishes a message and waits for the JetStream acknowledgement
func (q *NATSQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := q.ensureStream(subject); err != nil {
		return err
	}
	if _, err := q.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// PublishBatch queues every message asynchronously and waits for all acknowledgements
// or ctx, whichever comes first
func (q *NATSQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	futures := make([]nats.PubAckFuture, 0, len(messages))
	for _, msg := range messages {
		if err := q.ensureStream(msg.Subject); err != nil {
			q.logger.Warn("Skipping batch message", "subject", msg.Subject, "error", err)
			continue
		}
		future, err := q.js.PublishAsync(msg.Subject, msg.Data)
		if err != nil {
			q.logger.Warn("Failed to queue batch message", "subject", msg.Subject, "error", err)
			continue
		}
		futures = append(futures, future)
	}

	select {
	case <-q.js.PublishAsyncComplete():
	case <-ctx.Done():
		return 0, fmt.Errorf("timeout waiting for batch publish: %w", ctx.Err())
	}

	published := 0
	for _, future := range futures {
		select {
		case <-future.Ok():
			published++
		case err := <-future.Err():
			q.logger.Warn("Batch message rejected", "subject", future.Msg().Subject, "error", err)
		}
	}
	return published, nil
}

// Subscribe attaches a durable, manually acknowledged consumer. Failed messages are
// NAKed and redelivered up to MaxDeliver times.
func (q *NATSQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, subject)
	}
	if err := q.ensureStream(subject); err != nil {
		return err
	}

	sub, err := q.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			q.logger.Warn("Message handler failed", "subject", subject, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("consumer-"+sanitizeName(subject)),
		nats.ManualAck(),
		nats.MaxAckPending(utils.DefaultFetchCount),
		nats.AckWait(q.config.AckWait),
		nats.MaxDeliver(q.config.MaxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	q.subscriptions[subject] = sub
	return nil
}

// Unsubscribe unsubscribes from a subject
func (q *NATSQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, subject)
	}
	delete(q.subscriptions, subject)

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from subject %s: %w", subject, err)
	}
	return nil
}

// Close drops all subscriptions and closes the connection if the queue opened it
func (q *NATSQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, sub := range q.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			q.logger.Warn("Failed to unsubscribe", "subject", subject, "error", err)
		}
		delete(q.subscriptions, subject)
	}

	if q.ownsConn {
		q.conn.Close()
	}
	return nil
}

// sanitizeName maps a subject onto the characters allowed in stream and consumer
// names: A-Z, a-z, 0-9, dash and underscore
func sanitizeName(subject string) string {
	result := make([]byte, len(subject))
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
			result[i] = c
		default:
			result[i] = '_'
		}
	}
	return string(result)
}
