package stream

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/anomaly"
	"github.com/soltixdb/trendcore/internal/config"
	"github.com/soltixdb/trendcore/internal/queue"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newMemoryQueue(t *testing.T) queue.Queue {
	t.Helper()
	q, err := queue.NewQueue(config.QueueConfig{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func testConfig() Config {
	detector := anomaly.DefaultConfig()
	detector.AnomalyWindow = 5
	return Config{
		InputSubject:  "points",
		OutputSubject: "anomalies",
		Methods:       []anomaly.Method{anomaly.MethodZScore},
		Detector:      detector,
	}
}

func point(metric string, i int, v float64) queue.PointMessage {
	return queue.PointMessage{MetricID: metric, Time: t0.Add(time.Duration(i) * time.Minute), Value: v}
}

func warmUp(t *testing.T, m *Monitor, metric string) {
	t.Helper()
	for i, v := range []float64{10, 11, 10, 11, 10} {
		events, err := m.Observe(context.Background(), point(metric, i, v))
		require.NoError(t, err)
		assert.Empty(t, events)
	}
}

func TestMonitor_FlagsSpike(t *testing.T) {
	q := newMemoryQueue(t)
	m, err := NewMonitor(q, q, testConfig())
	require.NoError(t, err)
	m.now = func() time.Time { return t0.Add(time.Hour) }

	warmUp(t, m, "cpu")

	events, err := m.Observe(context.Background(), point("cpu", 5, 10.5))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = m.Observe(context.Background(), point("cpu", 6, 100))
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "cpu", e.MetricID)
	assert.Equal(t, anomaly.MethodZScore, e.Method)
	assert.Equal(t, anomaly.DirectionHigh, e.Direction)
	assert.Equal(t, anomaly.SeverityCritical, e.Severity)
	assert.Equal(t, 5, e.Window)
	assert.Equal(t, t0.Add(time.Hour), e.DetectedAt)
	assert.NotEmpty(t, e.ID)

	require.Eventually(t, func() bool { return q.(*queue.MemoryQueue).Pending("anomalies") == 1 },
		time.Second, 10*time.Millisecond)

	s := m.Stats()
	assert.Equal(t, uint64(7), s.Received)
	assert.Equal(t, uint64(1), s.Anomalies)
	assert.Equal(t, 1, s.Metrics)
}

func TestMonitor_WindowIsBounded(t *testing.T) {
	q := newMemoryQueue(t)
	m, err := NewMonitor(q, q, testConfig())
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := m.Observe(context.Background(), point("mem", i, float64(i%3)))
		require.NoError(t, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.windows["mem"].points, 6)
	assert.Equal(t, t0.Add(49*time.Minute), m.windows["mem"].points[5].Time)
}

func TestMonitor_RejectsInvalidPoints(t *testing.T) {
	q := newMemoryQueue(t)
	m, err := NewMonitor(q, q, testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	var ve *analytics.ValidationError

	_, err = m.Observe(ctx, queue.PointMessage{Time: t0, Value: 1})
	assert.ErrorAs(t, err, &ve)

	_, err = m.Observe(ctx, point("cpu", 0, math.NaN()))
	assert.ErrorAs(t, err, &ve)

	_, err = m.Observe(ctx, point("cpu", 2, 1))
	require.NoError(t, err)
	_, err = m.Observe(ctx, point("cpu", 1, 1))
	assert.ErrorAs(t, err, &ve, "out of order")

	assert.Equal(t, uint64(3), m.Stats().Rejected)

	// Handle acknowledges what cannot be processed
	assert.NoError(t, m.Handle([]byte("garbage")))
	assert.Equal(t, uint64(4), m.Stats().Rejected)
}

func TestMonitor_EvictsLeastRecentMetric(t *testing.T) {
	q := newMemoryQueue(t)
	cfg := testConfig()
	cfg.MaxMetrics = 2
	m, err := NewMonitor(q, q, cfg)
	require.NoError(t, err)

	clock := t0
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Observe(ctx, point(id, 0, 1))
		require.NoError(t, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.windows, 2)
	assert.NotContains(t, m.windows, "a")
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte) error { return errors.New("down") }
func (failingPublisher) PublishBatch(context.Context, []queue.BatchMessage) (int, error) {
	return 0, errors.New("down")
}
func (failingPublisher) Close() error { return nil }

func TestMonitor_PublishFailureIsReturned(t *testing.T) {
	q := newMemoryQueue(t)
	m, err := NewMonitor(q, failingPublisher{}, testConfig())
	require.NoError(t, err)

	warmUp(t, m, "cpu")
	data, err := queue.Encode(point("cpu", 5, 500))
	require.NoError(t, err)
	assert.Error(t, m.Handle(data))
}

// flakyPublisher fails the first failures batches, then forwards to next
type flakyPublisher struct {
	next     queue.Publisher
	failures int
	calls    int
}

func (f *flakyPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return f.next.Publish(ctx, subject, data)
}

func (f *flakyPublisher) PublishBatch(ctx context.Context, batch []queue.BatchMessage) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, errors.New("broker down")
	}
	return f.next.PublishBatch(ctx, batch)
}

func (f *flakyPublisher) Close() error { return nil }

func TestMonitor_RedeliveryAfterPublishFailure(t *testing.T) {
	q := newMemoryQueue(t)
	pub := &flakyPublisher{next: q, failures: 1}
	m, err := NewMonitor(q, pub, testConfig())
	require.NoError(t, err)

	warmUp(t, m, "cpu")
	// fills the window so the spike also shifts out the oldest point
	_, err = m.Observe(context.Background(), point("cpu", 5, 10.5))
	require.NoError(t, err)
	before := m.windows["cpu"].points
	before = append([]analytics.TimeSeriesPoint(nil), before...)

	data, err := queue.Encode(point("cpu", 6, 100))
	require.NoError(t, err)

	require.ErrorContains(t, m.Handle(data), "broker down")
	assert.Equal(t, before, m.windows["cpu"].points, "failed attempt leaves the window untouched")

	require.NoError(t, m.Handle(data))
	s := m.Stats()
	assert.Equal(t, uint64(0), s.Rejected)
	assert.Equal(t, uint64(1), s.Anomalies)
	assert.Equal(t, 1, q.(*queue.MemoryQueue).Pending("anomalies"))
}

func TestMonitor_FailedFirstPointLeavesNoWindow(t *testing.T) {
	q := newMemoryQueue(t)
	m, err := NewMonitor(q, q, testConfig())
	require.NoError(t, err)

	_, undo, err := m.append("mem", analytics.TimeSeriesPoint{Time: t0, Value: 1})
	require.NoError(t, err)
	undo()
	assert.Equal(t, 0, m.Stats().Metrics)
}

func TestMonitor_EndToEnd(t *testing.T) {
	q := newMemoryQueue(t)
	m, err := NewMonitor(q, q, testConfig())
	require.NoError(t, err)

	events := make(chan AnomalyEvent, 4)
	require.NoError(t, q.Subscribe("anomalies", func(data []byte) error {
		var e AnomalyEvent
		if err := queue.Decode(data, &e); err != nil {
			return err
		}
		events <- e
		return nil
	}))
	require.NoError(t, m.Start())
	defer func() { _ = m.Stop() }()

	values := []float64{10, 11, 10, 11, 10, -80}
	points := make([]queue.PointMessage, len(values))
	for i, v := range values {
		points[i] = point("latency", i, v)
	}
	batch, err := queue.EncodePoints("points", points)
	require.NoError(t, err)
	n, err := q.PublishBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, len(values), n)

	select {
	case e := <-events:
		assert.Equal(t, "latency", e.MetricID)
		assert.Equal(t, -80.0, e.Value)
		assert.Equal(t, anomaly.DirectionLow, e.Direction)
	case <-time.After(5 * time.Second):
		t.Fatal("no anomaly event received")
	}
}

func TestNewMonitor_Validation(t *testing.T) {
	q := newMemoryQueue(t)

	cfg := testConfig()
	cfg.Methods = []anomaly.Method{"psychic"}
	_, err := NewMonitor(q, q, cfg)
	assert.Error(t, err)

	m, err := NewMonitor(q, q, Config{})
	require.NoError(t, err)
	assert.Equal(t, "trendcore.points", m.cfg.InputSubject)
	assert.Equal(t, 21, m.capacity)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.AnomalyWindow = 30
	cfg.Stream.Methods = []string{"iqr"}

	sc := ConfigFrom(cfg)
	assert.Equal(t, 30, sc.Detector.AnomalyWindow)
	assert.Equal(t, 0.7, sc.Detector.Sensitivity)
	assert.Equal(t, []anomaly.Method{anomaly.MethodIQR}, sc.Methods)
	assert.Equal(t, "trendcore.anomalies", sc.OutputSubject)
}
