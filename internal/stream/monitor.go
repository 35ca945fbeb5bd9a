// Package stream runs anomaly detection on metric points as they arrive from a queue
// and publishes an event for every anomalous point.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/anomaly"
	"github.com/soltixdb/trendcore/internal/config"
	"github.com/soltixdb/trendcore/internal/logging"
	"github.com/soltixdb/trendcore/internal/queue"
	"github.com/soltixdb/trendcore/internal/utils"
)

// AnomalyEvent is published on the output subject for every flagged point
type AnomalyEvent struct {
	ID         string            `json:"id"`
	MetricID   string            `json:"metric_id"`
	Time       time.Time         `json:"time"`
	Value      float64           `json:"value"`
	Method     anomaly.Method    `json:"method"`
	Score      float64           `json:"score"`
	Severity   anomaly.Severity  `json:"severity"`
	Direction  anomaly.Direction `json:"direction"`
	Expected   *anomaly.Range    `json:"expected,omitempty"`
	Window     int               `json:"window"`
	DetectedAt time.Time         `json:"detected_at"`
}

// Config holds monitor configuration
type Config struct {
	InputSubject  string
	OutputSubject string
	Methods       []anomaly.Method
	Detector      anomaly.DetectorConfig
	MaxMetrics    int // 0 is unbounded
}

// ConfigFrom maps the file configuration onto a monitor configuration
func ConfigFrom(cfg *config.Config) Config {
	detector := anomaly.DefaultConfig()
	detector.Sensitivity = cfg.Analysis.Sensitivity
	if cfg.Analysis.AnomalyWindow > 0 {
		detector.AnomalyWindow = cfg.Analysis.AnomalyWindow
	}
	if cfg.Analysis.WindowSize > 0 {
		detector.WindowSize = cfg.Analysis.WindowSize
	}

	methods := make([]anomaly.Method, len(cfg.Stream.Methods))
	for i, m := range cfg.Stream.Methods {
		methods[i] = anomaly.Method(m)
	}

	return Config{
		InputSubject:  cfg.Stream.InputSubject,
		OutputSubject: cfg.Stream.OutputSubject,
		Methods:       methods,
		Detector:      detector,
		MaxMetrics:    cfg.Stream.MaxMetrics,
	}
}

// Stats counts what the monitor has seen
type Stats struct {
	Received  uint64 `json:"received"`
	Rejected  uint64 `json:"rejected"`
	Anomalies uint64 `json:"anomalies"`
	Metrics   int    `json:"metrics"`
}

type window struct {
	points   []analytics.TimeSeriesPoint
	lastSeen time.Time
}

// Monitor keeps a bounded trailing window per metric. Points are evaluated in arrival
// order; a point not newer than the last one of its metric is rejected.
type Monitor struct {
	cfg      Config
	sub      queue.Subscriber
	pub      queue.Publisher
	logger   *logging.Logger
	now      func() time.Time
	capacity int

	mu      sync.Mutex
	windows map[string]*window

	received  atomic.Uint64
	rejected  atomic.Uint64
	anomalies atomic.Uint64
}

// NewMonitor validates the configuration and creates a monitor reading from sub and
// writing to pub
func NewMonitor(sub queue.Subscriber, pub queue.Publisher, cfg Config) (*Monitor, error) {
	if cfg.InputSubject == "" {
		cfg.InputSubject = utils.DefaultPointSubject
	}
	if cfg.OutputSubject == "" {
		cfg.OutputSubject = utils.DefaultAnomalySubject
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []anomaly.Method{anomaly.MethodZScore}
	}
	if cfg.Detector == (anomaly.DetectorConfig{}) {
		cfg.Detector = anomaly.DefaultConfig()
	}
	if err := cfg.Detector.Validate(); err != nil {
		return nil, err
	}
	for _, m := range cfg.Methods {
		if _, err := anomaly.GetDetector(m); err != nil {
			return nil, err
		}
	}

	w := cfg.Detector.AnomalyWindow
	if w <= 0 {
		w = anomaly.DefaultConfig().AnomalyWindow
	}

	return &Monitor{
		cfg:      cfg,
		sub:      sub,
		pub:      pub,
		logger:   logging.Global().With("component", "stream_monitor", "subject", cfg.InputSubject),
		now:      time.Now,
		capacity: w + 1,
		windows:  make(map[string]*window),
	}, nil
}

// Start subscribes to the input subject
func (m *Monitor) Start() error {
	if err := m.sub.Subscribe(m.cfg.InputSubject, m.Handle); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	m.logger.Info("Stream monitor started",
		"output", m.cfg.OutputSubject,
		"methods", fmt.Sprint(m.cfg.Methods),
		"window", m.capacity-1)
	return nil
}

// Stop unsubscribes from the input subject
func (m *Monitor) Stop() error {
	if err := m.sub.Unsubscribe(m.cfg.InputSubject); err != nil {
		return err
	}
	s := m.Stats()
	m.logger.Info("Stream monitor stopped",
		"received", s.Received, "rejected", s.Rejected, "anomalies", s.Anomalies)
	return nil
}

// Handle is the queue handler. Malformed or invalid points are logged and
// acknowledged; only publish failures are returned so the point is redelivered.
func (m *Monitor) Handle(data []byte) error {
	var msg queue.PointMessage
	if err := queue.Decode(data, &msg); err != nil {
		m.rejected.Add(1)
		m.logger.Warn("Dropping undecodable point", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), utils.QueueConnectTimeout)
	defer cancel()

	_, err := m.Observe(ctx, msg)
	var ve *analytics.ValidationError
	if errors.As(err, &ve) {
		m.logger.Warn("Dropping invalid point", "metric_id", msg.MetricID, "code", ve.Code, "error", err)
		return nil
	}
	return err
}

// Observe appends a point to its metric window, runs every configured detector on it
// and publishes the resulting events
func (m *Monitor) Observe(ctx context.Context, msg queue.PointMessage) ([]AnomalyEvent, error) {
	m.received.Add(1)
	if msg.MetricID == "" {
		m.rejected.Add(1)
		return nil, analytics.NewValidationError(analytics.CodeEmptyMetricID, "metric id is required", nil)
	}

	point := analytics.TimeSeriesPoint{Time: msg.Time, Value: msg.Value}
	if err := analytics.ValidatePoints([]analytics.TimeSeriesPoint{point}); err != nil {
		m.rejected.Add(1)
		return nil, err
	}

	history, undo, err := m.append(msg.MetricID, point)
	if err != nil {
		m.rejected.Add(1)
		return nil, err
	}

	events, err := m.evaluate(ctx, msg, history)
	if err != nil {
		// a redelivered point must find the window as it was before this attempt
		undo()
		return nil, err
	}
	return events, nil
}

// evaluate runs the detectors over history and publishes what they flag
func (m *Monitor) evaluate(ctx context.Context, msg queue.PointMessage, history []analytics.TimeSeriesPoint) ([]AnomalyEvent, error) {
	events := make([]AnomalyEvent, 0)
	for _, method := range m.cfg.Methods {
		result, err := anomaly.DetectLatest(method, history, m.cfg.Detector)
		if err != nil {
			return nil, err
		}
		if !result.Anomalous {
			continue
		}
		r := result.Record
		events = append(events, AnomalyEvent{
			ID:         uuid.NewString(),
			MetricID:   msg.MetricID,
			Time:       msg.Time,
			Value:      r.Value,
			Method:     method,
			Score:      r.Score,
			Severity:   r.Severity,
			Direction:  r.Direction,
			Expected:   r.Expected,
			Window:     result.Window,
			DetectedAt: m.now(),
		})
	}
	if len(events) == 0 {
		return events, nil
	}

	batch := make([]queue.BatchMessage, 0, len(events))
	for _, e := range events {
		data, err := queue.Encode(e)
		if err != nil {
			return nil, err
		}
		batch = append(batch, queue.BatchMessage{Subject: m.cfg.OutputSubject, Data: data})
	}
	published, err := m.pub.PublishBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to publish anomalies for %s: %w", msg.MetricID, err)
	}
	if published < len(batch) {
		return nil, fmt.Errorf("published %d of %d anomalies for %s", published, len(batch), msg.MetricID)
	}

	m.anomalies.Add(uint64(len(events)))
	for _, e := range events {
		m.logger.Info("Anomaly detected",
			"metric_id", e.MetricID, "method", string(e.Method),
			"value", e.Value, "score", e.Score, "severity", string(e.Severity))
	}
	return events, nil
}

// append adds point to the metric's window and returns a copy of the window, plus a
// function restoring the window to its previous state
func (m *Monitor) append(metricID string, point analytics.TimeSeriesPoint) ([]analytics.TimeSeriesPoint, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[metricID]
	created := !ok
	if !ok {
		if m.cfg.MaxMetrics > 0 && len(m.windows) >= m.cfg.MaxMetrics {
			m.evictLocked()
		}
		w = &window{points: make([]analytics.TimeSeriesPoint, 0, m.capacity)}
		m.windows[metricID] = w
	}

	if n := len(w.points); n > 0 && !point.Time.After(w.points[n-1].Time) {
		return nil, nil, analytics.NewValidationError(analytics.CodeUnorderedTime,
			"point is not newer than the last point of its metric",
			map[string]interface{}{"metric_id": metricID, "time": point.Time})
	}

	previous := append([]analytics.TimeSeriesPoint(nil), w.points...)
	previousSeen := w.lastSeen

	if len(w.points) == m.capacity {
		copy(w.points, w.points[1:])
		w.points = w.points[:m.capacity-1]
	}
	w.points = append(w.points, point)
	w.lastSeen = m.now()

	undo := func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		current, ok := m.windows[metricID]
		if !ok || current != w {
			return
		}
		// a newer point arrived meanwhile; keep it
		if n := len(w.points); n == 0 || !w.points[n-1].Time.Equal(point.Time) {
			return
		}
		if created {
			delete(m.windows, metricID)
			return
		}
		w.points = append(w.points[:0], previous...)
		w.lastSeen = previousSeen
	}
	return append([]analytics.TimeSeriesPoint(nil), w.points...), undo, nil
}

// evictLocked drops the metric updated longest ago
func (m *Monitor) evictLocked() {
	var oldest string
	var oldestSeen time.Time
	for id, w := range m.windows {
		if oldest == "" || w.lastSeen.Before(oldestSeen) {
			oldest, oldestSeen = id, w.lastSeen
		}
	}
	delete(m.windows, oldest)
	m.logger.Debug("Evicted metric window", "metric_id", oldest)
}

// Stats returns the monitor counters
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	metrics := len(m.windows)
	m.mu.Unlock()

	return Stats{
		Received:  m.received.Load(),
		Rejected:  m.rejected.Load(),
		Anomalies: m.anomalies.Load(),
		Metrics:   metrics,
	}
}
