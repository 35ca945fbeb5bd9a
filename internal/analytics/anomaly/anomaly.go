package anomaly

import (
	"fmt"
	"sort"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
)

// Method names an anomaly detection algorithm
type Method string

const (
	MethodZScore        Method = "zscore"
	MethodIQR           Method = "iqr"
	MethodIsolation     Method = "isolation"
	MethodMovingAverage Method = "moving_avg"
	MethodAuto          Method = "auto"
)

// Severity of a detected anomaly
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Direction tells whether an anomalous value sits above or below the expected range
type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// AnomalyRecord represents a detected anomaly in time-series data
type AnomalyRecord struct {
	Index     int       `json:"index"`
	Time      string    `json:"time,omitempty"`
	Value     float64   `json:"value"`
	Method    Method    `json:"method"`
	Score     float64   `json:"score"` // How anomalous (higher = more abnormal)
	Severity  Severity  `json:"severity"`
	Direction Direction `json:"direction"`
	Expected  *Range    `json:"expected,omitempty"`
}

// Range represents expected value range
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DataPoint is an alias to the shared analytics.TimeSeriesPoint type.
type DataPoint = analytics.TimeSeriesPoint

// DetectorConfig holds configuration for anomaly detection
type DetectorConfig struct {
	// Sensitivity in (0, 1] drives the z-score threshold as 2/Sensitivity
	Sensitivity float64

	// Threshold overrides the sensitivity-derived z-score threshold when > 0
	Threshold float64

	// IQRMultiplier scales the interquartile range for the IQR bounds
	IQRMultiplier float64

	// IsolationThreshold is the isolation score above which a point is flagged
	IsolationThreshold float64

	// WindowSize for the moving average detector
	WindowSize int

	// AnomalyWindow is the trailing history used by streaming detection
	AnomalyWindow int

	// MinDataPoints minimum number of points required for batch detection
	MinDataPoints int
}

// DefaultConfig returns default detector configuration
func DefaultConfig() DetectorConfig {
	return DetectorConfig{
		Sensitivity:        0.7, // threshold ≈ 2.86
		IQRMultiplier:      1.5,
		IsolationThreshold: 0.5,
		WindowSize:         10,
		AnomalyWindow:      20,
		MinDataPoints:      10,
	}
}

// ZScoreThreshold returns the explicit Threshold, or 2/Sensitivity.
func (c DetectorConfig) ZScoreThreshold() float64 {
	if c.Threshold > 0 {
		return c.Threshold
	}
	sensitivity := c.Sensitivity
	if sensitivity <= 0 || sensitivity > 1 {
		sensitivity = 0.7
	}
	return 2 / sensitivity
}

func (c DetectorConfig) iqrMultiplier() float64 {
	if c.IQRMultiplier <= 0 {
		return 1.5
	}
	return c.IQRMultiplier
}

func (c DetectorConfig) isolationThreshold() float64 {
	if c.IsolationThreshold <= 0 {
		return 0.5
	}
	return c.IsolationThreshold
}

func (c DetectorConfig) anomalyWindow() int {
	if c.AnomalyWindow <= 0 {
		return 20
	}
	return c.AnomalyWindow
}

// Validate checks the configuration ranges.
func (c DetectorConfig) Validate() error {
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		return analytics.NewValidationError(analytics.CodeInvalidParameter,
			"sensitivity must be in (0, 1]",
			map[string]interface{}{"sensitivity": c.Sensitivity})
	}
	if c.Threshold < 0 || c.IQRMultiplier < 0 || c.IsolationThreshold < 0 {
		return analytics.NewValidationError(analytics.CodeInvalidParameter,
			"thresholds must not be negative", nil)
	}
	if c.WindowSize < 0 || c.AnomalyWindow < 0 || c.MinDataPoints < 0 {
		return analytics.NewValidationError(analytics.CodeInvalidParameter,
			"window sizes must not be negative", nil)
	}
	return nil
}

// AnomalyDetector interface for all anomaly detection algorithms
type AnomalyDetector interface {
	// Name returns the algorithm name
	Name() Method

	// Detect evaluates every point against whole-series statistics
	Detect(data []DataPoint, config DetectorConfig) []AnomalyRecord

	// Evaluate scores a single value against a reference window. The returned record
	// has Value, Method, Score, Severity, Direction and Expected filled in.
	Evaluate(reference []float64, value float64, config DetectorConfig) (AnomalyRecord, bool)
}

// Registry holds available anomaly detectors. It is populated by init functions
// and read-only afterwards.
var detectorRegistry = make(map[Method]AnomalyDetector)

// RegisterDetector adds a detector to the registry
func RegisterDetector(name Method, detector AnomalyDetector) {
	detectorRegistry[name] = detector
}

// GetDetector returns a detector by name
func GetDetector(name Method) (AnomalyDetector, error) {
	if detector, ok := detectorRegistry[name]; ok {
		return detector, nil
	}
	return nil, analytics.NewValidationError(analytics.CodeInvalidParameter,
		fmt.Sprintf("unknown anomaly detector: %s", name),
		map[string]interface{}{"method": string(name)})
}

// ListDetectors returns the sorted list of available detector names
func ListDetectors() []Method {
	names := make([]Method, 0, len(detectorRegistry))
	for name := range detectorRegistry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// DetectionResult is the outcome of batch detection with one method
type DetectionResult struct {
	Status    analytics.Status `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Method    Method           `json:"method"`
	Checked   int              `json:"checked"`
	Anomalies []AnomalyRecord  `json:"anomalies"`
}

// Detect runs a registered detector over the whole series. Series shorter than
// MinDataPoints produce an insufficient_data result, not an error.
func Detect(method Method, data []DataPoint, config DetectorConfig) (DetectionResult, error) {
	detector, err := GetDetector(method)
	if err != nil {
		return DetectionResult{}, err
	}
	if err := config.Validate(); err != nil {
		return DetectionResult{}, err
	}
	if err := analytics.ValidatePoints(data); err != nil {
		return DetectionResult{}, err
	}

	minPoints := config.MinDataPoints
	if minPoints < 3 {
		minPoints = 3
	}
	if len(data) < minPoints {
		return DetectionResult{
			Status:    analytics.StatusInsufficientData,
			Reason:    analytics.ReasonInsufficientData,
			Method:    method,
			Anomalies: []AnomalyRecord{},
		}, nil
	}

	anomalies := detector.Detect(data, config)
	if anomalies == nil {
		anomalies = []AnomalyRecord{}
	}
	return DetectionResult{
		Status:    analytics.StatusOK,
		Method:    method,
		Checked:   len(data),
		Anomalies: anomalies,
	}, nil
}

// newRecord stamps the index and time of data[i] on an evaluated record.
func newRecord(data []DataPoint, i int, r AnomalyRecord) AnomalyRecord {
	r.Index = i
	r.Time = data[i].Time.Format(time.RFC3339Nano)
	r.Value = data[i].Value
	return r
}

func directionOf(value, center float64) Direction {
	if value >= center {
		return DirectionHigh
	}
	return DirectionLow
}

// severityOf buckets a score by the critical/high/medium cut points.
func severityOf(score, critical, high, medium float64) Severity {
	switch {
	case score > critical:
		return SeverityCritical
	case score > high:
		return SeverityHigh
	case score > medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
