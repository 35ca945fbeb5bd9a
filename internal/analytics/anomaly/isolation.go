package anomaly

import (
	"math"

	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// IsolationDetector flags values that are far from every other value. A point's
// score is its mean absolute distance to all other points divided by its largest
// distance: isolated points sit near 1, points inside a dense group sit near 0.
type IsolationDetector struct{}

func init() {
	RegisterDetector(MethodIsolation, &IsolationDetector{})
}

// Name returns the algorithm name
func (iso *IsolationDetector) Name() Method {
	return MethodIsolation
}

// Detect scores every point against all the others
func (iso *IsolationDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyRecord {
	if len(data) < 2 {
		return nil
	}

	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}
	median := stats.Median(values)

	var results []AnomalyRecord
	for i := range values {
		score := IsolationScore(values, i)
		if r, ok := iso.record(values[i], score, median, config); ok {
			results = append(results, newRecord(data, i, r))
		}
	}
	return results
}

// Evaluate scores value against the reference window
func (iso *IsolationDetector) Evaluate(reference []float64, value float64, config DetectorConfig) (AnomalyRecord, bool) {
	if len(reference) == 0 {
		return AnomalyRecord{}, false
	}
	sum, maxDist := 0.0, 0.0
	for _, r := range reference {
		d := math.Abs(value - r)
		sum += d
		if d > maxDist {
			maxDist = d
		}
	}
	score := stats.SafeDiv(sum/float64(len(reference)), maxDist, 0)
	return iso.record(value, score, stats.Median(reference), config)
}

func (iso *IsolationDetector) record(value, score, median float64, config DetectorConfig) (AnomalyRecord, bool) {
	if score <= config.isolationThreshold() {
		return AnomalyRecord{}, false
	}
	return AnomalyRecord{
		Value:     value,
		Method:    MethodIsolation,
		Score:     score,
		Severity:  severityOf(score, 0.9, 0.8, 0.65),
		Direction: directionOf(value, median),
	}, true
}

// IsolationScore returns mean|x_i - x_j| / max|x_i - x_j| over j != i, 0 when every
// other value equals x_i.
func IsolationScore(values []float64, i int) float64 {
	if len(values) < 2 {
		return 0
	}
	sum, maxDist := 0.0, 0.0
	for j, v := range values {
		if j == i {
			continue
		}
		d := math.Abs(values[i] - v)
		sum += d
		if d > maxDist {
			maxDist = d
		}
	}
	return stats.SafeDiv(sum/float64(len(values)-1), maxDist, 0)
}
