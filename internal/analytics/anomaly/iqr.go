package anomaly

import (
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// IQRDetector detects anomalies using Interquartile Range (IQR) method
// IQR is robust to outliers compared to Z-Score
// Anomalies are points outside [Q1 - k*IQR, Q3 + k*IQR] where k is typically 1.5
type IQRDetector struct{}

func init() {
	RegisterDetector(MethodIQR, &IQRDetector{})
}

// Name returns the algorithm name
func (iqr *IQRDetector) Name() Method {
	return MethodIQR
}

// Detect finds anomalies using IQR method
func (iqr *IQRDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyRecord {
	if len(data) == 0 {
		return nil
	}

	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}
	q1, q3, iqrValue := stats.Quartiles(values)

	var results []AnomalyRecord
	for i, dp := range data {
		if r, ok := iqr.score(dp.Value, q1, q3, iqrValue, config); ok {
			results = append(results, newRecord(data, i, r))
		}
	}
	return results
}

// Evaluate scores value against the quartiles of reference
func (iqr *IQRDetector) Evaluate(reference []float64, value float64, config DetectorConfig) (AnomalyRecord, bool) {
	if len(reference) == 0 {
		return AnomalyRecord{}, false
	}
	q1, q3, iqrValue := stats.Quartiles(reference)
	return iqr.score(value, q1, q3, iqrValue, config)
}

func (iqr *IQRDetector) score(value, q1, q3, iqrValue float64, config DetectorConfig) (AnomalyRecord, bool) {
	multiplier := config.iqrMultiplier()
	lowerBound := q1 - multiplier*iqrValue
	upperBound := q3 + multiplier*iqrValue

	if value >= lowerBound && value <= upperBound {
		return AnomalyRecord{}, false
	}

	// distance beyond the violated bound, in IQR units
	var score float64
	if iqrValue > 0 {
		if value < lowerBound {
			score = (lowerBound - value) / iqrValue
		} else {
			score = (value - upperBound) / iqrValue
		}
	} else {
		score = 1.0
	}

	return AnomalyRecord{
		Value:     value,
		Method:    MethodIQR,
		Score:     score,
		Severity:  severityOf(score, 3, 2, 1),
		Direction: directionOf(value, (q1+q3)/2),
		Expected: &Range{
			Min: lowerBound,
			Max: upperBound,
		},
	}, true
}

// CalculateIQR returns Q1, Q3, and IQR for a slice of values
func CalculateIQR(values []float64) (q1, q3, iqr float64) {
	return stats.Quartiles(values)
}
