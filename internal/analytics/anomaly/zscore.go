package anomaly

import (
	"math"

	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// ZScoreDetector detects anomalies using Z-Score (standard score)
// Z-Score measures how many standard deviations a point is from the mean
// Points with |Z| > threshold are considered anomalies
type ZScoreDetector struct{}

func init() {
	RegisterDetector(MethodZScore, &ZScoreDetector{})
}

// Name returns the algorithm name
func (z *ZScoreDetector) Name() Method {
	return MethodZScore
}

// Detect finds anomalies using Z-Score method against the population statistics of
// the whole series. A series without spread has no anomalies.
func (z *ZScoreDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyRecord {
	if len(data) == 0 {
		return nil
	}

	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}
	mean, stdDev := stats.MeanStdDev(values)

	var results []AnomalyRecord
	for i, dp := range data {
		if r, ok := z.score(dp.Value, mean, stdDev, config); ok {
			results = append(results, newRecord(data, i, r))
		}
	}
	return results
}

// Evaluate scores value against the mean and standard deviation of reference
func (z *ZScoreDetector) Evaluate(reference []float64, value float64, config DetectorConfig) (AnomalyRecord, bool) {
	mean, stdDev := stats.MeanStdDev(reference)
	return z.score(value, mean, stdDev, config)
}

func (z *ZScoreDetector) score(value, mean, stdDev float64, config DetectorConfig) (AnomalyRecord, bool) {
	if stdDev == 0 {
		return AnomalyRecord{}, false
	}

	threshold := config.ZScoreThreshold()
	zScore := math.Abs(CalculateZScore(value, mean, stdDev))
	if zScore <= threshold {
		return AnomalyRecord{}, false
	}

	return AnomalyRecord{
		Value:     value,
		Method:    MethodZScore,
		Score:     zScore,
		Severity:  zScoreSeverity(zScore),
		Direction: directionOf(value, mean),
		Expected: &Range{
			Min: mean - threshold*stdDev,
			Max: mean + threshold*stdDev,
		},
	}, true
}

// zScoreSeverity maps z>3 critical, >2.5 high, >2 medium, else low
func zScoreSeverity(z float64) Severity {
	return severityOf(z, 3, 2.5, 2)
}

// CalculateZScore calculates Z-Score for a single value given mean and stdDev
func CalculateZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}
