package anomaly

import (
	"math"

	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// MovingAverageDetector detects anomalies by comparing each point
// to its local moving average. Good for detecting sudden changes in trending data.
type MovingAverageDetector struct{}

func init() {
	RegisterDetector(MethodMovingAverage, &MovingAverageDetector{})
}

// Name returns the algorithm name
func (ma *MovingAverageDetector) Name() Method {
	return MethodMovingAverage
}

func (ma *MovingAverageDetector) windowSize(config DetectorConfig, n int) int {
	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = 10
	}
	if windowSize > n {
		windowSize = n / 2
	}
	if windowSize < 3 {
		windowSize = 3
	}
	return windowSize
}

// Detect finds anomalies using a centred window around each point, excluding the
// point itself
func (ma *MovingAverageDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyRecord {
	if len(data) < 3 {
		return nil
	}
	windowSize := ma.windowSize(config, len(data))

	var results []AnomalyRecord
	neighbours := make([]float64, 0, windowSize+1)
	for i, dp := range data {
		start := i - windowSize/2
		end := i + windowSize/2
		if start < 0 {
			start = 0
		}
		if end >= len(data) {
			end = len(data) - 1
		}

		neighbours = neighbours[:0]
		for j := start; j <= end; j++ {
			if j != i {
				neighbours = append(neighbours, data[j].Value)
			}
		}
		if len(neighbours) == 0 {
			continue
		}

		localMean, localStdDev := stats.MeanStdDev(neighbours)
		if r, ok := ma.score(dp.Value, localMean, localStdDev, config); ok {
			results = append(results, newRecord(data, i, r))
		}
	}
	return results
}

// Evaluate compares value with the mean of the last WindowSize reference values
func (ma *MovingAverageDetector) Evaluate(reference []float64, value float64, config DetectorConfig) (AnomalyRecord, bool) {
	if len(reference) == 0 {
		return AnomalyRecord{}, false
	}
	windowSize := ma.windowSize(config, len(reference))
	if windowSize > len(reference) {
		windowSize = len(reference)
	}
	localMean, localStdDev := stats.MeanStdDev(reference[len(reference)-windowSize:])
	return ma.score(value, localMean, localStdDev, config)
}

func (ma *MovingAverageDetector) score(value, localMean, localStdDev float64, config DetectorConfig) (AnomalyRecord, bool) {
	threshold := config.ZScoreThreshold()

	var deviation float64
	if localStdDev > 0 {
		deviation = math.Abs(value-localMean) / localStdDev
	} else if value != localMean {
		// a flat window makes any departure significant
		deviation = threshold + 1
	}

	if deviation <= threshold {
		return AnomalyRecord{}, false
	}

	return AnomalyRecord{
		Value:     value,
		Method:    MethodMovingAverage,
		Score:     deviation,
		Severity:  zScoreSeverity(deviation),
		Direction: directionOf(value, localMean),
		Expected: &Range{
			Min: localMean - threshold*localStdDev,
			Max: localMean + threshold*localStdDev,
		},
	}, true
}

// CalculateMovingAverage calculates a centred moving average for a slice of values
func CalculateMovingAverage(values []float64, windowSize int) []float64 {
	if len(values) == 0 {
		return nil
	}

	result := make([]float64, len(values))
	for i := range values {
		start := i - windowSize/2
		end := i + windowSize/2
		if start < 0 {
			start = 0
		}
		if end >= len(values) {
			end = len(values) - 1
		}
		result[i] = stats.Mean(values[start : end+1])
	}
	return result
}
