package anomaly

import (
	"math"

	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// AutoDetector automatically selects the best anomaly detection algorithm
// based on data characteristics (distribution, trend, outliers)
type AutoDetector struct{}

func init() {
	RegisterDetector(MethodAuto, &AutoDetector{})
}

// Name returns the algorithm name
func (a *AutoDetector) Name() Method {
	return MethodAuto
}

// Detect analyses the series and delegates to the selected detector
func (a *AutoDetector) Detect(data []DataPoint, config DetectorConfig) []AnomalyRecord {
	if len(data) < 3 {
		return nil
	}
	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}
	return a.selected(values).Detect(data, config)
}

// Evaluate selects a detector from the reference window characteristics
func (a *AutoDetector) Evaluate(reference []float64, value float64, config DetectorConfig) (AnomalyRecord, bool) {
	if len(reference) < 3 {
		return AnomalyRecord{}, false
	}
	return a.selected(reference).Evaluate(reference, value, config)
}

func (a *AutoDetector) selected(values []float64) AnomalyDetector {
	detector, err := GetDetector(selectAlgorithm(analyzeDataCharacteristics(values)))
	if err != nil {
		return &IQRDetector{}
	}
	return detector
}

// DataCharacteristics describes properties of the data
type DataCharacteristics struct {
	// IsNormalDistribution indicates if data follows normal distribution
	IsNormalDistribution bool `json:"is_normal_distribution"`

	// HasTrend indicates if data has a clear upward/downward trend
	HasTrend bool `json:"has_trend"`

	// TrendStrength from -1 (strong downward) to 1 (strong upward)
	TrendStrength float64 `json:"trend_strength"`

	// HasOutliers indicates if there are existing outliers
	HasOutliers bool `json:"has_outliers"`

	// OutlierPercentage percentage of potential outliers
	OutlierPercentage float64 `json:"outlier_percentage"`

	// Variability coefficient of variation (stdDev/mean)
	Variability float64 `json:"variability"`

	// DataSize number of data points
	DataSize int `json:"data_size"`

	// SelectedAlgorithm the algorithm that was selected
	SelectedAlgorithm Method `json:"selected_algorithm"`
}

// analyzeDataCharacteristics examines the data to determine its properties
func analyzeDataCharacteristics(values []float64) DataCharacteristics {
	chars := DataCharacteristics{
		DataSize: len(values),
	}
	if len(values) < 3 {
		return chars
	}

	mean, stdDev := stats.MeanStdDev(values)
	chars.Variability = stats.SafeDiv(stdDev, math.Abs(mean), 0)

	fit := stats.LinearRegression(stats.Indices(len(values)), values)
	chars.HasTrend = fit.RSquared > 0.1
	chars.TrendStrength = fit.RSquared
	if fit.Slope < 0 {
		chars.TrendStrength = -fit.RSquared
	}

	// approximate normality from the third and fourth moments
	if len(values) >= 10 && stdDev > 0 {
		chars.IsNormalDistribution = math.Abs(stats.Skewness(values)) < 1 &&
			math.Abs(stats.Kurtosis(values)) < 2
	}

	q1, q3, iqr := stats.Quartiles(values)
	outlierCount := 0
	for _, v := range values {
		if v < q1-1.5*iqr || v > q3+1.5*iqr {
			outlierCount++
		}
	}
	chars.OutlierPercentage = float64(outlierCount) / float64(len(values)) * 100
	chars.HasOutliers = chars.OutlierPercentage > 1

	return chars
}

// selectAlgorithm chooses the best algorithm based on data characteristics
func selectAlgorithm(chars DataCharacteristics) Method {
	// 1. many existing outliers (>5%): IQR, which they do not distort
	// 2. strong trend: moving average follows the level
	// 3. roughly normal: z-score
	// 4. otherwise IQR
	if chars.OutlierPercentage > 5 {
		return MethodIQR
	}
	if chars.HasTrend && math.Abs(chars.TrendStrength) > 0.3 {
		return MethodMovingAverage
	}
	if chars.IsNormalDistribution {
		return MethodZScore
	}
	return MethodIQR
}

// AnalyzeData returns characteristics of the data and the detector auto would pick
func AnalyzeData(data []DataPoint) DataCharacteristics {
	values := make([]float64, len(data))
	for i, dp := range data {
		values[i] = dp.Value
	}
	chars := analyzeDataCharacteristics(values)
	chars.SelectedAlgorithm = selectAlgorithm(chars)
	return chars
}
