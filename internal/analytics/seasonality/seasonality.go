// Package seasonality decomposes a series into trend, seasonal and residual parts and
// scores the strength of its period.
package seasonality

import (
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

const (
	// DefaultPeriod is used when no autocorrelation peak qualifies.
	DefaultPeriod = 7

	// DefaultMaxLag bounds the autocorrelation period search.
	DefaultMaxLag = 20

	periodACFThreshold   = 0.2
	harmonicACFThreshold = 0.1
	calendarCVThreshold  = 0.1

	// relative floor under which seasonal variance counts as zero
	varianceFloor = 1e-12
)

// Config holds configuration for seasonality analysis
type Config struct {
	// Period forces the seasonal period; 0 detects it from autocorrelation
	Period int

	// MaxLag bounds the period search (capped at n/2)
	MaxLag int

	// Location used for calendar grouping, UTC when nil
	Location *time.Location
}

// DefaultConfig returns default seasonality configuration
func DefaultConfig() Config {
	return Config{
		MaxLag:   DefaultMaxLag,
		Location: time.UTC,
	}
}

// Decomposition splits a series into additive components.
// Trend[i] + Seasonal[i%Period] + Residual[i] reconstructs the input.
type Decomposition struct {
	Period   int       `json:"period"`
	Trend    []float64 `json:"trend"`
	Seasonal []float64 `json:"seasonal"`
	Residual []float64 `json:"residual"`
}

// Reconstruct returns trend + seasonal + residual at index i.
func (d Decomposition) Reconstruct(i int) float64 {
	return d.Trend[i] + d.Seasonal[i%d.Period] + d.Residual[i]
}

// Harmonic is a multiple of the base period that still autocorrelates.
type Harmonic struct {
	Period           int     `json:"period"`
	Multiple         int     `json:"multiple"`
	Autocorrelation  float64 `json:"autocorrelation"`
	RelativeStrength float64 `json:"relative_strength"`
}

// Analysis is the outcome of seasonality analysis
type Analysis struct {
	Status          analytics.Status  `json:"status"`
	Reason          string            `json:"reason,omitempty"`
	Period          int               `json:"period"`
	PeriodDetected  bool              `json:"period_detected"`
	Autocorrelation float64           `json:"autocorrelation"`
	Strength        float64           `json:"strength"`
	Decomposition   *Decomposition    `json:"decomposition,omitempty"`
	Harmonics       []Harmonic        `json:"harmonics,omitempty"`
	Calendar        []CalendarPattern `json:"calendar,omitempty"`
}

// DetectPeriod returns the first local maximum of the autocorrelation function above
// 0.2 within lags 2..min(n/2, maxLag). When none qualifies it returns DefaultPeriod
// and false.
func DetectPeriod(values []float64, maxLag int) (int, bool) {
	if maxLag <= 0 {
		maxLag = DefaultMaxLag
	}
	limit := len(values) / 2
	if maxLag < limit {
		limit = maxLag
	}
	if limit < 2 {
		return DefaultPeriod, false
	}

	acf := stats.ACF(values, limit+1)
	for lag := 2; lag <= limit; lag++ {
		if acf[lag] <= periodACFThreshold {
			continue
		}
		if acf[lag] > acf[lag-1] && acf[lag] >= acf[lag+1] {
			return lag, true
		}
	}
	return DefaultPeriod, false
}

// Decompose fits a linear trend on the index, averages the detrended values per
// phase and leaves the rest as residual. It needs at least two full periods.
func Decompose(values []float64, period int) (Decomposition, bool) {
	n := len(values)
	if period < 2 || n < 2*period {
		return Decomposition{}, false
	}

	fit := stats.LinearRegression(stats.Indices(n), values)

	trend := make([]float64, n)
	detrended := make([]float64, n)
	for i, v := range values {
		trend[i] = fit.Predict(float64(i))
		detrended[i] = v - trend[i]
	}

	seasonal := make([]float64, period)
	counts := make([]int, period)
	for i, d := range detrended {
		seasonal[i%period] += d
		counts[i%period]++
	}
	for k := range seasonal {
		seasonal[k] /= float64(counts[k])
	}

	residual := make([]float64, n)
	for i, d := range detrended {
		residual[i] = d - seasonal[i%period]
	}

	return Decomposition{
		Period:   period,
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
	}, true
}

// Strength scores a seasonal component as var/(mean² + var), population variance.
func Strength(seasonal []float64, seriesVariance float64) float64 {
	if len(seasonal) == 0 {
		return 0
	}
	mean := stats.Mean(seasonal)
	variance := stats.PopulationVariance(seasonal)
	if variance <= varianceFloor*(1+seriesVariance) {
		return 0
	}
	return stats.Clamp01(variance / (mean*mean + variance))
}

// Harmonics reports multiples of period up to n/2 whose autocorrelation exceeds 0.1.
func Harmonics(values []float64, period int) []Harmonic {
	if period < 2 {
		return nil
	}
	base := stats.Autocorrelation(values, period)
	var harmonics []Harmonic
	for k := 2; k*period <= len(values)/2; k++ {
		acf := stats.Autocorrelation(values, k*period)
		if acf <= harmonicACFThreshold {
			continue
		}
		harmonics = append(harmonics, Harmonic{
			Period:           k * period,
			Multiple:         k,
			Autocorrelation:  acf,
			RelativeStrength: stats.SafeDiv(acf, base, 0),
		})
	}
	return harmonics
}

// Analyze detects (or takes) the period, decomposes the series and scores it.
func Analyze(data []analytics.TimeSeriesPoint, config Config) (Analysis, error) {
	if err := analytics.ValidatePoints(data); err != nil {
		return Analysis{}, err
	}
	if config.Period < 0 || config.Period == 1 {
		return Analysis{}, analytics.NewValidationError(analytics.CodeInvalidParameter,
			"seasonal period must be 0 (auto) or at least 2",
			map[string]interface{}{"period": config.Period})
	}

	values := analytics.TimeSeriesData(data).Values()
	analysis := AnalyzeValues(values, config.Period, config.MaxLag)
	if analysis.Status == analytics.StatusOK {
		analysis.Calendar = CalendarPatterns(data, config.Location)
	}
	return analysis, nil
}

// AnalyzeValues runs the period search, decomposition and harmonic scan on raw values.
func AnalyzeValues(values []float64, period, maxLag int) Analysis {
	detected := period > 0
	if period == 0 {
		period, detected = DetectPeriod(values, maxLag)
	}

	decomposition, ok := Decompose(values, period)
	if !ok {
		return Analysis{
			Status:         analytics.StatusInsufficientData,
			Reason:         analytics.ReasonInsufficientData,
			Period:         period,
			PeriodDetected: detected,
		}
	}

	return Analysis{
		Status:          analytics.StatusOK,
		Period:          period,
		PeriodDetected:  detected,
		Autocorrelation: stats.Autocorrelation(values, period),
		Strength:        Strength(decomposition.Seasonal, stats.PopulationVariance(values)),
		Decomposition:   &decomposition,
		Harmonics:       Harmonics(values, period),
	}
}
