// Package pattern combines the trend, seasonality and statistics components into
// higher level pattern reports: cycles, regime changes and clusters of similar windows.
package pattern

import (
	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/seasonality"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
	"github.com/soltixdb/trendcore/internal/analytics/trend"
)

// Type of pattern
type Type string

const (
	TypeCyclical   Type = "cyclical"
	TypeSeasonal   Type = "seasonal"
	TypeTrend      Type = "trend"
	TypeVolatility Type = "volatility"
	TypeRegime     Type = "regime"
	TypeClustering Type = "clustering"
)

// AllTypes lists every pattern type in reporting order.
var AllTypes = []Type{TypeCyclical, TypeSeasonal, TypeTrend, TypeVolatility, TypeRegime, TypeClustering}

const (
	seasonalStrengthThreshold = 0.3
	silhouetteThreshold       = 0.25
	minCyclicalPoints         = 4
)

// Pattern is one detected (or rejected) pattern
type Pattern struct {
	Type       Type                   `json:"type"`
	Detected   bool                   `json:"detected"`
	Strength   float64                `json:"strength"`
	Reason     string                 `json:"reason,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

func insufficient(t Type) Pattern {
	return Pattern{Type: t, Reason: analytics.ReasonInsufficientData}
}

// Config holds configuration for pattern detection
type Config struct {
	MinDataPoints       int          `json:"min_data_points"`
	MaxLag              int          `json:"max_lag"`              // bound of the period search
	Period              int          `json:"period"`               // seasonal period, 0 detects it
	Window              int          `json:"window"`               // regime and feature window, max(5, n/10) when 0
	ClusterK            int          `json:"cluster_k"`            // k of k-means
	MaxIterations       int          `json:"max_iterations"`       // k-means iteration bound
	Seed                uint64       `json:"seed"`                 // k-means initialisation seed
	VolatilityThreshold float64      `json:"volatility_threshold"` // return volatility above which the series is volatile
	Trend               trend.Config `json:"trend"`
}

// DefaultConfig returns default pattern detection configuration
func DefaultConfig() Config {
	return Config{
		MinDataPoints:       10,
		MaxLag:              seasonality.DefaultMaxLag,
		ClusterK:            3,
		MaxIterations:       100,
		Seed:                1,
		VolatilityThreshold: 0.2,
		Trend:               trend.DefaultConfig(),
	}
}

// windowFor returns the configured window, or max(5, n/10).
func (c Config) windowFor(n int) int {
	if c.Window > 0 {
		return c.Window
	}
	return max(5, n/10)
}

// Report is the outcome of a full pattern run
type Report struct {
	Status   analytics.Status `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	Patterns []Pattern        `json:"patterns"`
}

// Detected returns the patterns that were detected.
func (r Report) Detected() []Pattern {
	var detected []Pattern
	for _, p := range r.Patterns {
		if p.Detected {
			detected = append(detected, p)
		}
	}
	return detected
}

// Detect validates the series and evaluates every pattern type. Series shorter than
// MinDataPoints yield an insufficient_data report in which no pattern is detected.
func Detect(data []analytics.TimeSeriesPoint, config Config) (Report, error) {
	if err := analytics.ValidatePoints(data); err != nil {
		return Report{}, err
	}
	return DetectValues(analytics.TimeSeriesData(data).Values(), config), nil
}

// DetectValues evaluates every pattern type over already validated values.
func DetectValues(values []float64, config Config) Report {
	if len(values) < config.MinDataPoints || len(values) < 2 {
		report := Report{
			Status: analytics.StatusInsufficientData,
			Reason: analytics.ReasonInsufficientData,
		}
		for _, t := range AllTypes {
			report.Patterns = append(report.Patterns, insufficient(t))
		}
		return report
	}

	window := config.windowFor(len(values))
	return Report{
		Status: analytics.StatusOK,
		Patterns: []Pattern{
			Cyclical(values, config.MaxLag),
			Seasonal(values, config.Period, config.MaxLag),
			Trend(values, config.Trend),
			Volatility(values, config.VolatilityThreshold),
			Regime(values, window),
			Clustering(values, window, config.ClusterK, config.MaxIterations, config.Seed),
		},
	}
}

// Cyclical reports the first autocorrelation peak. Strength is the autocorrelation at
// that period.
func Cyclical(values []float64, maxLag int) Pattern {
	if len(values) < minCyclicalPoints {
		return insufficient(TypeCyclical)
	}
	period, found := seasonality.DetectPeriod(values, maxLag)
	if !found {
		return Pattern{
			Type:       TypeCyclical,
			Parameters: map[string]interface{}{"max_lag": maxLag},
		}
	}

	acf := stats.Autocorrelation(values, period)
	params := map[string]interface{}{
		"primary_period":  period,
		"autocorrelation": acf,
	}
	if harmonics := seasonality.Harmonics(values, period); len(harmonics) > 0 {
		params["harmonics"] = harmonics
	}
	return Pattern{
		Type:       TypeCyclical,
		Detected:   true,
		Strength:   stats.Clamp01(acf),
		Parameters: params,
	}
}

// Seasonal reports a seasonal component stronger than 0.3 at a detected (or given)
// period.
func Seasonal(values []float64, period, maxLag int) Pattern {
	analysis := seasonality.AnalyzeValues(values, period, maxLag)
	if analysis.Status != analytics.StatusOK {
		return insufficient(TypeSeasonal)
	}
	return Pattern{
		Type:     TypeSeasonal,
		Detected: analysis.PeriodDetected && analysis.Strength > seasonalStrengthThreshold,
		Strength: analysis.Strength,
		Parameters: map[string]interface{}{
			"period":          analysis.Period,
			"period_detected": analysis.PeriodDetected,
			"autocorrelation": analysis.Autocorrelation,
		},
	}
}

// Trend reports a rising or falling series whose best fit is confident. Strength is
// the best fit's R².
func Trend(values []float64, config trend.Config) Pattern {
	result := trend.DetectValues(values, config)
	if result.Status != analytics.StatusOK {
		return insufficient(TypeTrend)
	}
	moving := result.Direction == trend.DirectionIncreasing || result.Direction == trend.DirectionDecreasing
	return Pattern{
		Type:     TypeTrend,
		Detected: moving && result.Confidence == trend.ConfidenceHigh,
		Strength: result.RSquared,
		Parameters: map[string]interface{}{
			"direction": result.Direction,
			"best_fit":  result.BestFit,
			"slope":     result.Slope,
			"p_value":   result.PValue,
		},
	}
}

// Volatility reports a series whose period-over-period relative changes have a
// standard deviation above threshold.
func Volatility(values []float64, threshold float64) Pattern {
	changes := stats.RelativeChanges(values)
	if len(changes) < 2 {
		return insufficient(TypeVolatility)
	}
	volatility := stats.StdDev(changes)
	mean, sd := stats.MeanStdDev(values)
	return Pattern{
		Type:     TypeVolatility,
		Detected: volatility > threshold,
		Strength: stats.Clamp01(volatility),
		Parameters: map[string]interface{}{
			"volatility":               volatility,
			"threshold":                threshold,
			"coefficient_of_variation": stats.SafeDiv(sd, abs(mean), 0),
		},
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
