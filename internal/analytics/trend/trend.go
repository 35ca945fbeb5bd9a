// Package trend fits candidate trend forms to a series and classifies its direction.
package trend

import (
	"math"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// Direction of a fitted trend
type Direction string

const (
	DirectionIncreasing       Direction = "increasing"
	DirectionDecreasing       Direction = "decreasing"
	DirectionStable           Direction = "stable"
	DirectionInsufficientData Direction = "insufficient_data"
)

// FitType names a candidate trend form
type FitType string

const (
	FitLinear      FitType = "linear"      // y ~ x
	FitExponential FitType = "exponential" // ln y ~ x
	FitLogarithmic FitType = "logarithmic" // y ~ ln x
	FitPolynomial  FitType = "polynomial"  // y ~ x + x²
	FitNone        FitType = "none"
)

// Confidence label of a trend
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Config holds configuration for trend detection
type Config struct {
	// ConfidenceThreshold is the R² above which a trend is reported with high confidence
	ConfidenceThreshold float64

	// StableBand is the dead-band around zero slope classified as stable
	StableBand float64
}

// DefaultConfig returns default trend configuration
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.8,
		StableBand:          0.1,
	}
}

// Fit is one candidate form and how well it explains the series.
type Fit struct {
	Type         FitType   `json:"type"`
	RSquared     float64   `json:"r_squared"`
	Coefficients []float64 `json:"coefficients"`
}

// Result is the outcome of trend detection
type Result struct {
	Status     analytics.Status `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Direction  Direction        `json:"direction"`
	BestFit    FitType          `json:"best_fit"`
	Slope      float64          `json:"slope"`
	Intercept  float64          `json:"intercept"`
	RSquared   float64          `json:"r_squared"`
	PValue     float64          `json:"p_value"`
	Strength   float64          `json:"strength"`
	Confidence Confidence       `json:"confidence"`
	Fits       []Fit            `json:"fits,omitempty"`
}

// Detect fits the trend forms to the points of a series.
func Detect(data []analytics.TimeSeriesPoint, config Config) (Result, error) {
	if err := analytics.ValidatePoints(data); err != nil {
		return Result{}, err
	}
	return DetectValues(analytics.TimeSeriesData(data).Values(), config), nil
}

// DetectValues fits the trend forms to raw, already validated values indexed 0..n-1.
func DetectValues(values []float64, config Config) Result {
	n := len(values)
	if n < 2 {
		return Result{
			Status:     analytics.StatusInsufficientData,
			Reason:     analytics.ReasonInsufficientData,
			Direction:  DirectionInsufficientData,
			BestFit:    FitNone,
			Confidence: ConfidenceLow,
		}
	}

	band := config.StableBand
	if band <= 0 {
		band = 0.1
	}

	x := stats.Indices(n)
	linear := stats.LinearRegression(x, values)

	fits := []Fit{{
		Type:         FitLinear,
		RSquared:     linear.RSquared,
		Coefficients: []float64{linear.Intercept, linear.Slope},
	}}
	if f, ok := fitExponential(x, values); ok {
		fits = append(fits, f)
	}
	fits = append(fits, fitLogarithmic(values), fitPolynomial(x, values))

	best := fits[0]
	for _, f := range fits[1:] {
		// a later, more complex form must strictly improve on the current best
		if f.RSquared > best.RSquared+1e-9 {
			best = f
		}
	}

	result := Result{
		Status:     analytics.StatusOK,
		BestFit:    best.Type,
		Slope:      linear.Slope,
		Intercept:  linear.Intercept,
		RSquared:   best.RSquared,
		PValue:     stats.SlopePValue(linear.Slope, linear.RSquared, n),
		Strength:   math.Abs(linear.Slope),
		Confidence: ConfidenceLow,
		Fits:       fits,
	}

	switch {
	case linear.Slope > band:
		result.Direction = DirectionIncreasing
	case linear.Slope < -band:
		result.Direction = DirectionDecreasing
	default:
		result.Direction = DirectionStable
	}

	if result.RSquared > config.ConfidenceThreshold {
		result.Confidence = ConfidenceHigh
	}

	return result
}

func fitExponential(x, values []float64) (Fit, bool) {
	logY := make([]float64, len(values))
	for i, v := range values {
		if v <= 0 {
			return Fit{}, false
		}
		logY[i] = math.Log(v)
	}
	f := stats.LinearRegression(x, logY)
	return Fit{
		Type:         FitExponential,
		RSquared:     f.RSquared,
		Coefficients: []float64{math.Exp(f.Intercept), f.Slope},
	}, true
}

func fitLogarithmic(values []float64) Fit {
	logX := make([]float64, len(values))
	for i := range values {
		logX[i] = math.Log(float64(i + 1))
	}
	f := stats.LinearRegression(logX, values)
	return Fit{
		Type:         FitLogarithmic,
		RSquared:     f.RSquared,
		Coefficients: []float64{f.Intercept, f.Slope},
	}
}

func fitPolynomial(x, values []float64) Fit {
	f := stats.PolynomialRegression(x, values, 2)
	return Fit{
		Type:         FitPolynomial,
		RSquared:     f.RSquared,
		Coefficients: f.Coefficients,
	}
}
