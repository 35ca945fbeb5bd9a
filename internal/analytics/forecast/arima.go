package forecast

import (
	"math"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// ARIMAForecaster is a simplified autoregressive model, not a Box-Jenkins ARIMA
// estimator. It differences the series D times, takes the AR(P) coefficients as
// lag-covariance ratios γ(k)/γ(0) and applies them recursively to the most recent
// differenced values.
//
// Forecasts are reported on the differenced scale: the differencing is not reversed
// and ModelInfo.Parameters["scale"] is "differenced". Whether callers expect the
// original scale is unresolved, so the ensemble leaves this model out.
type ARIMAForecaster struct {
	P int // AR order
	D int // Differencing order
}

// NewARIMAForecaster creates a new AR(2) forecaster on first differences
func NewARIMAForecaster() *ARIMAForecaster {
	return &ARIMAForecaster{
		P: 2,
		D: 1,
	}
}

// NewARIMAForecasterWithParams creates the forecaster with custom orders
func NewARIMAForecasterWithParams(p, d int) *ARIMAForecaster {
	return &ARIMAForecaster{
		P: p,
		D: d,
	}
}

func init() {
	RegisterForecaster(MethodARIMA, NewARIMAForecaster())
}

// Name returns the algorithm name
func (f *ARIMAForecaster) Name() Method {
	return MethodARIMA
}

// orders returns P and D, overridden by a non-zero config.
func (f *ARIMAForecaster) orders(config ForecastConfig) (p, d int) {
	p, d = f.P, f.D
	if config.AROrder > 0 {
		p = config.AROrder
	}
	if config.Differencing > 0 {
		d = config.Differencing
	}
	if p <= 0 {
		p = 1
	}
	return p, d
}

// Forecast generates predictions on the differenced scale
func (f *ARIMAForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	p, d := f.orders(config)
	values := analytics.TimeSeriesData(data).Values()
	diffValues := stats.Difference(values, d)
	if len(diffValues) < p+2 {
		return nil, ErrNotApplicable
	}

	coeffs := ARCoefficients(diffValues, p)

	// in-sample one-step predictions from index p on
	actual := diffValues[p:]
	fitted := make([]float64, len(actual))
	for t := p; t < len(diffValues); t++ {
		fitted[t-p] = applyAR(coeffs, diffValues[:t])
	}
	residuals := residualsOf(actual, fitted)
	stdError := stats.PopulationStdDev(residuals)

	predictions := make([]ForecastPoint, config.Horizon)
	lastTime := data[len(data)-1].Time
	interval := inferInterval(data, config)

	recent := append([]float64(nil), diffValues...)
	for h := 0; h < config.Horizon; h++ {
		next := applyAR(coeffs, recent)
		recent = append(recent, next)

		// wider for further horizons
		lower, upper := calculatePredictionInterval(next, stdError*math.Sqrt(float64(h+1)), config.Confidence)
		predictions[h] = ForecastPoint{
			Time:       lastTime.Add(interval * time.Duration(h+1)),
			Value:      next,
			LowerBound: lower,
			UpperBound: upper,
		}
	}

	return &ForecastResult{
		Status:      analytics.StatusOK,
		Method:      MethodARIMA,
		Predictions: predictions,
		Fitted:      fitted,
		Residuals:   residuals,
		Confidence:  fitConfidence(actual, fitted),
		ModelInfo: newModelInfo(MethodARIMA, map[string]interface{}{
			"p":            p,
			"d":            d,
			"coefficients": coeffs,
			"scale":        "differenced",
		}, actual, fitted),
	}, nil
}

// ARCoefficients returns φ_k = γ(k)/γ(0) for k = 1..p, the lag-k autocorrelations.
// This is not a Yule-Walker solve.
func ARCoefficients(values []float64, p int) []float64 {
	coeffs := make([]float64, p)
	for k := 1; k <= p; k++ {
		coeffs[k-1] = stats.Autocorrelation(values, k)
	}
	return coeffs
}

// applyAR returns Σ φ_k · history[len-k].
func applyAR(coeffs, history []float64) float64 {
	sum := 0.0
	for k := 1; k <= len(coeffs) && k <= len(history); k++ {
		sum += coeffs[k-1] * history[len(history)-k]
	}
	return sum
}
