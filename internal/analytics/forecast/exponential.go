package forecast

import (
	"math"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// ExponentialForecaster fits ln(y) = a + b·x and extrapolates exp(a + b·x). It only
// applies to strictly positive series.
type ExponentialForecaster struct{}

// NewExponentialForecaster creates a new exponential growth forecaster
func NewExponentialForecaster() *ExponentialForecaster {
	return &ExponentialForecaster{}
}

func init() {
	RegisterForecaster(MethodExponential, NewExponentialForecaster())
}

// Name returns the algorithm name
func (f *ExponentialForecaster) Name() Method {
	return MethodExponential
}

// Forecast extrapolates the log-linear fit. Intervals are built on the log scale and
// mapped back, so they are asymmetric around the prediction.
func (f *ExponentialForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	if len(data) < 2 {
		return nil, ErrNotApplicable
	}

	actual := analytics.TimeSeriesData(data).Values()
	n := len(actual)
	logY := make([]float64, n)
	for i, v := range actual {
		if v <= 0 {
			return nil, ErrNotApplicable
		}
		logY[i] = math.Log(v)
	}
	fit := stats.LinearRegression(stats.Indices(n), logY)

	fitted := make([]float64, n)
	for i := range fitted {
		fitted[i] = math.Exp(fit.Predict(float64(i)))
	}

	predictions := make([]ForecastPoint, config.Horizon)
	lastTime := data[n-1].Time
	interval := inferInterval(data, config)
	for i := 0; i < config.Horizon; i++ {
		x := float64(n + i)
		logValue := fit.Predict(x)
		logLower, logUpper := calculatePredictionInterval(logValue, fit.PredictionStdErr(x), config.Confidence)
		predictions[i] = ForecastPoint{
			Time:       lastTime.Add(interval * time.Duration(1+i)),
			Value:      math.Exp(logValue),
			LowerBound: math.Exp(logLower),
			UpperBound: math.Exp(logUpper),
		}
	}

	return &ForecastResult{
		Status:      analytics.StatusOK,
		Method:      MethodExponential,
		Predictions: predictions,
		Fitted:      fitted,
		Residuals:   residualsOf(actual, fitted),
		Confidence:  fitConfidence(actual, fitted),
		ModelInfo: newModelInfo(MethodExponential, map[string]interface{}{
			"growth_rate": fit.Slope,
			"initial":     math.Exp(fit.Intercept),
		}, actual, fitted),
	}, nil
}
