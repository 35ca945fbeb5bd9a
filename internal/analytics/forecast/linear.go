package forecast

import (
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// LinearRegressionForecaster implements Linear Regression forecasting
type LinearRegressionForecaster struct{}

// NewLinearRegressionForecaster creates a new Linear Regression forecaster
func NewLinearRegressionForecaster() *LinearRegressionForecaster {
	return &LinearRegressionForecaster{}
}

func init() {
	RegisterForecaster(MethodLinear, NewLinearRegressionForecaster())
}

// Name returns the algorithm name
func (f *LinearRegressionForecaster) Name() Method {
	return MethodLinear
}

// Forecast extrapolates the OLS line over the point index
func (f *LinearRegressionForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	if len(data) < 2 {
		return nil, ErrNotApplicable
	}

	actual := analytics.TimeSeriesData(data).Values()
	n := len(actual)
	fit := stats.LinearRegression(stats.Indices(n), actual)

	fitted := make([]float64, n)
	for i := range fitted {
		fitted[i] = fit.Predict(float64(i))
	}

	predictions := make([]ForecastPoint, config.Horizon)
	lastTime := data[n-1].Time
	interval := inferInterval(data, config)
	for i := 0; i < config.Horizon; i++ {
		x := float64(n + i)
		value := fit.Predict(x)
		// Standard error increases for extrapolation
		lower, upper := calculatePredictionInterval(value, fit.PredictionStdErr(x), config.Confidence)
		predictions[i] = ForecastPoint{
			Time:       lastTime.Add(interval * time.Duration(1+i)),
			Value:      value,
			LowerBound: lower,
			UpperBound: upper,
		}
	}

	return &ForecastResult{
		Status:      analytics.StatusOK,
		Method:      MethodLinear,
		Predictions: predictions,
		Fitted:      fitted,
		Residuals:   residualsOf(actual, fitted),
		Confidence:  fitConfidence(actual, fitted),
		ModelInfo: newModelInfo(MethodLinear, map[string]interface{}{
			"slope":     fit.Slope,
			"intercept": fit.Intercept,
			"r_squared": fit.RSquared,
		}, actual, fitted),
	}, nil
}
