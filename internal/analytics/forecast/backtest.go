package forecast

import (
	"math"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// Backtest refits the forecaster on the first (1 - ValidationSplit) of the series,
// forecasts the held-out remainder and scores it with MAPE (as a fraction), RMSE and
// R². Accuracy is (1 − MAPE)·R² clamped to [0, 1].
func Backtest(f Forecaster, data []DataPoint, config ForecastConfig) (*BacktestResult, error) {
	split := config.ValidationSplit
	if split <= 0 {
		split = 0.2
	}

	n := len(data)
	testSize := int(math.Round(float64(n) * split))
	if testSize < 1 {
		testSize = 1
	}
	trainSize := n - testSize
	if trainSize < 3 {
		return nil, ErrNotApplicable
	}

	cfg := config
	cfg.Horizon = testSize
	cfg.Backtest = false
	cfg.Weights = nil

	result, err := f.Forecast(data[:trainSize], cfg)
	if err != nil {
		return nil, err
	}

	values := analytics.TimeSeriesData(data).Values()
	actual := values[trainSize:]
	if ar, ok := f.(*ARIMAForecaster); ok {
		// compare on the scale the model reports
		_, d := ar.orders(config)
		diffed := stats.Difference(values, d)
		actual = diffed[len(diffed)-testSize:]
	}
	predicted := result.Values()

	mape := CalculateMAPE(actual, predicted) / 100
	r2 := stats.GoodnessOfFit(actual, predicted)
	return &BacktestResult{
		TrainSize: trainSize,
		TestSize:  testSize,
		MAPE:      mape,
		RMSE:      CalculateRMSE(actual, predicted),
		RSquared:  r2,
		Accuracy:  stats.Clamp01((1 - mape) * r2),
	}, nil
}
