package forecast

import (
	"math"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/seasonality"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// SeasonalForecaster extends the decomposition trend linearly and adds the seasonal
// component at the projected phase.
type SeasonalForecaster struct{}

// NewSeasonalForecaster creates a new seasonal forecaster
func NewSeasonalForecaster() *SeasonalForecaster {
	return &SeasonalForecaster{}
}

func init() {
	RegisterForecaster(MethodSeasonal, NewSeasonalForecaster())
}

// Name returns the algorithm name
func (f *SeasonalForecaster) Name() Method {
	return MethodSeasonal
}

// Forecast needs either SeasonalPeriod or a detectable period, and two full periods
// of history.
func (f *SeasonalForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	actual := analytics.TimeSeriesData(data).Values()
	n := len(actual)

	period := config.SeasonalPeriod
	if period == 0 {
		var detected bool
		period, detected = seasonality.DetectPeriod(actual, config.MaxLag)
		if !detected {
			return nil, ErrNotApplicable
		}
	}
	decomposition, ok := seasonality.Decompose(actual, period)
	if !ok {
		return nil, ErrNotApplicable
	}

	x := stats.Indices(n)
	fit := stats.LinearRegression(x, actual)
	fitted := make([]float64, n)
	for i := range fitted {
		fitted[i] = decomposition.Trend[i] + decomposition.Seasonal[i%period]
	}

	residualStdErr := stats.StdDev(decomposition.Residual)
	predictions := make([]ForecastPoint, config.Horizon)
	lastTime := data[n-1].Time
	interval := inferInterval(data, config)
	for i := 0; i < config.Horizon; i++ {
		idx := n + i
		xi := float64(idx)
		value := fit.Predict(xi) + decomposition.Seasonal[idx%period]

		stdErr := residualStdErr
		if fit.Sxx > 0 {
			d := xi - fit.MeanX
			stdErr *= math.Sqrt(1 + 1/float64(n) + d*d/fit.Sxx)
		}
		lower, upper := calculatePredictionInterval(value, stdErr, config.Confidence)
		predictions[i] = ForecastPoint{
			Time:       lastTime.Add(interval * time.Duration(1+i)),
			Value:      value,
			LowerBound: lower,
			UpperBound: upper,
		}
	}

	return &ForecastResult{
		Status:      analytics.StatusOK,
		Method:      MethodSeasonal,
		Predictions: predictions,
		Fitted:      fitted,
		Residuals:   residualsOf(actual, fitted),
		Confidence:  fitConfidence(actual, fitted),
		ModelInfo: newModelInfo(MethodSeasonal, map[string]interface{}{
			"period":   period,
			"slope":    fit.Slope,
			"seasonal": decomposition.Seasonal,
		}, actual, fitted),
	}, nil
}
