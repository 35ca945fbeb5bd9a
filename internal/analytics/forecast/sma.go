package forecast

import (
	"math"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// SMAForecaster implements Simple Moving Average forecasting. It is the fallback for
// series no other model can describe.
type SMAForecaster struct{}

// NewSMAForecaster creates a new SMA forecaster
func NewSMAForecaster() *SMAForecaster {
	return &SMAForecaster{}
}

func init() {
	RegisterForecaster(MethodSMA, NewSMAForecaster())
}

// Name returns the algorithm name
func (f *SMAForecaster) Name() Method {
	return MethodSMA
}

// Forecast repeats the mean of the last window for every horizon step
func (f *SMAForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	if len(data) == 0 {
		return nil, ErrNotApplicable
	}

	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = 7
	}
	if windowSize > len(data) {
		windowSize = len(data)
	}

	actual := analytics.TimeSeriesData(data).Values()

	// trailing average up to and including each point
	fitted := make([]float64, len(actual))
	for i := range actual {
		start := i - windowSize + 1
		if start < 0 {
			start = 0
		}
		fitted[i] = stats.Mean(actual[start : i+1])
	}

	residuals := residualsOf(actual, fitted)
	sumSquaredError := 0.0
	for _, r := range residuals {
		sumSquaredError += r * r
	}
	stdError := calculateStdError(sumSquaredError, len(actual))

	forecastValue := stats.Mean(actual[len(actual)-windowSize:])

	predictions := make([]ForecastPoint, config.Horizon)
	lastTime := data[len(data)-1].Time
	interval := inferInterval(data, config)
	for i := 0; i < config.Horizon; i++ {
		lower, upper := calculatePredictionInterval(forecastValue, stdError, config.Confidence)
		predictions[i] = ForecastPoint{
			Time:       lastTime.Add(interval * time.Duration(1+i)),
			Value:      forecastValue,
			LowerBound: lower,
			UpperBound: upper,
		}
	}

	return &ForecastResult{
		Status:      analytics.StatusOK,
		Method:      MethodSMA,
		Predictions: predictions,
		Fitted:      fitted,
		Residuals:   residuals,
		Confidence:  fitConfidence(actual, fitted),
		ModelInfo:   newModelInfo(MethodSMA, map[string]interface{}{"window_size": windowSize}, actual, fitted),
	}, nil
}

// calculateStdError calculates standard error from sum of squared errors
func calculateStdError(sumSquaredError float64, n int) float64 {
	if n <= 1 || sumSquaredError <= 0 {
		return 0
	}
	return math.Sqrt(sumSquaredError / float64(n-1))
}
