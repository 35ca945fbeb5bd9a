package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// DataPoint is an alias to the shared analytics.TimeSeriesPoint type.
type DataPoint = analytics.TimeSeriesPoint

// Method names a forecasting algorithm
type Method string

const (
	MethodLinear      Method = "linear"
	MethodExponential Method = "exponential"
	MethodSeasonal    Method = "seasonal"
	MethodARIMA       Method = "arima"
	MethodSMA         Method = "sma"
	MethodEnsemble    Method = "ensemble"
	MethodAuto        Method = "auto"
)

// ErrNotApplicable is returned by a forecaster whose model cannot describe the series,
// e.g. log-linear growth over non-positive values.
var ErrNotApplicable = errors.New("forecast method not applicable to series")

// ForecastPoint represents a single forecast prediction
type ForecastPoint struct {
	Time       time.Time `json:"time"`
	Value      float64   `json:"value"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
}

// Interval is a prediction interval
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ModelInfo contains metadata about the forecast model
type ModelInfo struct {
	Algorithm  string                 `json:"algorithm"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	MAPE       float64                `json:"mape,omitempty"` // Mean Absolute Percentage Error, percent
	MAE        float64                `json:"mae,omitempty"`  // Mean Absolute Error
	RMSE       float64                `json:"rmse,omitempty"` // Root Mean Squared Error
	DataPoints int                    `json:"data_points"`    // Number of data points used
}

// BacktestResult holds hold-out accuracy of a method
type BacktestResult struct {
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	MAPE      float64 `json:"mape"` // fraction, not percent
	RMSE      float64 `json:"rmse"`
	RSquared  float64 `json:"r_squared"`
	Accuracy  float64 `json:"accuracy"` // (1 - MAPE) · R², clamped to [0, 1]
}

// EnsembleMember describes one forecaster's share of an ensemble
type EnsembleMember struct {
	Method     Method  `json:"method"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
	Accuracy   float64 `json:"accuracy"`
}

// ForecastResult contains the forecast predictions and model information
type ForecastResult struct {
	Status      analytics.Status `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	Method      Method           `json:"method"`
	Predictions []ForecastPoint  `json:"predictions"`
	Fitted      []float64        `json:"fitted,omitempty"`    // Fitted values for historical data
	Residuals   []float64        `json:"residuals,omitempty"` // Residuals (actual - fitted)
	Confidence  float64          `json:"confidence"`          // in-sample goodness of fit, [0, 1]
	Accuracy    float64          `json:"accuracy"`            // backtested, [0, 1]
	Backtest    *BacktestResult  `json:"backtest,omitempty"`
	Members     []EnsembleMember `json:"members,omitempty"`
	ModelInfo   ModelInfo        `json:"model_info"`
}

// Values returns the forecast values, one per horizon step.
func (r *ForecastResult) Values() []float64 {
	values := make([]float64, len(r.Predictions))
	for i, p := range r.Predictions {
		values[i] = p.Value
	}
	return values
}

// Intervals returns the prediction interval of every horizon step.
func (r *ForecastResult) Intervals() []Interval {
	intervals := make([]Interval, len(r.Predictions))
	for i, p := range r.Predictions {
		intervals[i] = Interval{Lower: p.LowerBound, Upper: p.UpperBound}
	}
	return intervals
}

// MemberWeight is the backtested weight and accuracy of one ensemble member
type MemberWeight struct {
	Weight   float64 `json:"weight"`
	Accuracy float64 `json:"accuracy"`
}

// MemberWeights maps ensemble members to their memoised backtest outcome
type MemberWeights map[Method]MemberWeight

// WeightStore memoises ensemble weights per metric and configuration so a hit skips
// the members' backtests. Implementations are owned by the caller and must publish
// updates atomically.
type WeightStore interface {
	LoadWeights(metricID string, config ForecastConfig) (MemberWeights, bool)
	SaveWeights(metricID string, config ForecastConfig, weights MemberWeights)
}

// ForecastConfig holds configuration for forecasting
type ForecastConfig struct {
	Horizon         int           `json:"horizon"`          // Number of periods to forecast
	WindowSize      int           `json:"window_size"`      // Window size for moving average methods
	SeasonalPeriod  int           `json:"seasonal_period"`  // 0 detects the period from autocorrelation
	MaxLag          int           `json:"max_lag"`          // Bound of the period search
	AROrder         int           `json:"ar_order"`         // p of the AR(p)-lite model
	Differencing    int           `json:"differencing"`     // d of the AR(p)-lite model
	Confidence      float64       `json:"confidence"`       // Confidence level for prediction intervals (0-1)
	MinDataPoints   int           `json:"min_data_points"`  // Minimum data points required
	ValidationSplit float64       `json:"validation_split"` // Share of the series held out when backtesting
	Backtest        bool          `json:"backtest"`         // Backtest the chosen method
	Interval        time.Duration `json:"interval"`         // Time interval between data points, inferred when 0

	// MetricID and Weights let the ensemble memoise its member weights
	MetricID string      `json:"-"`
	Weights  WeightStore `json:"-"`
}

// DefaultForecastConfig returns default forecast configuration
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		Horizon:         24,   // Forecast 24 periods ahead
		WindowSize:      7,    // 7-point moving average
		MaxLag:          20,   // period search bound
		AROrder:         2,    // AR(2)
		Differencing:    1,    // first differences
		Confidence:      0.95, // 95% confidence interval
		MinDataPoints:   10,   // Need at least 10 points
		ValidationSplit: 0.2,  // 80/20 backtest split
		Backtest:        true,
	}
}

// Validate checks the configuration ranges.
func (c ForecastConfig) Validate() error {
	switch {
	case c.Horizon <= 0:
		return analytics.NewValidationError(analytics.CodeInvalidParameter,
			"horizon must be positive", map[string]interface{}{"horizon": c.Horizon})
	case c.ValidationSplit < 0 || c.ValidationSplit >= 1:
		return analytics.NewValidationError(analytics.CodeInvalidParameter,
			"validation split must be in [0, 1)", map[string]interface{}{"validation_split": c.ValidationSplit})
	case c.SeasonalPeriod < 0 || c.SeasonalPeriod == 1:
		return analytics.NewValidationError(analytics.CodeInvalidParameter,
			"seasonal period must be 0 (auto) or at least 2", map[string]interface{}{"seasonal_period": c.SeasonalPeriod})
	case c.AROrder < 0 || c.Differencing < 0 || c.WindowSize < 0 || c.MinDataPoints < 0:
		return analytics.NewValidationError(analytics.CodeInvalidParameter,
			"model orders and window sizes must not be negative", nil)
	}
	return nil
}

// Forecaster interface for all forecasting algorithms
type Forecaster interface {
	// Name returns the algorithm name
	Name() Method
	// Forecast generates predictions for future time periods
	Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error)
}

// Registry holds available forecasters. It is populated by init functions and
// read-only afterwards.
var forecasterRegistry = make(map[Method]Forecaster)

// RegisterForecaster adds a forecaster to the registry
func RegisterForecaster(name Method, forecaster Forecaster) {
	forecasterRegistry[name] = forecaster
}

// GetForecaster returns a forecaster by name
func GetForecaster(name Method) (Forecaster, error) {
	if forecaster, ok := forecasterRegistry[name]; ok {
		return forecaster, nil
	}
	return nil, analytics.NewValidationError(analytics.CodeInvalidParameter,
		fmt.Sprintf("unknown forecaster: %s", name),
		map[string]interface{}{"method": string(name)})
}

// ListForecasters returns the sorted list of available forecaster names
func ListForecasters() []Method {
	names := make([]Method, 0, len(forecasterRegistry))
	for name := range forecasterRegistry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Forecast validates the input, runs the named forecaster and, when configured,
// backtests it. Series shorter than MinDataPoints yield an insufficient_data result.
func Forecast(method Method, data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	forecaster, err := GetForecaster(method)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := analytics.ValidatePoints(data); err != nil {
		return nil, err
	}

	minPoints := config.MinDataPoints
	if minPoints < 3 {
		minPoints = 3
	}
	if len(data) < minPoints {
		return &ForecastResult{
			Status:      analytics.StatusInsufficientData,
			Reason:      analytics.ReasonInsufficientData,
			Method:      method,
			Predictions: []ForecastPoint{},
		}, nil
	}

	result, err := forecaster.Forecast(data, config)
	if err != nil {
		return nil, err
	}

	if config.Backtest && result.Method != MethodEnsemble {
		if bt, err := Backtest(forecasterFor(result.Method), data, config); err == nil {
			result.Backtest = bt
			result.Accuracy = bt.Accuracy
		}
	}
	return result, nil
}

// forecasterFor returns the registered forecaster that produced a result.
func forecasterFor(method Method) Forecaster {
	f, err := GetForecaster(method)
	if err != nil {
		return NewSMAForecaster()
	}
	return f
}

// CalculateMAPE calculates Mean Absolute Percentage Error in percent, skipping zero
// actual values
func CalculateMAPE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] != 0 {
			sum += math.Abs((actual[i] - predicted[i]) / actual[i])
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return (sum / float64(count)) * 100
}

// CalculateMAE calculates Mean Absolute Error
func CalculateMAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// calculatePredictionInterval calculates prediction interval bounds
func calculatePredictionInterval(value, stdError, confidence float64) (lower, upper float64) {
	margin := zScore(confidence) * stdError
	return value - margin, value + margin
}

// zScore for confidence level (approximate)
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.576
	case confidence >= 0.95:
		return 1.96
	case confidence >= 0.90:
		return 1.645
	default:
		return 1.96
	}
}

// inferInterval returns config.Interval, or the spacing of the first two points.
func inferInterval(data []DataPoint, config ForecastConfig) time.Duration {
	if config.Interval > 0 {
		return config.Interval
	}
	if len(data) >= 2 {
		return data[1].Time.Sub(data[0].Time)
	}
	return time.Hour
}

// newModelInfo fills the in-sample error metrics of a fit
func newModelInfo(method Method, params map[string]interface{}, actual, fitted []float64) ModelInfo {
	return ModelInfo{
		Algorithm:  string(method),
		Parameters: params,
		MAPE:       CalculateMAPE(actual, fitted),
		MAE:        CalculateMAE(actual, fitted),
		RMSE:       CalculateRMSE(actual, fitted),
		DataPoints: len(actual),
	}
}

func residualsOf(actual, fitted []float64) []float64 {
	residuals := make([]float64, len(actual))
	for i := range actual {
		residuals[i] = actual[i] - fitted[i]
	}
	return residuals
}

// fitConfidence is the in-sample goodness of fit clamped to [0, 1]
func fitConfidence(actual, fitted []float64) float64 {
	return stats.Clamp01(stats.GoodnessOfFit(actual, fitted))
}
