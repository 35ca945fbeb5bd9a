package forecast

import (
	"errors"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/seasonality"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
	"github.com/soltixdb/trendcore/internal/analytics/trend"
)

// AutoForecaster automatically selects the best forecasting algorithm
type AutoForecaster struct{}

// NewAutoForecaster creates a new Auto forecaster
func NewAutoForecaster() *AutoForecaster {
	return &AutoForecaster{}
}

func init() {
	RegisterForecaster(MethodAuto, NewAutoForecaster())
}

// Name returns the algorithm name
func (f *AutoForecaster) Name() Method {
	return MethodAuto
}

// Selection records the series characteristics behind a method choice
type Selection struct {
	Method           Method  `json:"method"`
	SeasonalStrength float64 `json:"seasonal_strength"`
	PeriodDetected   bool    `json:"period_detected"`
	Period           int     `json:"period"`
	TrendRSquared    float64 `json:"trend_r_squared"`
	Slope            float64 `json:"slope"`
	Volatility       float64 `json:"volatility"`
}

// Select applies the selection heuristic:
//
//	seasonal     if a period is detected and seasonal strength > 0.3
//	exponential  else if trend R² > 0.8 and slope > 0.1
//	linear       else if trend R² > 0.6
//	arima        else if return volatility > 0.2
//	ensemble     otherwise
func Select(values []float64, config ForecastConfig) Selection {
	s := Selection{}

	season := seasonality.AnalyzeValues(values, config.SeasonalPeriod, config.MaxLag)
	s.Period = season.Period
	s.PeriodDetected = season.PeriodDetected
	if season.Status == analytics.StatusOK {
		s.SeasonalStrength = season.Strength
	}

	tr := trend.DetectValues(values, trend.DefaultConfig())
	s.TrendRSquared = tr.RSquared
	s.Slope = tr.Slope
	s.Volatility = stats.Volatility(values)

	switch {
	case s.PeriodDetected && s.SeasonalStrength > 0.3:
		s.Method = MethodSeasonal
	case s.TrendRSquared > 0.8 && s.Slope > 0.1:
		s.Method = MethodExponential
	case s.TrendRSquared > 0.6:
		s.Method = MethodLinear
	case s.Volatility > 0.2:
		s.Method = MethodARIMA
	default:
		s.Method = MethodEnsemble
	}
	return s
}

// Forecast runs the selected method, falling back to linear for growth the
// exponential model cannot fit and to SMA for anything else that does not apply.
func (f *AutoForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	selection := Select(analytics.TimeSeriesData(data).Values(), config)

	chain := []Method{selection.Method}
	if selection.Method == MethodExponential {
		chain = append(chain, MethodLinear)
	}
	chain = append(chain, MethodSMA)

	for _, method := range chain {
		forecaster, err := GetForecaster(method)
		if err != nil {
			return nil, err
		}
		result, err := forecaster.Forecast(data, config)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result.ModelInfo.Algorithm = string(method) + " (auto-selected)"
		if result.ModelInfo.Parameters == nil {
			result.ModelInfo.Parameters = make(map[string]interface{})
		}
		result.ModelInfo.Parameters["selection"] = selection
		return result, nil
	}
	return nil, ErrNotApplicable
}
