package forecast

import (
	"errors"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// DefaultMemberWeight is used for a member whose accuracy cannot be backtested.
const DefaultMemberWeight = 0.5

// ensembleMembers are the candidate models of an ensemble. The AR model reports on
// the differenced scale and cannot be averaged with the others.
var ensembleMembers = []Method{MethodLinear, MethodExponential, MethodSeasonal, MethodSMA}

// EnsembleForecaster runs every applicable member and averages their forecasts,
// weighted by backtested accuracy.
type EnsembleForecaster struct{}

// NewEnsembleForecaster creates a new ensemble forecaster
func NewEnsembleForecaster() *EnsembleForecaster {
	return &EnsembleForecaster{}
}

func init() {
	RegisterForecaster(MethodEnsemble, NewEnsembleForecaster())
}

// Name returns the algorithm name
func (f *EnsembleForecaster) Name() Method {
	return MethodEnsemble
}

type member struct {
	method Method
	result *ForecastResult
	weight float64
	acc    float64
}

// Forecast combines values, intervals and confidence of the members by weighted
// average. Weights come from config.Weights when present; otherwise each member is
// backtested and weighted by its accuracy (DefaultMemberWeight when it cannot be).
// A member found in the store is not backtested again. If every weight is zero the
// members count equally.
func (f *EnsembleForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	var cached MemberWeights
	if config.Weights != nil {
		cached, _ = config.Weights.LoadWeights(config.MetricID, config)
	}

	var members []member
	refitted := false
	for _, method := range ensembleMembers {
		forecaster, err := GetForecaster(method)
		if err != nil {
			continue
		}
		result, err := forecaster.Forecast(data, config)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			return nil, err
		}

		m := member{method: method, result: result, weight: DefaultMemberWeight}
		if w, ok := cached[method]; ok {
			m.weight = w.Weight
			m.acc = w.Accuracy
		} else {
			refitted = true
			if bt, err := Backtest(forecaster, data, config); err == nil {
				m.acc = bt.Accuracy
				m.weight = bt.Accuracy
			}
		}
		members = append(members, m)
	}
	if len(members) == 0 {
		return nil, ErrNotApplicable
	}

	if config.Weights != nil && refitted {
		weights := make(MemberWeights, len(members))
		for _, m := range members {
			weights[m.method] = MemberWeight{Weight: m.weight, Accuracy: m.acc}
		}
		config.Weights.SaveWeights(config.MetricID, config, weights)
	}

	total := 0.0
	for _, m := range members {
		total += m.weight
	}
	if total <= 0 {
		for i := range members {
			members[i].weight = 1
		}
		total = float64(len(members))
	}

	predictions := make([]ForecastPoint, config.Horizon)
	for h := range predictions {
		predictions[h].Time = members[0].result.Predictions[h].Time
	}
	fitted := make([]float64, len(members[0].result.Fitted))

	result := &ForecastResult{
		Status:  analytics.StatusOK,
		Method:  MethodEnsemble,
		Members: make([]EnsembleMember, 0, len(members)),
	}
	params := make(map[string]interface{}, len(members))
	for _, m := range members {
		w := m.weight / total
		for h := range predictions {
			p := m.result.Predictions[h]
			predictions[h].Value += w * p.Value
			predictions[h].LowerBound += w * p.LowerBound
			predictions[h].UpperBound += w * p.UpperBound
		}
		for i := range fitted {
			fitted[i] += w * m.result.Fitted[i]
		}
		result.Confidence += w * m.result.Confidence
		result.Accuracy += w * m.acc
		result.Members = append(result.Members, EnsembleMember{
			Method:     m.method,
			Weight:     w,
			Confidence: m.result.Confidence,
			Accuracy:   m.acc,
		})
		params[string(m.method)] = w
	}

	actual := analytics.TimeSeriesData(data).Values()
	result.Predictions = predictions
	result.Fitted = fitted
	result.Residuals = residualsOf(actual, fitted)
	result.Confidence = stats.Clamp01(result.Confidence)
	result.Accuracy = stats.Clamp01(result.Accuracy)
	result.ModelInfo = newModelInfo(MethodEnsemble, params, actual, fitted)
	return result, nil
}
