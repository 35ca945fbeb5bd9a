package forecast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltixdb/trendcore/internal/analytics"
)

type fakeWeightStore struct {
	mu      sync.Mutex
	weights map[string]MemberWeights
	loads   int
	saves   int
}

func newFakeWeightStore() *fakeWeightStore {
	return &fakeWeightStore{weights: make(map[string]MemberWeights)}
}

func (s *fakeWeightStore) LoadWeights(metricID string, _ ForecastConfig) (MemberWeights, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	w, ok := s.weights[metricID]
	return w, ok
}

func (s *fakeWeightStore) SaveWeights(metricID string, _ ForecastConfig, weights MemberWeights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.weights[metricID] = weights
}

func TestEnsembleForecaster_CombinesMembers(t *testing.T) {
	data := generateSeasonalTestData(56, 7)
	config := DefaultForecastConfig()
	config.Horizon = 7

	result, err := NewEnsembleForecaster().Forecast(data, config)
	require.NoError(t, err)

	assert.Equal(t, MethodEnsemble, result.Method)
	assert.Len(t, result.Predictions, 7)
	assert.Len(t, result.Fitted, len(data))
	require.Len(t, result.Members, 4)

	total := 0.0
	for _, m := range result.Members {
		assert.NotEqual(t, MethodARIMA, m.Method)
		total += m.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.GreaterOrEqual(t, result.Accuracy, 0.0)
	assert.LessOrEqual(t, result.Accuracy, 1.0)
	assertIntervalsContainValues(t, result)
}

func TestEnsembleForecaster_SkipsInapplicableMembers(t *testing.T) {
	// non-positive values and no period leave linear and sma
	data := generateLinearData(30, 1, -5)
	config := DefaultForecastConfig()
	config.Horizon = 3

	result, err := NewEnsembleForecaster().Forecast(data, config)
	require.NoError(t, err)

	methods := make([]Method, 0, len(result.Members))
	for _, m := range result.Members {
		methods = append(methods, m.Method)
	}
	assert.Equal(t, []Method{MethodLinear, MethodSMA}, methods)
}

func TestEnsembleForecaster_Deterministic(t *testing.T) {
	data := generateSeasonalTestData(48, 6)
	config := DefaultForecastConfig()
	config.Horizon = 5

	first, err := Forecast(MethodEnsemble, data, config)
	require.NoError(t, err)
	second, err := Forecast(MethodEnsemble, data, config)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// countingForecaster counts Forecast calls of the wrapped forecaster
type countingForecaster struct {
	Forecaster
	calls int
}

func (c *countingForecaster) Forecast(data []DataPoint, config ForecastConfig) (*ForecastResult, error) {
	c.calls++
	return c.Forecaster.Forecast(data, config)
}

// countCalls swaps the registered forecaster for a counting wrapper until the test ends
func countCalls(t *testing.T, method Method) *countingForecaster {
	t.Helper()
	original, err := GetForecaster(method)
	require.NoError(t, err)
	counter := &countingForecaster{Forecaster: original}
	RegisterForecaster(method, counter)
	t.Cleanup(func() { RegisterForecaster(method, original) })
	return counter
}

func TestEnsembleForecaster_WeightStore(t *testing.T) {
	store := newFakeWeightStore()
	data := generateSeasonalTestData(56, 7)
	linear := countCalls(t, MethodLinear)

	config := DefaultForecastConfig()
	config.Horizon = 4
	config.MetricID = "cpu"
	config.Weights = store

	first, err := Forecast(MethodEnsemble, data, config)
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
	require.Contains(t, store.weights, "cpu")
	// one fit plus one backtest fit
	assert.Equal(t, 2, linear.calls)
	for _, m := range first.Members {
		assert.Equal(t, m.Accuracy, store.weights["cpu"][m.Method].Accuracy)
	}

	// cached weights win and skip the backtests
	store.weights["cpu"] = MemberWeights{
		MethodLinear:      {Weight: 0, Accuracy: 0.1},
		MethodExponential: {Weight: 0, Accuracy: 0.2},
		MethodSeasonal:    {Weight: 1, Accuracy: 0.9},
		MethodSMA:         {Weight: 0, Accuracy: 0.3},
	}
	linear.calls = 0
	result, err := Forecast(MethodEnsemble, data, config)
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, linear.calls, "a cache hit does not refit")

	for _, m := range result.Members {
		if m.Method == MethodSeasonal {
			assert.InDelta(t, 1.0, m.Weight, 1e-12)
			assert.Equal(t, 0.9, m.Accuracy)
		} else {
			assert.Zero(t, m.Weight)
		}
	}

	seasonal, err := NewSeasonalForecaster().Forecast(data, config)
	require.NoError(t, err)
	assert.InDeltaSlice(t, seasonal.Values(), result.Values(), 1e-9)
}

func TestEnsembleForecaster_PartialCacheRefitsMissingMembers(t *testing.T) {
	store := newFakeWeightStore()
	data := generateSeasonalTestData(56, 7)
	linear := countCalls(t, MethodLinear)

	config := DefaultForecastConfig()
	config.Horizon = 4
	config.MetricID = "cpu"
	config.Weights = store
	store.weights["cpu"] = MemberWeights{MethodSeasonal: {Weight: 1, Accuracy: 0.9}}

	_, err := Forecast(MethodEnsemble, data, config)
	require.NoError(t, err)
	assert.Equal(t, 2, linear.calls)
	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.weights["cpu"], 4)
	assert.Equal(t, MemberWeight{Weight: 1, Accuracy: 0.9}, store.weights["cpu"][MethodSeasonal])
}

func TestBacktest(t *testing.T) {
	data := generateLinearData(50, 2, 10)

	bt, err := Backtest(NewLinearRegressionForecaster(), data, DefaultForecastConfig())
	require.NoError(t, err)
	assert.Equal(t, 40, bt.TrainSize)
	assert.Equal(t, 10, bt.TestSize)
	assert.InDelta(t, 0.0, bt.MAPE, 1e-9)
	assert.InDelta(t, 1.0, bt.RSquared, 1e-9)
	assert.InDelta(t, 1.0, bt.Accuracy, 1e-9)

	// flat forecast of a rising series scores poorly
	bt, err = Backtest(NewSMAForecaster(), data, DefaultForecastConfig())
	require.NoError(t, err)
	assert.Greater(t, bt.MAPE, 0.0)
	assert.Less(t, bt.Accuracy, 0.5)
}

func TestBacktest_SplitDefaultsAndLimits(t *testing.T) {
	config := DefaultForecastConfig()
	config.ValidationSplit = 0

	bt, err := Backtest(NewLinearRegressionForecaster(), generateLinearData(10, 1, 1), config)
	require.NoError(t, err)
	assert.Equal(t, 2, bt.TestSize)

	_, err = Backtest(NewLinearRegressionForecaster(), generateLinearData(3, 1, 1), config)
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestBacktest_DifferencedModel(t *testing.T) {
	data := generateLinearData(50, 3, 100)

	bt, err := Backtest(NewARIMAForecaster(), data, DefaultForecastConfig())
	require.NoError(t, err)
	// differences are all 3 while the AR model forecasts 0
	assert.InDelta(t, 1.0, bt.MAPE, 1e-9)
	assert.Zero(t, bt.Accuracy)
}

func TestForecastResult_ValuesAndIntervals(t *testing.T) {
	r := &ForecastResult{
		Status: analytics.StatusOK,
		Predictions: []ForecastPoint{
			{Value: 1, LowerBound: 0, UpperBound: 2},
			{Value: 3, LowerBound: 1, UpperBound: 5},
		},
	}
	assert.Equal(t, []float64{1, 3}, r.Values())
	assert.Equal(t, []Interval{{Lower: 0, Upper: 2}, {Lower: 1, Upper: 5}}, r.Intervals())
}
