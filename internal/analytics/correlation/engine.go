package correlation

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// DefaultClusterThreshold is the Pearson strength above which two metrics are linked.
const DefaultClusterThreshold = 0.6

// Config holds configuration for correlation analysis
type Config struct {
	// Methods to compute, all when empty
	Methods []Method

	// MaxLag bounds the lagged sweep, min(10, n/3) when 0
	MaxLag int

	// Window for rolling correlation, min(20, n/2) when 0
	Window int

	// ClusterThreshold is the Pearson strength needed for a cluster edge
	ClusterThreshold float64

	// Workers bounds how many metric pairs are evaluated concurrently, 1 when 0
	Workers int
}

// DefaultConfig returns default correlation configuration
func DefaultConfig() Config {
	return Config{
		Methods:          AllMethods,
		ClusterThreshold: DefaultClusterThreshold,
		Workers:          1,
	}
}

// Analysis is the outcome of a multi-metric correlation run
type Analysis struct {
	Status   analytics.Status `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	Metrics  []string         `json:"metrics"`
	Matrix   [][]float64      `json:"matrix,omitempty"` // Pearson, in Metrics order
	Results  []Result         `json:"results"`
	Clusters []Cluster        `json:"clusters"`
}

// Engine computes pairwise correlations. It is safe for concurrent use.
type Engine struct {
	config Config
}

// NewEngine creates a new correlation engine
func NewEngine(config Config) *Engine {
	if len(config.Methods) == 0 {
		config.Methods = AllMethods
	}
	if config.ClusterThreshold <= 0 {
		config.ClusterThreshold = DefaultClusterThreshold
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Engine{config: config}
}

// MaxLagFor returns the configured max lag, or min(10, n/3).
func (e *Engine) MaxLagFor(n int) int {
	if e.config.MaxLag > 0 {
		return e.config.MaxLag
	}
	return min(10, n/3)
}

// WindowFor returns the configured rolling window, or min(20, n/2).
func (e *Engine) WindowFor(n int) int {
	if e.config.Window > 0 {
		return e.config.Window
	}
	return min(20, n/2)
}

type pair struct {
	i, j int
}

// Analyze correlates every unordered pair of series. All series must validate and
// share one length. Results are ordered by pair (input order) then method, whatever
// the worker count.
func (e *Engine) Analyze(series []analytics.MetricSeries) (Analysis, error) {
	if err := analytics.ValidateAligned(series); err != nil {
		return Analysis{}, err
	}
	for _, m := range e.config.Methods {
		if !knownMethod(m) {
			return Analysis{}, analytics.NewValidationError(analytics.CodeInvalidParameter,
				fmt.Sprintf("unknown correlation method: %s", m),
				map[string]interface{}{"method": string(m)})
		}
	}

	metrics := make([]string, len(series))
	values := make([][]float64, len(series))
	for i, s := range series {
		metrics[i] = s.MetricID
		values[i] = s.Values()
	}

	analysis := Analysis{
		Metrics:  metrics,
		Results:  []Result{},
		Clusters: []Cluster{},
	}
	if len(series) < 2 || series[0].Len() < 2 {
		analysis.Status = analytics.StatusInsufficientData
		analysis.Reason = analytics.ReasonInsufficientData
		return analysis, nil
	}
	analysis.Status = analytics.StatusOK

	var pairs []pair
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	perPair := make([][]Result, len(pairs))
	var g errgroup.Group
	g.SetLimit(e.config.Workers)
	for k, p := range pairs {
		g.Go(func() error {
			perPair[k] = e.correlatePair(metrics, values, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, results := range perPair {
		analysis.Results = append(analysis.Results, results...)
	}

	analysis.Matrix = PearsonMatrix(values)
	analysis.Clusters = FindClusters(metrics, analysis.Matrix, e.config.ClusterThreshold)
	return analysis, nil
}

func (e *Engine) correlatePair(metrics []string, values [][]float64, p pair) []Result {
	a, b := values[p.i], values[p.j]
	idA, idB := metrics[p.i], metrics[p.j]
	n := len(a)

	results := make([]Result, 0, len(e.config.Methods))
	for _, method := range e.config.Methods {
		switch method {
		case MethodPearson:
			results = append(results, newResult(idA, idB, method, Pearson(a, b), n))

		case MethodSpearman:
			results = append(results, newResult(idA, idB, method, Spearman(a, b), n))

		case MethodKendall:
			results = append(results, newResult(idA, idB, method, Kendall(a, b), n))

		case MethodPartial:
			if len(metrics) < 3 {
				continue
			}
			controlled := make([]string, 0, len(metrics)-2)
			for k, id := range metrics {
				if k != p.i && k != p.j {
					controlled = append(controlled, id)
				}
			}
			r := Pearson(a, b) * PartialFactor(len(controlled))
			res := newResult(idA, idB, method, r, n)
			res.Extra = &Extra{ControlledFor: controlled}
			results = append(results, res)

		case MethodLagged:
			lags, best := Lagged(a, b, e.MaxLagFor(n))
			if len(lags) == 0 {
				continue
			}
			bestLag := best.Lag
			res := newResult(idA, idB, method, best.Correlation, n-best.Lag)
			res.Extra = &Extra{BestLag: &bestLag, Lags: lags}
			results = append(results, res)

		case MethodRolling:
			window := e.WindowFor(n)
			series, mean, sd := Rolling(a, b, window)
			if len(series) == 0 {
				continue
			}
			res := newResult(idA, idB, method, mean, window)
			res.Extra = &Extra{
				Window:        window,
				Rolling:       series,
				RollingMean:   mean,
				RollingStdDev: sd,
			}
			results = append(results, res)

		case MethodCross:
			lags, best := Cross(a, b)
			if len(lags) == 0 {
				continue
			}
			bestLag := best.Lag
			overlap := n - abs(best.Lag)
			res := newResult(idA, idB, method, best.Correlation, overlap)
			res.Extra = &Extra{BestLag: &bestLag, CrossLags: lags}
			results = append(results, res)
		}
	}
	return results
}

// PearsonMatrix returns the symmetric Pearson matrix with a unit diagonal.
func PearsonMatrix(values [][]float64) [][]float64 {
	m := make([][]float64, len(values))
	for i := range m {
		m[i] = make([]float64, len(values))
		m[i][i] = 1
	}
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			r := stats.Pearson(values[i], values[j])
			m[i][j] = r
			m[j][i] = r
		}
	}
	return m
}

func knownMethod(m Method) bool {
	for _, known := range AllMethods {
		if m == known {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
