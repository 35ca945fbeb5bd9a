// Package correlation measures how pairs of aligned metric series move together and
// groups strongly correlated metrics into clusters.
package correlation

import (
	"math"

	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// Method names a correlation measure
type Method string

const (
	MethodPearson  Method = "pearson"
	MethodSpearman Method = "spearman"
	MethodKendall  Method = "kendall"
	MethodPartial  Method = "partial"
	MethodLagged   Method = "lagged"
	MethodRolling  Method = "rolling"
	MethodCross    Method = "cross"
)

// AllMethods lists every method in reporting order.
var AllMethods = []Method{
	MethodPearson, MethodSpearman, MethodKendall, MethodPartial,
	MethodLagged, MethodRolling, MethodCross,
}

// Direction of a correlation
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// LagCorrelation is the correlation at one lag (B shifted forward by Lag).
type LagCorrelation struct {
	Lag         int     `json:"lag"`
	Correlation float64 `json:"correlation"`
}

// Extra carries method specific detail.
type Extra struct {
	ControlledFor []string         `json:"controlled_for,omitempty"`
	BestLag       *int             `json:"best_lag,omitempty"`
	Lags          []LagCorrelation `json:"lags,omitempty"`
	Window        int              `json:"window,omitempty"`
	Rolling       []float64        `json:"rolling,omitempty"`
	RollingMean   float64          `json:"rolling_mean,omitempty"`
	RollingStdDev float64          `json:"rolling_std_dev,omitempty"`
	CrossLags     []LagCorrelation `json:"cross_lags,omitempty"`
}

// Result is one correlation between two metrics
type Result struct {
	MetricA      string             `json:"metric_a"`
	MetricB      string             `json:"metric_b"`
	Method       Method             `json:"method"`
	Correlation  float64            `json:"correlation"`
	Strength     float64            `json:"strength"`
	Direction    Direction          `json:"direction"`
	Significance stats.Significance `json:"significance"`
	PValue       float64            `json:"p_value"`
	N            int                `json:"n"`
	Extra        *Extra             `json:"extra,omitempty"`
}

func newResult(a, b string, method Method, r float64, n int) Result {
	r = stats.Clamp(r, -1, 1)
	p := stats.CorrelationPValue(r, n)
	direction := DirectionPositive
	if r < 0 {
		direction = DirectionNegative
	}
	return Result{
		MetricA:      a,
		MetricB:      b,
		Method:       method,
		Correlation:  r,
		Strength:     math.Abs(r),
		Direction:    direction,
		Significance: stats.SignificanceOf(p),
		PValue:       p,
		N:            n,
	}
}

// Pearson returns the sample correlation of a and b.
func Pearson(a, b []float64) float64 {
	return stats.Pearson(a, b)
}

// Spearman returns the Pearson correlation of the average ranks of a and b.
func Spearman(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	return stats.Pearson(stats.Rank(a), stats.Rank(b))
}

// Kendall returns τ = (concordant − discordant)/(concordant + discordant) over all
// pairs of observations. Pairs tied in either series count as neither.
func Kendall(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return 0
	}
	concordant, discordant := 0, 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			s := (a[j] - a[i]) * (b[j] - b[i])
			switch {
			case s > 0:
				concordant++
			case s < 0:
				discordant++
			}
		}
	}
	total := concordant + discordant
	if total == 0 {
		return 0
	}
	return float64(concordant-discordant) / float64(total)
}

// PartialFactor is the shrink applied to r when controlling for k other metrics:
// max(0.1, 1 − 0.1·k). This is an approximation, not a regression-residual partial
// correlation.
func PartialFactor(k int) float64 {
	return math.Max(0.1, 1-0.1*float64(k))
}

// Lagged correlates a[0:n-lag] with b[lag:n] for lag = 0..maxLag and returns every
// lag plus the lag with the largest |r|. Ties keep the smaller lag. Lags leaving
// fewer than three overlapping points are skipped.
func Lagged(a, b []float64, maxLag int) ([]LagCorrelation, LagCorrelation) {
	n := len(a)
	if n != len(b) {
		return nil, LagCorrelation{}
	}
	var lags []LagCorrelation
	best := LagCorrelation{}
	for lag := 0; lag <= maxLag && n-lag >= 3; lag++ {
		r := stats.Pearson(a[:n-lag], b[lag:])
		lags = append(lags, LagCorrelation{Lag: lag, Correlation: r})
		if len(lags) == 1 || math.Abs(r) > math.Abs(best.Correlation) {
			best = LagCorrelation{Lag: lag, Correlation: r}
		}
	}
	return lags, best
}

// Rolling returns the correlation inside every window of the given size, and the
// mean and population standard deviation of that sequence.
func Rolling(a, b []float64, window int) (series []float64, mean, stdDev float64) {
	n := len(a)
	if n != len(b) || window < 2 || window > n {
		return nil, 0, 0
	}
	series = make([]float64, 0, n-window+1)
	for i := 0; i+window <= n; i++ {
		series = append(series, stats.Pearson(a[i:i+window], b[i:i+window]))
	}
	mean, stdDev = stats.MeanStdDev(series)
	return series, mean, stdDev
}

// Cross sweeps lags −n/2..+n/2 of the normalised dot product
// Σ(a_t−μa)(b_{t+lag}−μb) / (overlap·σa·σb), using whole-series population moments.
// Values are not bounded to ±1. It returns every lag and the one with the largest
// magnitude; ties keep the lag closest to −n/2.
func Cross(a, b []float64) ([]LagCorrelation, LagCorrelation) {
	n := len(a)
	if n != len(b) || n < 2 {
		return nil, LagCorrelation{}
	}
	meanA, sdA := stats.MeanStdDev(a)
	meanB, sdB := stats.MeanStdDev(b)

	half := n / 2
	lags := make([]LagCorrelation, 0, 2*half+1)
	var best LagCorrelation
	for lag := -half; lag <= half; lag++ {
		sum := 0.0
		overlap := 0
		for t := 0; t < n; t++ {
			u := t + lag
			if u < 0 || u >= n {
				continue
			}
			sum += (a[t] - meanA) * (b[u] - meanB)
			overlap++
		}
		c := stats.SafeDiv(sum, float64(overlap)*sdA*sdB, 0)
		lags = append(lags, LagCorrelation{Lag: lag, Correlation: c})
		if len(lags) == 1 || math.Abs(c) > math.Abs(best.Correlation) {
			best = LagCorrelation{Lag: lag, Correlation: c}
		}
	}
	return lags, best
}
