// Package stats holds the numeric primitives shared by every analyzer: moments,
// least-squares fits, ranks, percentiles, autocorrelation and the normal-CDF
// significance test.
//
// Degenerate input (empty slices, zero variance, too few points) resolves to neutral
// values: slope 0, correlation 0, R² 0, p-value 1. No function returns NaN or Inf.
package stats

import (
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Variance returns the sample (n-1) variance, 0 for fewer than two values. A variance
// too large for float64 saturates at math.MaxFloat64.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	scaled, factor := normalize(values)
	return finiteOr(variance(scaled)*factor*factor, math.MaxFloat64)
}

// StdDev returns the sample standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	scaled, factor := normalize(values)
	return math.Sqrt(variance(scaled)) * factor
}

// PopulationVariance returns the population (n) variance, 0 for empty input.
func PopulationVariance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	return Variance(values) * float64(n-1) / float64(n)
}

// PopulationStdDev returns the population standard deviation.
func PopulationStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	return StdDev(values) * math.Sqrt(float64(n-1)/float64(n))
}

func variance(values []float64) float64 {
	v := stat.Variance(values, nil)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// MeanStdDev returns the mean and population standard deviation in one call.
func MeanStdDev(values []float64) (mean, stdDev float64) {
	return Mean(values), PopulationStdDev(values)
}

// Median returns the median, 0 for empty input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := mstats.Median(values)
	if err != nil {
		return 0
	}
	return m
}

// MedianAbsoluteDeviation returns the median of absolute deviations from the median.
func MedianAbsoluteDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := Median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	return Median(deviations)
}

// MinMax returns the smallest and largest value, zeros for empty input.
func MinMax(values []float64) (minV, maxV float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minV, maxV = values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return minV, maxV
}

// Skewness returns the sample skewness, 0 when undefined.
func Skewness(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	scaled, _ := normalize(values)
	if variance(scaled) == 0 {
		return 0
	}
	return finiteOr(stat.Skew(scaled, nil), 0)
}

// Kurtosis returns the sample excess kurtosis, 0 when undefined.
func Kurtosis(values []float64) float64 {
	if len(values) < 4 {
		return 0
	}
	scaled, _ := normalize(values)
	if variance(scaled) == 0 {
		return 0
	}
	return finiteOr(stat.ExKurtosis(scaled, nil), 0)
}

// Percentile returns the p-th percentile (0-100) of already sorted data using linear
// interpolation between the order statistics at index p/100·(n-1).
func Percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	if len(sortedData) == 1 {
		return sortedData[0]
	}
	if p <= 0 {
		return sortedData[0]
	}

	index := (p / 100) * float64(len(sortedData)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sortedData) {
		return sortedData[len(sortedData)-1]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}

// PercentileOf sorts a copy of values and returns its p-th percentile.
func PercentileOf(values []float64, p float64) float64 {
	return Percentile(Sorted(values), p)
}

// Quartiles returns Q1, Q3 and the interquartile range.
func Quartiles(values []float64) (q1, q3, iqr float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := Sorted(values)
	q1 = Percentile(sorted, 25)
	q3 = Percentile(sorted, 75)
	return q1, q3, q3 - q1
}

// Sorted returns a sorted copy of values.
func Sorted(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// Rank returns 1-based ranks. Tied values share the average of the positions they
// occupy in sorted order, so [10, 20, 20, 30] ranks as [1, 2.5, 2.5, 4].
func Rank(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// Pearson returns the sample correlation of x and y, 0 for mismatched lengths,
// fewer than two points or zero variance.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	xs, _ := normalize(x)
	ys, _ := normalize(y)
	if variance(xs) == 0 || variance(ys) == 0 {
		return 0
	}
	return Clamp(finiteOr(stat.Correlation(xs, ys, nil), 0), -1, 1)
}

// Autocorrelation returns the lag-k autocorrelation using the standard estimator
// Σ(x_t-μ)(x_{t-k}-μ) / Σ(x_t-μ)².
func Autocorrelation(values []float64, lag int) float64 {
	n := len(values)
	if n == 0 || lag >= n {
		return 0
	}
	scaled, _ := normalize(values)
	if lag <= 0 {
		if variance(scaled) == 0 {
			return 0
		}
		return 1
	}

	mu := Mean(scaled)
	denominator := 0.0
	for _, v := range scaled {
		d := v - mu
		denominator += d * d
	}
	if denominator == 0 {
		return 0
	}

	numerator := 0.0
	for t := lag; t < n; t++ {
		numerator += (scaled[t] - mu) * (scaled[t-lag] - mu)
	}
	return Clamp(finiteOr(numerator/denominator, 0), -1, 1)
}

// ACF returns autocorrelations for lags 0..maxLag.
func ACF(values []float64, maxLag int) []float64 {
	if maxLag < 0 {
		return nil
	}
	acf := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		acf[lag] = Autocorrelation(values, lag)
	}
	return acf
}

// Difference applies first differencing d times.
func Difference(values []float64, d int) []float64 {
	result := values
	for i := 0; i < d && len(result) > 0; i++ {
		diffed := make([]float64, len(result)-1)
		for j := 1; j < len(result); j++ {
			diffed[j-1] = result[j] - result[j-1]
		}
		result = diffed
	}
	return result
}

// RelativeChanges returns (x_t - x_{t-1}) / |x_{t-1}|, skipping zero denominators.
func RelativeChanges(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	changes := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		changes = append(changes, (values[i]-values[i-1])/math.Abs(values[i-1]))
	}
	return changes
}

// Volatility is the sample standard deviation of period-over-period relative change.
func Volatility(values []float64) float64 {
	return StdDev(RelativeChanges(values))
}

// Indices returns 0..n-1 as float64.
func Indices(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1], mapping NaN to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(v, 0, 1)
}

// SafeDiv returns num/den, or fallback when den is zero or the result is not finite.
func SafeDiv(num, den, fallback float64) float64 {
	if den == 0 {
		return fallback
	}
	return finiteOr(num/den, fallback)
}

// normalizeAbove bounds the magnitudes squared without a rescale; 1e100² summed over
// any realistic series stays finite.
const normalizeAbove = 1e100

// normalize divides values by their largest magnitude when that magnitude is so large
// or so small that squaring would overflow or underflow. It returns the divisor, 1 when
// values are returned as they are.
func normalize(values []float64) ([]float64, float64) {
	peak := 0.0
	for _, v := range values {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 || math.IsInf(peak, 0) || math.IsNaN(peak) ||
		(peak <= normalizeAbove && peak >= 1/normalizeAbove) {
		return values, 1
	}
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = v / peak
	}
	return scaled, peak
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
