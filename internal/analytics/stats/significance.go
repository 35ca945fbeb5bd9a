package stats

import "math"

// Abramowitz–Stegun 7.1.26 coefficients for erf.
const (
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
	erfP  = 0.3275911
)

// Erf approximates the error function (max absolute error 1.5e-7).
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
		x = -x
	}
	t := 1 / (1 + erfP*x)
	y := 1 - (((((erfA5*t+erfA4)*t)+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// NormalCDF approximates the standard normal CDF via Erf.
func NormalCDF(x float64) float64 {
	if math.IsNaN(x) {
		return 0.5
	}
	if math.IsInf(x, 1) {
		return 1
	}
	if math.IsInf(x, -1) {
		return 0
	}
	return 0.5 * (1 + Erf(x/math.Sqrt2))
}

// TwoSidedPValue returns 2·(1 - Φ(|t|)) in [0, 1]. NaN maps to 1.
func TwoSidedPValue(t float64) float64 {
	if math.IsNaN(t) {
		return 1
	}
	if math.IsInf(t, 0) {
		return 0
	}
	return Clamp01(2 * (1 - NormalCDF(math.Abs(t))))
}

// CorrelationPValue tests r against zero with t = r·sqrt((n-2)/(1-r²)).
func CorrelationPValue(r float64, n int) float64 {
	if n < 3 || math.IsNaN(r) {
		return 1
	}
	if r == 0 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	return TwoSidedPValue(r * math.Sqrt(float64(n-2)/(1-r*r)))
}

// SlopePValue tests a regression slope with t = slope / sqrt((1-R²)/(n-2)).
func SlopePValue(slope, rSquared float64, n int) float64 {
	if n < 3 || slope == 0 {
		return 1
	}
	denominator := (1 - rSquared) / float64(n-2)
	if denominator <= 0 {
		return 0
	}
	return TwoSidedPValue(slope / math.Sqrt(denominator))
}

// Significance buckets a p-value.
type Significance string

const (
	HighlySignificant     Significance = "highly_significant"
	VerySignificant       Significance = "very_significant"
	Significant           Significance = "significant"
	MarginallySignificant Significance = "marginally_significant"
	NotSignificant        Significance = "not_significant"
)

// SignificanceOf maps p<0.001/0.01/0.05/0.1 to the five labels.
func SignificanceOf(p float64) Significance {
	switch {
	case p < 0.001:
		return HighlySignificant
	case p < 0.01:
		return VerySignificant
	case p < 0.05:
		return Significant
	case p < 0.1:
		return MarginallySignificant
	default:
		return NotSignificant
	}
}
