package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Fit is an ordinary least squares line y = Intercept + Slope·x.
type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	StdErr    float64 `json:"std_err"` // residual standard error, sqrt(SSE/(n-2))
	MeanX     float64 `json:"mean_x"`
	Sxx       float64 `json:"sxx"` // Σ(x-x̄)²
	N         int     `json:"n"`
}

// Predict evaluates the line at x.
func (f Fit) Predict(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// PredictionStdErr is the standard error of a new observation at x:
// StdErr·sqrt(1 + 1/n + (x-x̄)²/Sxx).
func (f Fit) PredictionStdErr(x float64) float64 {
	if f.N == 0 || f.Sxx == 0 {
		return f.StdErr
	}
	d := x - f.MeanX
	return f.StdErr * math.Sqrt(1+1/float64(f.N)+d*d/f.Sxx)
}

// LinearRegression fits y on x by ordinary least squares. With fewer than two points
// or no spread in x it returns a flat line through the mean of y.
func LinearRegression(x, y []float64) Fit {
	scaled, factor := normalize(y)
	fit := linearRegression(x, scaled)
	fit.Slope *= factor
	fit.Intercept *= factor
	fit.StdErr *= factor
	return fit
}

func linearRegression(x, y []float64) Fit {
	n := len(x)
	if n != len(y) || n < 2 {
		return Fit{Intercept: Mean(y), N: len(y)}
	}

	meanX := Mean(x)
	sxx := 0.0
	for _, v := range x {
		d := v - meanX
		sxx += d * d
	}
	if sxx == 0 {
		return Fit{Intercept: Mean(y), MeanX: meanX, N: n}
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	alpha, beta = finiteOr(alpha, Mean(y)), finiteOr(beta, 0)

	fit := Fit{
		Slope:     beta,
		Intercept: alpha,
		MeanX:     meanX,
		Sxx:       sxx,
		N:         n,
	}

	meanY := Mean(y)
	var ssTot, ssRes float64
	for i := range x {
		r := y[i] - fit.Predict(x[i])
		ssRes += r * r
		d := y[i] - meanY
		ssTot += d * d
	}
	if ssTot > 0 {
		fit.RSquared = Clamp01(1 - ssRes/ssTot)
	}
	if n > 2 {
		fit.StdErr = math.Sqrt(ssRes / float64(n-2))
	}
	return fit
}

// PolyFit is a least squares polynomial; Coefficients[k] multiplies x^k.
type PolyFit struct {
	Coefficients []float64 `json:"coefficients"`
	RSquared     float64   `json:"r_squared"`
	N            int       `json:"n"`
}

// Predict evaluates the polynomial at x.
func (p PolyFit) Predict(x float64) float64 {
	sum := 0.0
	pow := 1.0
	for _, c := range p.Coefficients {
		sum += c * pow
		pow *= x
	}
	return sum
}

// PolynomialRegression fits a polynomial of the given degree. It needs more points
// than coefficients; otherwise, or when the design matrix is singular, it returns a
// constant fit at the mean of y.
func PolynomialRegression(x, y []float64, degree int) PolyFit {
	scaled, factor := normalize(y)
	fit := polynomialRegression(x, scaled, degree)
	for j := range fit.Coefficients {
		fit.Coefficients[j] *= factor
	}
	return fit
}

func polynomialRegression(x, y []float64, degree int) PolyFit {
	n := len(x)
	cols := degree + 1
	flat := PolyFit{Coefficients: make([]float64, cols), N: n}
	if cols > 0 {
		flat.Coefficients[0] = Mean(y)
	}
	if n != len(y) || degree < 1 || n <= cols {
		return flat
	}

	design := mat.NewDense(n, cols, nil)
	for i, xi := range x {
		pow := 1.0
		for j := 0; j < cols; j++ {
			design.Set(i, j, pow)
			pow *= xi
		}
	}

	var beta mat.VecDense
	if err := beta.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return flat
	}

	fit := PolyFit{Coefficients: make([]float64, cols), N: n}
	for j := 0; j < cols; j++ {
		c := beta.AtVec(j)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return flat
		}
		fit.Coefficients[j] = c
	}

	meanY := Mean(y)
	var ssTot, ssRes float64
	for i := range x {
		r := y[i] - fit.Predict(x[i])
		ssRes += r * r
		d := y[i] - meanY
		ssTot += d * d
	}
	if ssTot > 0 {
		fit.RSquared = Clamp01(1 - ssRes/ssTot)
	}
	return fit
}

// GoodnessOfFit returns 1 - SSE/SST of predictions against actual values, clamped
// to [0, 1]; 0 when actual has no variance.
func GoodnessOfFit(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}
	actual, factor := normalize(actual)
	if factor != 1 {
		scaled := make([]float64, len(predicted))
		for i, p := range predicted {
			scaled[i] = p / factor
		}
		predicted = scaled
	}
	meanY := Mean(actual)
	var ssTot, ssRes float64
	for i := range actual {
		r := actual[i] - predicted[i]
		ssRes += r * r
		d := actual[i] - meanY
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0
	}
	return Clamp01(1 - ssRes/ssTot)
}
