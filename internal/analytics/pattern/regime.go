package pattern

import (
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

const (
	meanShiftFactor = 2.0
	stdShiftFactor  = 0.5
	scoreEpsilon    = 1e-12
)

// Segment summarises the values between two change points, [Start, End).
type Segment struct {
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Slope  float64 `json:"slope"`
}

// ChangePoints compares every window values[i:i+w] with the window before it. A
// position is flagged when the mean moves by more than 2× the prior window's standard
// deviation or the standard deviation moves by more than 0.5× of it. Each run of
// consecutive flagged positions yields one change point, the position with the
// largest shift relative to the spread of both windows.
func ChangePoints(values []float64, window int) []int {
	n := len(values)
	if window < 2 || n < 2*window {
		return nil
	}

	var points []int
	bestIdx, bestScore := -1, 0.0
	for i := window; i+window <= n; i++ {
		prevMean, prevSD := stats.MeanStdDev(values[i-window : i])
		curMean, curSD := stats.MeanStdDev(values[i : i+window])

		meanShift := abs(curMean - prevMean)
		sdShift := abs(curSD - prevSD)
		flagged := meanShift > meanShiftFactor*prevSD || sdShift > stdShiftFactor*prevSD

		if !flagged {
			if bestIdx >= 0 {
				points = append(points, bestIdx)
				bestIdx = -1
			}
			continue
		}

		spread := prevSD + curSD + scoreEpsilon
		score := max(meanShift/spread, sdShift/spread)
		if bestIdx < 0 || score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 {
		points = append(points, bestIdx)
	}
	return points
}

// Segments summarises the stretches between change points.
func Segments(values []float64, changePoints []int) []Segment {
	bounds := append([]int{0}, changePoints...)
	bounds = append(bounds, len(values))

	segments := make([]Segment, 0, len(bounds)-1)
	for k := 0; k+1 < len(bounds); k++ {
		start, end := bounds[k], bounds[k+1]
		part := values[start:end]
		mean, sd := stats.MeanStdDev(part)
		fit := stats.LinearRegression(stats.Indices(len(part)), part)
		segments = append(segments, Segment{
			Start:  start,
			End:    end,
			Mean:   mean,
			StdDev: sd,
			Slope:  fit.Slope,
		})
	}
	return segments
}

// Regime reports change points in level or spread. Strength is the largest jump in
// mean between neighbouring segments, relative to twice the series standard
// deviation, clamped to [0, 1].
func Regime(values []float64, window int) Pattern {
	if window < 2 || len(values) < 2*window {
		return insufficient(TypeRegime)
	}

	points := ChangePoints(values, window)
	segments := Segments(values, points)

	_, sd := stats.MeanStdDev(values)
	largest := 0.0
	for k := 1; k < len(segments); k++ {
		largest = max(largest, abs(segments[k].Mean-segments[k-1].Mean))
	}

	if points == nil {
		points = []int{}
	}
	return Pattern{
		Type:     TypeRegime,
		Detected: len(points) > 0,
		Strength: stats.Clamp01(stats.SafeDiv(largest, 2*sd, 0)),
		Parameters: map[string]interface{}{
			"window":        window,
			"change_points": points,
			"segments":      segments,
		},
	}
}
