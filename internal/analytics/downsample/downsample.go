// Package downsample reduces long series to a bounded number of points before
// analysis while keeping their visual and statistical shape.
package downsample

import (
	"fmt"
	"math"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// Mode selects the reduction algorithm
type Mode string

const (
	// ModeNone keeps every point
	ModeNone Mode = "none"
	// ModeAuto picks an algorithm from the data's spikiness
	ModeAuto Mode = "auto"
	// ModeLTTB uses Largest-Triangle-Three-Buckets
	ModeLTTB Mode = "lttb"
	// ModeMinMax keeps the min and max of every bucket
	ModeMinMax Mode = "minmax"
	// ModeAverage replaces every bucket by its mean
	ModeAverage Mode = "avg"
	// ModeM4 keeps first, min, max and last of every bucket
	ModeM4 Mode = "m4"
)

// DefaultMaxPoints is the target size when none is configured
const DefaultMaxPoints = 1000

// minLTTBPoints is the smallest LTTB target; below it buckets are too coarse
const minLTTBPoints = 100

// ValidModes returns all downsampling modes
func ValidModes() []Mode {
	return []Mode{ModeNone, ModeAuto, ModeLTTB, ModeMinMax, ModeAverage, ModeM4}
}

// IsValid checks if a mode string is valid
func IsValid(mode string) bool {
	for _, m := range ValidModes() {
		if string(m) == mode {
			return true
		}
	}
	return false
}

// Apply reduces data to about maxPoints points. Series at or under the target, and
// ModeNone, are returned unchanged. Selection modes keep original points; ModeAverage
// emits bucket means stamped with the bucket's middle time.
func Apply(data analytics.TimeSeriesData, mode Mode, maxPoints int) (analytics.TimeSeriesData, error) {
	if mode == "" || mode == ModeNone {
		return data, nil
	}
	if !IsValid(string(mode)) {
		return nil, analytics.NewValidationError(analytics.CodeInvalidParameter,
			fmt.Sprintf("unknown downsampling mode: %s", mode),
			map[string]interface{}{"mode": string(mode), "available": ValidModes()})
	}

	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	maxPoints = max(maxPoints, 2)
	if len(data) <= maxPoints {
		return data, nil
	}

	if mode == ModeAuto {
		mode = Choose(data.Values())
	}

	switch mode {
	case ModeLTTB:
		return pick(data, lttb(data, max(maxPoints, minLTTBPoints))), nil
	case ModeMinMax:
		return pick(data, minmax(data.Values(), maxPoints)), nil
	case ModeM4:
		return pick(data, m4(data.Values(), maxPoints)), nil
	default:
		return average(data, maxPoints), nil
	}
}

// Choose selects an algorithm: spiky data keeps extremes, smooth data uses LTTB and
// very large smooth data is averaged.
func Choose(values []float64) Mode {
	spikiness := Spikiness(values)
	switch {
	case spikiness > 0.2:
		return ModeMinMax
	case len(values) > 100000:
		return ModeAverage
	case spikiness > 0.1:
		return ModeM4
	default:
		return ModeLTTB
	}
}

// Spikiness is a [0, 1] score combining the share of points beyond 2σ and the share
// of steps larger than σ, the latter weighted 1.5.
func Spikiness(values []float64) float64 {
	if len(values) < 10 {
		return 0
	}
	mean, sd := stats.MeanStdDev(values)
	if sd == 0 {
		return 0
	}

	outliers, jumps := 0, 0
	for i, v := range values {
		if math.Abs(v-mean) > 2*sd {
			outliers++
		}
		if i > 0 && math.Abs(v-values[i-1]) > sd {
			jumps++
		}
	}
	score := (float64(outliers)/float64(len(values)) + 1.5*float64(jumps)/float64(len(values)-1)) / 2.5
	return math.Min(score, 1)
}

func pick(data analytics.TimeSeriesData, indices []int) analytics.TimeSeriesData {
	out := make(analytics.TimeSeriesData, len(indices))
	for i, idx := range indices {
		out[i] = data[idx]
	}
	return out
}

// bucket returns the half-open range of bucket i out of n over length points
func bucket(i, n, length int) (int, int) {
	size := float64(length) / float64(n)
	return int(float64(i) * size), min(int(float64(i+1)*size), length)
}

// lttb keeps the first and last point and, in every inner bucket, the point forming
// the largest triangle with the previous pick and the next bucket's centroid. X is
// the timestamp, so irregular spacing is respected.
func lttb(data analytics.TimeSeriesData, target int) []int {
	x := func(i int) float64 { return float64(data[i].Time.UnixMilli()) }

	picked := make([]int, 0, target)
	picked = append(picked, 0)

	inner := len(data) - 2
	size := float64(inner) / float64(target-2)
	a := 0
	for i := 0; i < target-2; i++ {
		nextStart := int(float64(i+1)*size) + 1
		nextEnd := min(int(float64(i+2)*size)+1, len(data))
		var avgX, avgY float64
		for j := nextStart; j < nextEnd; j++ {
			avgX += x(j)
			avgY += data[j].Value
		}
		count := float64(nextEnd - nextStart)
		avgX /= count
		avgY /= count

		from := int(float64(i)*size) + 1
		to := int(float64(i+1)*size) + 1
		best, bestArea := from, -1.0
		for j := from; j < to; j++ {
			area := math.Abs((x(a)-avgX)*(data[j].Value-data[a].Value) - (x(a)-x(j))*(avgY-data[a].Value))
			if area > bestArea {
				best, bestArea = j, area
			}
		}
		picked = append(picked, best)
		a = best
	}
	return append(picked, len(data)-1)
}

// minmax keeps the min and max of target/2 buckets, in time order
func minmax(values []float64, target int) []int {
	n := max(target/2, 1)
	picked := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		start, end := bucket(i, n, len(values))
		if start >= end {
			continue
		}
		lo, hi := extremes(values, start, end)
		picked = appendOrdered(picked, lo, hi)
	}
	return picked
}

// m4 keeps first, min, max and last of target/4 buckets, in time order
func m4(values []float64, target int) []int {
	n := max(target/4, 1)
	picked := make([]int, 0, 4*n)
	for i := 0; i < n; i++ {
		start, end := bucket(i, n, len(values))
		if start >= end {
			continue
		}
		lo, hi := extremes(values, start, end)
		picked = append(picked, start)
		for _, idx := range orderedPair(lo, hi) {
			if idx != start && idx != end-1 {
				picked = append(picked, idx)
			}
		}
		if end-1 != start {
			picked = append(picked, end-1)
		}
	}
	return picked
}

func extremes(values []float64, start, end int) (lo, hi int) {
	lo, hi = start, start
	for j := start + 1; j < end; j++ {
		if values[j] < values[lo] {
			lo = j
		}
		if values[j] > values[hi] {
			hi = j
		}
	}
	return lo, hi
}

func orderedPair(a, b int) []int {
	switch {
	case a == b:
		return []int{a}
	case a < b:
		return []int{a, b}
	default:
		return []int{b, a}
	}
}

func appendOrdered(dst []int, a, b int) []int {
	return append(dst, orderedPair(a, b)...)
}

func average(data analytics.TimeSeriesData, target int) analytics.TimeSeriesData {
	out := make(analytics.TimeSeriesData, 0, target)
	for i := 0; i < target; i++ {
		start, end := bucket(i, target, len(data))
		if start >= end {
			continue
		}
		sum := 0.0
		for j := start; j < end; j++ {
			sum += data[j].Value
		}
		out = append(out, analytics.TimeSeriesPoint{
			Time:  data[start+(end-start)/2].Time,
			Value: sum / float64(end-start),
		})
	}
	return out
}
