package pattern

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltixdb/trendcore/internal/analytics"
)

func alternating(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		if i%2 == 0 {
			values[i] = 1
		} else {
			values[i] = 100
		}
	}
	return values
}

func step(n, at int, before, after float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		if i < at {
			values[i] = before
		} else {
			values[i] = after
		}
	}
	return values
}

// three levels, each ten windows of five points with a small repeating ripple
func levels() []float64 {
	var values []float64
	for _, level := range []float64{0, 100, 200} {
		for i := 0; i < 50; i++ {
			values = append(values, level+0.1*float64(i%5))
		}
	}
	return values
}

func find(t *testing.T, report Report, typ Type) Pattern {
	t.Helper()
	for _, p := range report.Patterns {
		if p.Type == typ {
			return p
		}
	}
	t.Fatalf("pattern %s missing", typ)
	return Pattern{}
}

func TestCyclical_Alternating(t *testing.T) {
	p := Cyclical(alternating(20), 20)
	assert.True(t, p.Detected)
	assert.Equal(t, 2, p.Parameters["primary_period"])
	assert.Greater(t, p.Strength, 0.5)
}

func TestCyclical_NoCycle(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i)
	}
	p := Cyclical(values, 10)
	assert.False(t, p.Detected)
	assert.Empty(t, p.Reason)

	short := Cyclical([]float64{1, 2, 3}, 10)
	assert.False(t, short.Detected)
	assert.Equal(t, analytics.ReasonInsufficientData, short.Reason)
}

func TestSeasonal(t *testing.T) {
	values := make([]float64, 56)
	for i := range values {
		values[i] = 50 + 10*math.Sin(2*math.Pi*float64(i)/7)
	}
	p := Seasonal(values, 0, 20)
	assert.True(t, p.Detected)
	assert.Equal(t, 7, p.Parameters["period"])
	assert.Greater(t, p.Strength, 0.3)
}

func TestTrend(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 10 + 2*float64(i)
	}
	p := Trend(values, DefaultConfig().Trend)
	assert.True(t, p.Detected)
	assert.InDelta(t, 1.0, p.Strength, 1e-9)

	flat := Trend(step(20, 0, 5, 5), DefaultConfig().Trend)
	assert.False(t, flat.Detected)
}

func TestVolatility(t *testing.T) {
	calm := make([]float64, 20)
	for i := range calm {
		calm[i] = 100 + float64(i%2)
	}
	assert.False(t, Volatility(calm, 0.2).Detected)

	wild := alternating(20)
	p := Volatility(wild, 0.2)
	assert.True(t, p.Detected)
	assert.Equal(t, 1.0, p.Strength)
}

func TestChangePoints_Step(t *testing.T) {
	values := step(40, 20, 10, 50)
	assert.Equal(t, []int{20}, ChangePoints(values, 5))

	segments := Segments(values, []int{20})
	require.Len(t, segments, 2)
	assert.Equal(t, Segment{Start: 0, End: 20, Mean: 10}, segments[0])
	assert.Equal(t, 20, segments[1].Start)
	assert.Equal(t, 40, segments[1].End)
	assert.InDelta(t, 50.0, segments[1].Mean, 1e-12)
}

func TestChangePoints_SpreadChange(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		amplitude := 1.0
		if i >= 20 {
			amplitude = 10
		}
		if i%2 == 0 {
			values[i] = 100 + amplitude
		} else {
			values[i] = 100 - amplitude
		}
	}
	points := ChangePoints(values, 6)
	require.NotEmpty(t, points)
	assert.InDelta(t, 20, points[0], 3)
}

func TestRegime(t *testing.T) {
	p := Regime(step(40, 20, 10, 50), 5)
	assert.True(t, p.Detected)
	assert.InDelta(t, 1.0, p.Strength, 1e-12)
	assert.Equal(t, []int{20}, p.Parameters["change_points"])

	steady := Regime(step(40, 0, 3, 3), 5)
	assert.False(t, steady.Detected)
	assert.Equal(t, []int{}, steady.Parameters["change_points"])

	short := Regime([]float64{1, 2, 3}, 5)
	assert.Equal(t, analytics.ReasonInsufficientData, short.Reason)
}

func TestWindowFeatures(t *testing.T) {
	features := WindowFeatures([]float64{1, 2, 3, 4, 10, 10, 10, 10, 99}, 4)
	require.Len(t, features, 2)
	assert.Len(t, features[0], len(FeatureNames))
	assert.Equal(t, 2.5, features[0][0])
	assert.Equal(t, 3.0, features[0][4])
	assert.Equal(t, []float64{10, 0, 10, 10, 0, 0, 0}, features[1])
}

func TestKMeans_SeparatesLevels(t *testing.T) {
	features := WindowFeatures(levels(), 5)
	require.Len(t, features, 30)

	result := KMeans(features, 3, 100, 1)
	assert.Equal(t, []int{10, 10, 10}, sortedSizes(result.Sizes))
	assert.Greater(t, result.Silhouette, 0.9)

	// windows of one level share a cluster
	for w := 0; w < 30; w++ {
		assert.Equal(t, result.Assignments[(w/10)*10], result.Assignments[w])
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	features := WindowFeatures(levels(), 5)
	for _, seed := range []uint64{1, 7, 42} {
		assert.Equal(t, KMeans(features, 3, 100, seed), KMeans(features, 3, 100, seed))
	}
}

func TestSilhouette_Degenerate(t *testing.T) {
	points := [][]float64{{0}, {1}, {2}}
	assert.Equal(t, 0.0, Silhouette(points, []int{0, 0, 0}, 1))
	assert.Equal(t, 0.0, Silhouette(points[:1], []int{0}, 2))
}

func TestClustering(t *testing.T) {
	p := Clustering(levels(), 5, 3, 100, 1)
	assert.True(t, p.Detected)
	assert.Greater(t, p.Strength, 0.9)

	short := Clustering([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5, 3, 100, 1)
	assert.Equal(t, analytics.ReasonInsufficientData, short.Reason)
}

func TestDetect(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	data := analytics.FromValues(start, time.Minute, levels())
	config := DefaultConfig()
	config.Window = 5

	report, err := Detect(data, config)
	require.NoError(t, err)
	assert.Equal(t, analytics.StatusOK, report.Status)
	require.Len(t, report.Patterns, len(AllTypes))
	for i, typ := range AllTypes {
		assert.Equal(t, typ, report.Patterns[i].Type)
	}

	assert.True(t, find(t, report, TypeRegime).Detected)
	assert.True(t, find(t, report, TypeClustering).Detected)
	assert.NotEmpty(t, report.Detected())

	again, err := Detect(data, config)
	require.NoError(t, err)
	assert.Equal(t, report, again)
}

func TestDetectValues_LargeMagnitudes(t *testing.T) {
	config := DefaultConfig()
	config.Window = 5

	for _, scale := range []float64{1e160, 1e300} {
		values := levels()
		for i := range values {
			values[i] *= scale
		}

		var report Report
		require.NotPanics(t, func() { report = DetectValues(values, config) }, "scale %g", scale)
		for _, p := range report.Patterns {
			assert.False(t, math.IsNaN(p.Strength), "%s at scale %g", p.Type, scale)
			assert.GreaterOrEqual(t, p.Strength, 0.0, "%s at scale %g", p.Type, scale)
			assert.LessOrEqual(t, p.Strength, 1.0, "%s at scale %g", p.Type, scale)
		}
		assert.True(t, find(t, report, TypeRegime).Detected, "scale %g", scale)
		assert.True(t, find(t, report, TypeClustering).Detected, "scale %g", scale)
	}
}

func TestKMeans_UnmeasurableDistances(t *testing.T) {
	inf := math.Inf(1)
	points := [][]float64{{inf, 0}, {inf, 1}, {inf, 2}, {inf, 3}}

	var result KMeansResult
	require.NotPanics(t, func() { result = KMeans(points, 3, 10, 1) })
	assert.Len(t, result.Centroids, 3)
	assert.Len(t, result.Assignments, len(points))
}

func TestDetect_InsufficientAndInvalid(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	report, err := Detect(analytics.FromValues(start, time.Minute, []float64{1, 2, 3}), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, analytics.StatusInsufficientData, report.Status)
	require.Len(t, report.Patterns, len(AllTypes))
	for _, p := range report.Patterns {
		assert.False(t, p.Detected)
		assert.Equal(t, analytics.ReasonInsufficientData, p.Reason)
	}
	assert.Empty(t, report.Detected())

	data := analytics.FromValues(start, time.Minute, levels())
	data[3].Value = math.Inf(1)
	var ve *analytics.ValidationError
	_, err = Detect(data, DefaultConfig())
	require.ErrorAs(t, err, &ve)
}

func sortedSizes(sizes []int) []int {
	out := append([]int(nil), sizes...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
