package pattern

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// FeatureNames are the per-window features, in vector order.
var FeatureNames = []string{"mean", "std_dev", "min", "max", "range", "skewness", "kurtosis"}

// WindowFeatures splits values into consecutive non-overlapping windows and returns
// the feature vector of each full window.
func WindowFeatures(values []float64, window int) [][]float64 {
	if window < 2 {
		return nil
	}
	features := make([][]float64, 0, len(values)/window)
	for start := 0; start+window <= len(values); start += window {
		w := values[start : start+window]
		mean, sd := stats.MeanStdDev(w)
		lo, hi := stats.MinMax(w)
		features = append(features, []float64{
			mean, sd, lo, hi, hi - lo, stats.Skewness(w), stats.Kurtosis(w),
		})
	}
	return features
}

// KMeansResult is the outcome of a k-means run
type KMeansResult struct {
	K           int         `json:"k"`
	Assignments []int       `json:"assignments"`
	Centroids   [][]float64 `json:"centroids"`
	Sizes       []int       `json:"sizes"`
	Iterations  int         `json:"iterations"`
	Silhouette  float64     `json:"silhouette"`
}

// KMeans clusters points with Lloyd's algorithm under Euclidean distance. The first
// centroid is drawn from a PCG generator seeded with seed; each further centroid is the
// point farthest from those already chosen. The same input and seed always give the
// same result. Iteration stops when assignments no longer change or after maxIter
// rounds. An empty cluster keeps its previous centroid.
func KMeans(points [][]float64, k, maxIter int, seed uint64) KMeansResult {
	if maxIter <= 0 {
		maxIter = 100
	}
	result := KMeansResult{K: k}
	if k < 1 || len(points) < k {
		return result
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	centroids := initCentroids(points, k, rng)

	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(p, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		result.Iterations = iter + 1
		if !changed {
			break
		}

		dims := len(points[0])
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	result.Assignments = assignments
	result.Centroids = centroids
	result.Sizes = make([]int, k)
	for _, c := range assignments {
		result.Sizes[c]++
	}
	result.Silhouette = Silhouette(points, assignments, k)
	return result
}

func initCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	chosen := []int{rng.IntN(len(points))}
	for len(chosen) < k {
		farthest, farthestDist := -1, -1.0
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range chosen {
				d = math.Min(d, euclidean(p, points[c]))
			}
			if d > farthestDist {
				farthest, farthestDist = i, d
			}
		}
		// no finite distance to compare; take the next unchosen point
		if farthest < 0 {
			farthest = firstUnchosen(len(points), chosen)
		}
		chosen = append(chosen, farthest)
	}

	centroids := make([][]float64, k)
	for c, idx := range chosen {
		centroids[c] = append([]float64(nil), points[idx]...)
	}
	return centroids
}

func firstUnchosen(n int, chosen []int) int {
	for i := 0; i < n; i++ {
		if !slices.Contains(chosen, i) {
			return i
		}
	}
	return 0
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := euclidean(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	if !math.IsInf(sum, 1) {
		return math.Sqrt(sum)
	}

	// squares overflowed; measure in units of the largest coordinate difference
	peak := 0.0
	for i := range a {
		peak = math.Max(peak, math.Abs(a[i]-b[i]))
	}
	if math.IsInf(peak, 1) {
		return peak
	}
	sum = 0
	for i := range a {
		d := (a[i] - b[i]) / peak
		sum += d * d
	}
	return math.Sqrt(sum) * peak
}

// Silhouette returns the mean silhouette over all points: (b − a)/max(a, b), where a is
// the mean distance to the point's own cluster and b the smallest mean distance to
// another non-empty cluster. Points alone in their cluster score 0.
func Silhouette(points [][]float64, assignments []int, k int) float64 {
	if len(points) < 2 || k < 2 {
		return 0
	}

	total := 0.0
	for i, p := range points {
		sums := make([]float64, k)
		counts := make([]int, k)
		for j, q := range points {
			if i == j {
				continue
			}
			sums[assignments[j]] += euclidean(p, q)
			counts[assignments[j]]++
		}

		own := assignments[i]
		if counts[own] == 0 {
			continue
		}
		a := sums[own] / float64(counts[own])
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			b = math.Min(b, sums[c]/float64(counts[c]))
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(len(points))
}

// Clustering groups the series' windows by their feature vectors. It is detected when
// the silhouette exceeds 0.25.
func Clustering(values []float64, window, k, maxIter int, seed uint64) Pattern {
	if k < 2 {
		k = 3
	}
	features := WindowFeatures(values, window)
	if len(features) <= k {
		return insufficient(TypeClustering)
	}

	result := KMeans(features, k, maxIter, seed)
	return Pattern{
		Type:     TypeClustering,
		Detected: result.Silhouette > silhouetteThreshold,
		Strength: stats.Clamp01(result.Silhouette),
		Parameters: map[string]interface{}{
			"window":      window,
			"k":           k,
			"sizes":       result.Sizes,
			"silhouette":  result.Silhouette,
			"assignments": result.Assignments,
			"centroids":   result.Centroids,
			"features":    FeatureNames,
			"iterations":  result.Iterations,
		},
	}
}
