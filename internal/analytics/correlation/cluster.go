package correlation

import (
	"math"
	"sort"
)

// Cluster is a connected group of metrics linked by strong Pearson correlation
type Cluster struct {
	Members []string `json:"members"`
	Score   float64  `json:"score"` // mean pairwise |r| within the cluster
}

// FindClusters links metrics i and j when |matrix[i][j]| > threshold and returns the
// connected components with more than one member. Members are sorted by id and
// clusters by their first member.
func FindClusters(metrics []string, matrix [][]float64, threshold float64) []Cluster {
	n := len(metrics)
	visited := make([]bool, n)
	clusters := []Cluster{}

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true

		component := []int{start}
		for queue := []int{start}; len(queue) > 0; {
			cur := queue[0]
			queue = queue[1:]
			for next := 0; next < n; next++ {
				if visited[next] || next == cur {
					continue
				}
				if math.Abs(matrix[cur][next]) > threshold {
					visited[next] = true
					component = append(component, next)
					queue = append(queue, next)
				}
			}
		}
		if len(component) < 2 {
			continue
		}

		sum, count := 0.0, 0
		for x := 0; x < len(component); x++ {
			for y := x + 1; y < len(component); y++ {
				sum += math.Abs(matrix[component[x]][component[y]])
				count++
			}
		}

		members := make([]string, len(component))
		for k, idx := range component {
			members[k] = metrics[idx]
		}
		sort.Strings(members)

		clusters = append(clusters, Cluster{
			Members: members,
			Score:   sum / float64(count),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Members[0] < clusters[j].Members[0]
	})
	return clusters
}
