package clustering

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	kmeansSeed          = 42
	kmeansMaxIterations = 100
)

// KMeans is a k-means clusterer with a fixed random seed so repeated runs on
// the same batch produce the same assignments.
type KMeans struct {
	k             int
	maxIterations int
	seed          int64
}

// NewKMeans creates a k-means clusterer for k clusters.
func NewKMeans(k int) *KMeans {
	return &KMeans{
		k:             k,
		maxIterations: kmeansMaxIterations,
		seed:          kmeansSeed,
	}
}

// Assign runs k-means and returns one cluster label per embedding. K-means
// assigns every point, so no label is ever noise.
func (km *KMeans) Assign(embeddings [][]float32) ([]int, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings to cluster")
	}

	k := km.k
	if k > len(embeddings) {
		k = len(embeddings)
	}
	if k < 1 {
		k = 1
	}

	points := toFloat64(embeddings)
	dim := len(points[0])

	rng := rand.New(rand.NewSource(km.seed))
	centroids := initializeCentroids(points, k, dim, rng)

	var assignments []int
	converged := false

	for iteration := 0; iteration < km.maxIterations && !converged; iteration++ {
		newAssignments := make([]int, len(points))
		for i, point := range points {
			newAssignments[i] = nearestCentroid(point, centroids)
		}

		if iteration > 0 {
			converged = true
			for i := range assignments {
				if assignments[i] != newAssignments[i] {
					converged = false
					break
				}
			}
		}

		assignments = newAssignments

		if !converged {
			centroids = updateCentroids(points, assignments, k, dim)
		}
	}

	return assignments, nil
}

// initializeCentroids seeds centroids with k-means++: the first is drawn
// uniformly, the rest with probability proportional to squared distance from
// the nearest chosen centroid.
func initializeCentroids(points [][]float64, k, dim int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, k)

	first := rng.Intn(len(points))
	centroids[0] = make([]float64, dim)
	copy(centroids[0], points[first])

	for i := 1; i < k; i++ {
		distances := make([]float64, len(points))
		total := 0.0
		for j, point := range points {
			minDist := math.Inf(1)
			for c := 0; c < i; c++ {
				if dist := CosineDistance(point, centroids[c]); dist < minDist {
					minDist = dist
				}
			}
			distances[j] = minDist * minDist
			total += distances[j]
		}

		selected := rng.Intn(len(points))
		if total > 0 {
			target := rng.Float64() * total
			cumulative := 0.0
			for j, dist := range distances {
				cumulative += dist
				if cumulative >= target {
					selected = j
					break
				}
			}
		}

		centroids[i] = make([]float64, dim)
		copy(centroids[i], points[selected])
	}

	return centroids
}

func nearestCentroid(point []float64, centroids [][]float64) int {
	minDistance := math.Inf(1)
	nearest := 0
	for i, centroid := range centroids {
		if distance := CosineDistance(point, centroid); distance < minDistance {
			minDistance = distance
			nearest = i
		}
	}
	return nearest
}

func updateCentroids(points [][]float64, assignments []int, k, dim int) [][]float64 {
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}

	for i, point := range points {
		label := assignments[i]
		counts[label]++
		for j := range point {
			centroids[label][j] += point[j]
		}
	}

	for i := range centroids {
		if counts[i] > 0 {
			for j := range centroids[i] {
				centroids[i][j] /= float64(counts[i])
			}
		}
	}

	return centroids
}
