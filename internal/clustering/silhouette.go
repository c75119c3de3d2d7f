package clustering

import "math"

// AverageSilhouette computes the mean silhouette score over all assigned
// points, as a clustering quality signal for logs. Scores range from -1
// (points likely in the wrong cluster) to 1 (well separated clusters). Noise
// points are skipped.
func AverageSilhouette(embeddings [][]float32, assignments []int) float64 {
	points := toFloat64(embeddings)
	n := len(points)
	if n == 0 || n != len(assignments) {
		return 0.0
	}

	distances := make([][]float64, n)
	for i := range distances {
		distances[i] = make([]float64, n)
		for j := range distances[i] {
			if i != j {
				distances[i][j] = CosineDistance(points[i], points[j])
			}
		}
	}

	total := 0.0
	counted := 0
	for i, label := range assignments {
		if label < 0 {
			continue
		}
		total += silhouetteScore(i, label, assignments, distances)
		counted++
	}
	if counted == 0 {
		return 0.0
	}
	return total / float64(counted)
}

func silhouetteScore(pointIdx, label int, assignments []int, distances [][]float64) float64 {
	a := meanIntraClusterDistance(pointIdx, label, assignments, distances)
	b := minInterClusterDistance(pointIdx, label, assignments, distances)

	switch {
	case a < b:
		return 1.0 - a/b
	case a > b:
		return b/a - 1.0
	default:
		return 0.0
	}
}

func meanIntraClusterDistance(pointIdx, label int, assignments []int, distances [][]float64) float64 {
	sum := 0.0
	count := 0
	for i, l := range assignments {
		if i == pointIdx || l != label {
			continue
		}
		sum += distances[pointIdx][i]
		count++
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

func minInterClusterDistance(pointIdx, label int, assignments []int, distances [][]float64) float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, l := range assignments {
		if l == label || l < 0 {
			continue
		}
		sums[l] += distances[pointIdx][i]
		counts[l]++
	}
	if len(counts) == 0 {
		return 1.0
	}

	minDistance := math.MaxFloat64
	for l, count := range counts {
		if mean := sums[l] / float64(count); mean < minDistance {
			minDistance = mean
		}
	}
	return minDistance
}
