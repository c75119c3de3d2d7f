package clustering

import (
	"fmt"
	"reflect"

	"github.com/humilityai/hdbscan"

	"nicheexplorer/internal/core"
)

// HDBSCAN wraps the humilityai/hdbscan density clusterer. It discovers the
// cluster count itself and leaves outliers unassigned.
type HDBSCAN struct {
	minClusterSize int
}

// NewHDBSCAN creates a density clusterer with the given minimum cluster size.
func NewHDBSCAN(minClusterSize int) *HDBSCAN {
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	return &HDBSCAN{minClusterSize: minClusterSize}
}

// Assign runs HDBSCAN with cosine distance and returns one label per
// embedding. Points no cluster claimed get core.NoiseClusterID.
func (h *HDBSCAN) Assign(embeddings [][]float32) ([]int, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings to cluster")
	}

	points := toFloat64(embeddings)

	clustering, err := hdbscan.NewClustering(points, h.minClusterSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create clustering: %w", err)
	}
	clustering = clustering.OutlierDetection()

	// Cosine distance, not Euclidean: high-dimensional embeddings make
	// Euclidean distances nearly uniform.
	if err := clustering.Run(CosineDistance, hdbscan.VarianceScore, false); err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}

	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = core.NoiseClusterID
	}
	for clusterID, points := range extractClusterPoints(clustering) {
		for _, pointIdx := range points {
			if pointIdx >= 0 && pointIdx < len(assignments) {
				assignments[pointIdx] = clusterID
			}
		}
	}

	return assignments, nil
}

// extractClusterPoints pulls per-cluster point indices out of the library's
// result. The cluster type is unexported, so the field walk goes through
// reflection.
func extractClusterPoints(clustering *hdbscan.Clustering) map[int][]int {
	result := make(map[int][]int)

	v := reflect.ValueOf(clustering).Elem()
	clustersField := v.FieldByName("Clusters")
	if !clustersField.IsValid() {
		return result
	}

	for i := 0; i < clustersField.Len(); i++ {
		clusterValue := clustersField.Index(i)
		if clusterValue.Kind() == reflect.Ptr {
			clusterValue = clusterValue.Elem()
		}

		pointsField := clusterValue.FieldByName("Points")
		if !pointsField.IsValid() || pointsField.Kind() != reflect.Slice {
			continue
		}

		points := make([]int, pointsField.Len())
		for j := 0; j < pointsField.Len(); j++ {
			points[j] = int(pointsField.Index(j).Int())
		}
		result[i] = points
	}

	return result
}
