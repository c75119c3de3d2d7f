// Package clustering groups document embeddings into clusters. Small batches
// use seeded k-means for determinism; larger batches use HDBSCAN, which
// discovers the cluster count and marks outliers as noise.
package clustering

import (
	"math"
	"sort"
	"strings"

	"nicheexplorer/internal/core"
)

// kmeansMaxPoints is the batch size at and below which k-means is used.
const kmeansMaxPoints = 100

// Clusterer assigns each embedding a cluster label. A label of
// core.NoiseClusterID marks a point no cluster claimed.
type Clusterer interface {
	Assign(embeddings [][]float32) ([]int, error)
}

// ForSize picks the clusterer for a batch of n points.
func ForSize(n, minClusterSize int) Clusterer {
	if n <= kmeansMaxPoints {
		k := int(math.Sqrt(float64(n) / 2.0))
		if k < 1 {
			k = 1
		}
		return NewKMeans(k)
	}
	return NewHDBSCAN(minClusterSize)
}

// CosineDistance is 1 - cosine similarity, clamped to [0, 2]. Zero vectors
// and mismatched dimensions count as maximally distant.
func CosineDistance(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		return 1.0
	}

	var dot, mag1, mag2 float64
	for i := range x1 {
		dot += x1[i] * x2[i]
		mag1 += x1[i] * x1[i]
		mag2 += x2[i] * x2[i]
	}
	if mag1 == 0 || mag2 == 0 {
		return 1.0
	}

	similarity := dot / (math.Sqrt(mag1) * math.Sqrt(mag2))
	if similarity > 1.0 {
		similarity = 1.0
	} else if similarity < -1.0 {
		similarity = -1.0
	}
	return 1.0 - similarity
}

// Centroid averages a set of vectors. Returns nil for an empty set.
func Centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}

	centroid := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, val := range v {
			centroid[i] += val
		}
	}
	for i := range centroid {
		centroid[i] /= float64(len(vectors))
	}
	return centroid
}

// RepresentativeIndices returns the indices of the n vectors closest to the
// centroid of the set, ordered nearest first.
func RepresentativeIndices(vectors [][]float64, n int) []int {
	if len(vectors) == 0 || n <= 0 {
		return nil
	}

	centroid := Centroid(vectors)
	type scored struct {
		idx  int
		dist float64
	}
	ranked := make([]scored, len(vectors))
	for i, v := range vectors {
		ranked[i] = scored{idx: i, dist: CosineDistance(v, centroid)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ranked[i].idx < ranked[j].idx
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		indices[i] = ranked[i].idx
	}
	return indices
}

// keywordStopWords filters function words out of keyword extraction.
var keywordStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "our": true,
	"was": true, "has": true, "have": true, "this": true, "that": true,
	"with": true, "from": true, "their": true, "which": true, "these": true,
	"based": true, "using": true, "into": true, "such": true, "than": true,
	"while": true, "where": true, "when": true, "also": true, "been": true,
	"both": true, "each": true, "how": true, "its": true, "may": true,
	"more": true, "most": true, "other": true, "some": true, "show": true,
	"propose": true, "proposed": true, "present": true, "paper": true,
	"results": true, "method": true, "methods": true, "approach": true,
	"model": true, "models": true, "via": true, "new": true,
}

// Keywords counts content words across the given texts and returns the topN
// most frequent with their counts as weights. Words shorter than four
// characters are ignored.
func Keywords(texts []string, topN int) []core.KeywordWeight {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,;:!?()[]{}\"'")
			if len(word) < 4 || keywordStopWords[word] {
				continue
			}
			counts[word]++
		}
	}

	keywords := make([]core.KeywordWeight, 0, len(counts))
	for word, count := range counts {
		keywords = append(keywords, core.KeywordWeight{Term: word, Weight: float64(count)})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Weight != keywords[j].Weight {
			return keywords[i].Weight > keywords[j].Weight
		}
		return keywords[i].Term < keywords[j].Term
	})

	if topN < len(keywords) {
		keywords = keywords[:topN]
	}
	return keywords
}

// toFloat64 widens embedding vectors for the distance math.
func toFloat64(embeddings [][]float32) [][]float64 {
	out := make([][]float64, len(embeddings))
	for i, v := range embeddings {
		row := make([]float64, len(v))
		for j, val := range v {
			row[j] = float64(val)
		}
		out[i] = row
	}
	return out
}

// ToFloat64 is the exported form of the widening conversion for callers that
// need vectors in the distance math's representation.
func ToFloat64(embeddings [][]float32) [][]float64 {
	return toFloat64(embeddings)
}
