package cluster

import (
	"log/slog"
	"math/rand"

	"github.com/coder/hnsw"
)

// kmeansMaxIter bounds Lloyd iterations; convergence is typically much
// earlier on short keyword embeddings.
const kmeansMaxIter = 50

// kmeansCluster runs k-means with a deterministic seed, choosing k by the
// best silhouette score over a bounded range around the target count. The
// result is accepted only when the best silhouette clears the floor.
func (e *Engine) kmeansCluster(vectors [][]float32, target int) ([]int, bool) {
	n := len(vectors)
	maxK := minInt(n-1, maxInt(target, 2)+2)
	if maxK < 2 {
		return nil, false
	}

	bestK := 0
	bestScore := e.cfg.SilhouetteFloor
	var bestLabels []int

	for k := 2; k <= maxK; k++ {
		labels := e.runKMeans(vectors, k)
		if distinctLabels(labels) <= 1 {
			continue
		}
		score := silhouetteScore(vectors, labels, noiseLabel)
		if score > bestScore {
			bestK, bestScore = k, score
			bestLabels = labels
		}
	}

	if bestLabels == nil {
		slog.Debug("kmeans rejected", "reason", "no k cleared silhouette floor",
			"floor", e.cfg.SilhouetteFloor)
		return nil, false
	}

	slog.Debug("kmeans accepted", "k", bestK, "silhouette", bestScore)
	return bestLabels, true
}

// runKMeans performs one deterministic Lloyd run: seeded random centroid
// selection, cosine-distance assignment, mean recomputation.
func (e *Engine) runKMeans(vectors [][]float32, k int) []int {
	n := len(vectors)
	dims := len(vectors[0])
	rng := rand.New(rand.NewSource(e.cfg.Seed + int64(k)))

	// Initial centroids: k distinct points.
	perm := rng.Perm(n)
	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float32(nil), vectors[perm[i]]...)
	}

	labels := make([]int, n)
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, vec := range vectors {
			best := 0
			bestDist := hnsw.CosineDistance(vec, centroids[0])
			for c := 1; c < k; c++ {
				if d := hnsw.CosineDistance(vec, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as member means; an emptied centroid keeps
		// its previous position.
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, vec := range vectors {
			c := labels[i]
			counts[c]++
			for d, v := range vec {
				sums[c][d] += float64(v)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dims; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}
	return labels
}

func distinctLabels(labels []int) int {
	seen := make(map[int]struct{}, len(labels))
	for _, lb := range labels {
		seen[lb] = struct{}{}
	}
	return len(seen)
}
