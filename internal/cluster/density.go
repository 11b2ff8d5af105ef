package cluster

import (
	"log/slog"
	"math"

	"github.com/coder/hnsw"
)

// noiseLabel marks points no density cluster claimed.
const noiseLabel = -1

// densityCluster runs a density-based pass over an HNSW neighbor graph:
// points with enough neighbors inside the epsilon radius seed clusters that
// expand through density-connected neighbors, everything else is noise.
//
// The result is accepted only when it produces at least two clusters, noise
// stays at or below half the batch, and the silhouette score clears the
// configured floor. Accepted noise points are merged into one overflow
// cluster so that every keyword still lands somewhere.
func (e *Engine) densityCluster(vectors [][]float32) ([]int, bool) {
	n := len(vectors)
	minClusterSize := maxInt(2, n/20)
	minSamples := maxInt(1, minClusterSize/2)

	neighbors := e.neighborLists(vectors, minClusterSize*4)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}

	// Core points have at least minSamples neighbors within epsilon.
	// Expand each unvisited core point into a cluster with BFS.
	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != noiseLabel || len(neighbors[i]) < minSamples {
			continue
		}
		queue := []int{i}
		labels[i] = next
		size := 1
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if len(neighbors[p]) < minSamples {
				continue // border point, do not expand through it
			}
			for _, q := range neighbors[p] {
				if labels[q] == noiseLabel {
					labels[q] = next
					size++
					queue = append(queue, q)
				}
			}
		}
		if size < minClusterSize {
			// Too small to stand as a cluster; revert to noise.
			for j := range labels {
				if labels[j] == next {
					labels[j] = noiseLabel
				}
			}
			continue
		}
		next++
	}

	noise := 0
	for _, lb := range labels {
		if lb == noiseLabel {
			noise++
		}
	}

	if next < 2 {
		slog.Debug("density clustering rejected", "reason", "too few clusters", "clusters", next)
		return nil, false
	}
	if noise*2 > n {
		slog.Debug("density clustering rejected", "reason", "too many noise points",
			"noise", noise, "total", n)
		return nil, false
	}

	if sil := silhouetteScore(vectors, labels, noiseLabel); sil < e.cfg.SilhouetteFloor {
		slog.Debug("density clustering rejected", "reason", "low silhouette", "silhouette", sil)
		return nil, false
	}

	// Merge surviving noise into one overflow cluster.
	if noise > 0 {
		for i := range labels {
			if labels[i] == noiseLabel {
				labels[i] = next
			}
		}
	}

	slog.Debug("density clustering accepted", "clusters", next, "noise", noise)
	return labels, true
}

// neighborLists returns, for each vector, the indexes of its neighbors
// within the epsilon cosine-distance radius, found via HNSW search.
func (e *Engine) neighborLists(vectors [][]float32, k int) [][]int {
	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = maxInt(20, k)

	for i, vec := range vectors {
		graph.Add(hnsw.MakeNode(i, vec))
	}

	if k > len(vectors) {
		k = len(vectors)
	}

	neighbors := make([][]int, len(vectors))
	for i, vec := range vectors {
		nodes := graph.Search(vec, k)
		list := make([]int, 0, len(nodes))
		for _, node := range nodes {
			if node.Key == i {
				continue
			}
			if graph.Distance(vec, node.Value) <= float32(e.cfg.Epsilon) {
				list = append(list, node.Key)
			}
		}
		neighbors[i] = list
	}
	return neighbors
}

// silhouetteScore computes the mean silhouette coefficient over all labeled
// points, using cosine distance. Points carrying skipLabel are excluded.
// Returns -1 when fewer than two clusters are present.
func silhouetteScore(vectors [][]float32, labels []int, skipLabel int) float64 {
	clusterSizes := make(map[int]int)
	for _, lb := range labels {
		if lb != skipLabel {
			clusterSizes[lb]++
		}
	}
	if len(clusterSizes) < 2 {
		return -1.0
	}

	var total float64
	counted := 0
	for i := range vectors {
		if labels[i] == skipLabel {
			continue
		}
		if clusterSizes[labels[i]] < 2 {
			continue // silhouette undefined for singleton clusters
		}

		// Mean distance to own cluster (a) and to the nearest other
		// cluster (b).
		sums := make(map[int]float64)
		counts := make(map[int]int)
		for j := range vectors {
			if i == j || labels[j] == skipLabel {
				continue
			}
			d := float64(hnsw.CosineDistance(vectors[i], vectors[j]))
			sums[labels[j]] += d
			counts[labels[j]]++
		}

		a := sums[labels[i]] / float64(counts[labels[i]])
		b := math.Inf(1)
		for lb, sum := range sums {
			if lb == labels[i] {
				continue
			}
			if mean := sum / float64(counts[lb]); mean < b {
				b = mean
			}
		}

		if max := math.Max(a, b); max > 0 {
			total += (b - a) / max
			counted++
		}
	}

	if counted == 0 {
		return -1.0
	}
	return total / float64(counted)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
