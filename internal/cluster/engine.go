// Package cluster groups scored keywords into semantic clusters. The
// algorithm chain is fixed: density-based clustering over an HNSW neighbor
// graph, k-means with a deterministic seed when density quality is poor,
// and a single manual cluster as the terminal fallback. Every input keyword
// lands in exactly one cluster.
package cluster

import (
	"context"
	"log/slog"
	"math"
	"sort"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/embed"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

// ErrUnavailable is returned by Cluster when no embedder is configured.
// Callers degrade to HeuristicClusters.
var ErrUnavailable = scouterr.New(scouterr.ErrCodeProviderUnavailable,
	"clustering unavailable: no embedder configured", nil)

// Config holds clustering parameters. Zero values use defaults.
type Config struct {
	// SilhouetteFloor is the minimum silhouette score for accepting a
	// density or k-means result.
	SilhouetteFloor float64

	// Epsilon is the cosine-distance neighborhood radius for density
	// clustering.
	Epsilon float64

	// Seed drives k-means initialization. A fixed seed plus a fixed
	// embedding cache makes runs bit-for-bit reproducible.
	Seed int64
}

// DefaultConfig returns the standard clustering parameters.
func DefaultConfig() Config {
	return Config{
		SilhouetteFloor: 0.1,
		Epsilon:         0.35,
		Seed:            42,
	}
}

// Engine clusters scored keywords using their embeddings.
type Engine struct {
	embedder embed.Embedder
	cfg      Config
}

// NewEngine creates a clustering engine. A nil embedder is allowed; every
// Cluster call then returns ErrUnavailable so the caller can fall back.
func NewEngine(embedder embed.Embedder, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SilhouetteFloor == 0 {
		cfg.SilhouetteFloor = def.SilhouetteFloor
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Engine{embedder: embedder, cfg: cfg}
}

// Cluster groups keywords into semantic clusters. targetClusters overrides
// the size-derived cluster count when positive. Returns ErrUnavailable when
// no embedder is configured or the embedder reports itself unavailable.
func (e *Engine) Cluster(ctx context.Context, kws []keyword.ScoredKeyword, targetClusters int) ([]keyword.Cluster, error) {
	if e.embedder == nil {
		return nil, ErrUnavailable
	}
	if len(kws) == 0 {
		return []keyword.Cluster{}, nil
	}
	if !e.embedder.Available(ctx) {
		return nil, ErrUnavailable
	}

	texts := make([]string, len(kws))
	for i, kw := range kws {
		texts[i] = kw.NormalizedText
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, scouterr.Wrap(scouterr.ErrCodeClusteringFailed, err)
	}

	target := targetClusterCount(len(kws), targetClusters)
	if target <= 1 || len(kws) < 4 {
		return e.manualCluster(kws), nil
	}

	// Chain: density first, k-means second, manual last.
	if labels, ok := e.densityCluster(vectors); ok {
		slog.Info("clustering complete", "algorithm", "density", "keywords", len(kws))
		return e.buildClusters(kws, labels), nil
	}

	if labels, ok := e.kmeansCluster(vectors, target); ok {
		slog.Info("clustering complete", "algorithm", "kmeans", "keywords", len(kws))
		return e.buildClusters(kws, labels), nil
	}

	slog.Info("clustering complete", "algorithm", "manual", "keywords", len(kws))
	return e.manualCluster(kws), nil
}

// targetClusterCount derives the cluster count from the batch size, unless
// overridden. Large batches scale with the square root, bounded to 3-15.
func targetClusterCount(n, override int) int {
	if override > 0 {
		if override > n {
			return n
		}
		return override
	}
	switch {
	case n <= 3:
		return 1
	case n <= 10:
		return minInt(3, n-1)
	case n <= 50:
		return minInt(5, n/3)
	default:
		estimated := int(math.Sqrt(float64(n)))
		return clampInt(estimated, 3, 15)
	}
}

// buildClusters groups keywords by label, orders clusters by size
// descending, assigns 1-based IDs, and generates labels.
func (e *Engine) buildClusters(kws []keyword.ScoredKeyword, labels []int) []keyword.Cluster {
	groups := make(map[int][]keyword.ScoredKeyword)
	order := make([]int, 0)
	for i, lb := range labels {
		if _, seen := groups[lb]; !seen {
			order = append(order, lb)
		}
		groups[lb] = append(groups[lb], kws[i])
	}

	sort.SliceStable(order, func(a, b int) bool {
		la, lb := order[a], order[b]
		if len(groups[la]) != len(groups[lb]) {
			return len(groups[la]) > len(groups[lb])
		}
		return la < lb
	})

	clusters := make([]keyword.Cluster, 0, len(order))
	for i, lb := range order {
		members := groups[lb]
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].FinalScore > members[b].FinalScore
		})
		clusters = append(clusters, keyword.Cluster{
			ID:      i + 1,
			Label:   labelFor(members),
			Members: members,
		})
	}
	return clusters
}

// manualCluster places every keyword into one cluster, sorted by score.
func (e *Engine) manualCluster(kws []keyword.ScoredKeyword) []keyword.Cluster {
	members := make([]keyword.ScoredKeyword, len(kws))
	copy(members, kws)
	sort.SliceStable(members, func(a, b int) bool {
		return members[a].FinalScore > members[b].FinalScore
	})
	return []keyword.Cluster{{ID: 1, Label: labelFor(members), Members: members}}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
