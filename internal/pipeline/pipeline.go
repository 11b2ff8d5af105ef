// Package pipeline wires the discovery stages together: harvest, dedup,
// signal enrichment, scoring, clustering, and optional persistence and
// export. Validation failures abort before any network activity; every
// later stage degrades instead of aborting, and cancellation yields the
// partial results collected so far.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/keywordscout/keywordscout/internal/cluster"
	"github.com/keywordscout/keywordscout/internal/config"
	"github.com/keywordscout/keywordscout/internal/dedup"
	"github.com/keywordscout/keywordscout/internal/embed"
	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/export"
	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/harvest"
	"github.com/keywordscout/keywordscout/internal/keyword"
	"github.com/keywordscout/keywordscout/internal/ratelimit"
	"github.com/keywordscout/keywordscout/internal/score"
	"github.com/keywordscout/keywordscout/internal/signals"
	"github.com/keywordscout/keywordscout/internal/store"
)

// Expander harvests raw suggestions for seeds.
type Expander interface {
	Expand(ctx context.Context, seeds []keyword.SeedQuery) map[string][]keyword.RawSuggestion
	DegradedSources() []string
}

// Clusterer groups scored keywords.
type Clusterer interface {
	Cluster(ctx context.Context, kws []keyword.ScoredKeyword, targetClusters int) ([]keyword.Cluster, error)
}

// Stats counts items surviving each stage.
type Stats struct {
	Harvested    int
	Deduplicated int
	Scored       int
	Clustered    int
}

// RunResult is the output of one pipeline run.
type RunResult struct {
	Keywords []keyword.ScoredKeyword
	Clusters []keyword.Cluster
	Stats    Stats

	// DegradedSources lists subsystems that fell back during the run:
	// harvest channels stopped by challenge pages, failed signal
	// providers, unavailable clustering.
	DegradedSources []string

	// Partial is set when the run was cancelled mid-way and the results
	// cover only what was collected before cancellation.
	Partial bool

	Duration     time.Duration
	LimiterStats ratelimit.Stats
}

// Pipeline executes discovery runs. Build it with New; all dependencies
// are fixed at construction.
type Pipeline struct {
	cfg       *config.Config
	harvester Expander
	dedup     *dedup.Deduplicator
	engine    *score.Engine
	clusterer Clusterer
	buckets   *cluster.BucketTable
	volume    signals.VolumeProvider
	trend     signals.TrendProvider
	embedder  embed.Embedder
	store     *store.KeywordStore
	exporter  *export.Exporter
	now       func() time.Time
}

// Option overrides a pipeline dependency, used by callers with external
// providers and by tests.
type Option func(*Pipeline)

// WithExpander replaces the harvester.
func WithExpander(e Expander) Option { return func(p *Pipeline) { p.harvester = e } }

// WithClusterer replaces the cluster engine.
func WithClusterer(c Clusterer) Option { return func(p *Pipeline) { p.clusterer = c } }

// WithVolumeProvider sets an external volume source.
func WithVolumeProvider(v signals.VolumeProvider) Option {
	return func(p *Pipeline) { p.volume = v }
}

// WithTrendProvider sets an external trend source.
func WithTrendProvider(t signals.TrendProvider) Option {
	return func(p *Pipeline) { p.trend = t }
}

// WithStore enables keyword persistence.
func WithStore(s *store.KeywordStore) Option { return func(p *Pipeline) { p.store = s } }

// WithExporter enables CSV artifacts.
func WithExporter(e *export.Exporter) Option { return func(p *Pipeline) { p.exporter = e } }

// New assembles a pipeline from configuration. The scoring engine is
// validated here, so invalid weight tables fail before any run starts.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := score.NewEngine(cfg.ScoringConfig())
	if err != nil {
		return nil, err
	}

	buckets, err := cluster.CompileBucketPatterns(cfg.Patterns.Buckets)
	if err != nil {
		return nil, err
	}

	market := geo.Lookup(cfg.Geo)
	rlCfg := cfg.RateLimit.Build()
	limiter := ratelimit.New(rlCfg)
	client := harvest.NewClient(limiter, market, rlCfg)

	embedder := buildEmbedder(cfg.Embeddings)
	p := &Pipeline{
		cfg:       cfg,
		harvester: harvest.New(client, market, cfg.Harvest),
		dedup:     dedup.New(cfg.Dedup.SimilarityThreshold),
		engine:    engine,
		buckets:   buckets,
		clusterer: cluster.NewEngine(embedder, cluster.Config{
			SilhouetteFloor: cfg.Clustering.SilhouetteFloor,
			Epsilon:         cfg.Clustering.Epsilon,
			Seed:            cfg.Clustering.Seed,
		}),
		volume:   &signals.HeuristicVolumeProvider{},
		embedder: embedder,
		now:      time.Now,
	}

	if cfg.Store.Path != "" {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		p.store = s
	}
	if cfg.Export.Dir != "" {
		p.exporter = export.New(cfg.Export.Dir)
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Close releases the pipeline's resources.
func (p *Pipeline) Close() error {
	var first error
	if p.embedder != nil {
		if err := p.embedder.Close(); err != nil {
			first = err
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Run executes one discovery run over the given seeds.
func (p *Pipeline) Run(ctx context.Context, seeds []keyword.SeedQuery) (*RunResult, error) {
	if err := validateSeeds(seeds); err != nil {
		return nil, err
	}

	started := p.now()
	result := &RunResult{}

	// Harvest.
	bySeed := p.harvester.Expand(ctx, seeds)
	raw := flatten(seeds, bySeed)
	result.Stats.Harvested = len(raw)
	result.DegradedSources = append(result.DegradedSources, p.harvester.DegradedSources()...)

	// Dedup.
	candidates := p.dedup.Clean(raw)
	result.Stats.Deduplicated = len(candidates)

	// Signal enrichment. Provider failures degrade to heuristic or
	// neutral values.
	inputs := p.enrich(ctx, candidates, result)

	// Score.
	result.Keywords = p.engine.ScoreBatch(inputs)
	result.Stats.Scored = len(result.Keywords)

	// Cluster, falling back to heuristic topic buckets when embeddings
	// are unavailable or the engine fails.
	result.Clusters = p.clusterKeywords(ctx, result)
	result.Stats.Clustered = countMembers(result.Clusters)

	p.persist(seeds, started, result)

	result.Partial = ctx.Err() != nil
	result.Duration = p.now().Sub(started)
	if st, ok := p.harvester.(interface{ Stats() ratelimit.Stats }); ok {
		result.LimiterStats = st.Stats()
	}

	slog.Info("run complete",
		"harvested", result.Stats.Harvested,
		"deduplicated", result.Stats.Deduplicated,
		"scored", result.Stats.Scored,
		"clusters", len(result.Clusters),
		"degraded", result.DegradedSources,
		"partial", result.Partial,
		"duration", result.Duration)
	return result, nil
}

func validateSeeds(seeds []keyword.SeedQuery) error {
	if len(seeds) == 0 {
		return scouterr.ValidationError("at least one seed query is required", nil)
	}
	for _, s := range seeds {
		if strings.TrimSpace(s.Text) == "" {
			return scouterr.ValidationError("seed queries must not be blank", nil)
		}
	}
	return nil
}

// flatten merges per-seed suggestions in seed order, so downstream
// first-occurrence dedup is deterministic across runs.
func flatten(seeds []keyword.SeedQuery, bySeed map[string][]keyword.RawSuggestion) []keyword.RawSuggestion {
	var out []keyword.RawSuggestion
	for _, seed := range seeds {
		out = append(out, bySeed[seed.Text]...)
	}
	return out
}

// enrich attaches volume, trend, and competition signals to candidates.
func (p *Pipeline) enrich(ctx context.Context, candidates []keyword.Candidate, result *RunResult) []score.Input {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.NormalizedText
	}

	volumes := map[string]int{}
	if p.volume != nil {
		v, err := p.volume.Volumes(ctx, texts)
		if err != nil {
			slog.Warn("volume provider failed, using heuristic estimates", "error", err)
			result.DegradedSources = append(result.DegradedSources, "volume")
		} else {
			volumes = v
		}
	}

	trends := map[string]float64{}
	if p.trend != nil {
		t, err := p.trend.Trends(ctx, texts, p.cfg.Geo)
		if err != nil {
			slog.Warn("trend provider failed, using neutral trend", "error", err)
			result.DegradedSources = append(result.DegradedSources, "trends")
		} else {
			trends = t
		}
	}

	inputs := make([]score.Input, len(candidates))
	for i, c := range candidates {
		volume, ok := volumes[c.NormalizedText]
		if !ok {
			volume = signals.EstimateVolume(c.NormalizedText)
		}
		inputs[i] = score.Input{
			Candidate:   c,
			Volume:      volume,
			TrendScore:  trends[c.NormalizedText],
			Competition: signals.EstimateCompetition(c.NormalizedText),
		}
	}
	return inputs
}

func (p *Pipeline) clusterKeywords(ctx context.Context, result *RunResult) []keyword.Cluster {
	clusters, err := p.clusterer.Cluster(ctx, result.Keywords, p.cfg.Clustering.TargetClusters)
	if err == nil {
		return clusters
	}
	if scouterr.GetCode(err) == scouterr.ErrCodeProviderUnavailable {
		slog.Warn("embedding-based clustering unavailable, using heuristic buckets")
	} else {
		slog.Warn("clustering failed, using heuristic buckets", "error", err)
	}
	result.DegradedSources = append(result.DegradedSources, "clustering")
	return p.buckets.Clusters(result.Keywords)
}

// persist writes the run to the store and export artifacts when configured.
// Failures here degrade: the in-memory result is already complete.
func (p *Pipeline) persist(seeds []keyword.SeedQuery, started time.Time, result *RunResult) {
	if p.store != nil {
		if n, err := p.store.InsertKeywords(result.Keywords); err != nil {
			slog.Warn("keyword store insert failed", "error", err)
			result.DegradedSources = append(result.DegradedSources, "store")
		} else {
			slog.Debug("keywords stored", "rows", n)
		}

		seedTexts := make([]string, len(seeds))
		for i, s := range seeds {
			seedTexts[i] = s.Text
		}
		err := p.store.RecordRun(store.RunStats{
			StartedAt:       started,
			FinishedAt:      p.now(),
			Seeds:           seedTexts,
			Geo:             p.cfg.Geo,
			Language:        p.cfg.Language,
			Harvested:       result.Stats.Harvested,
			Deduplicated:    result.Stats.Deduplicated,
			Scored:          result.Stats.Scored,
			Clustered:       result.Stats.Clustered,
			DegradedSources: result.DegradedSources,
		})
		if err != nil {
			slog.Warn("run stats insert failed", "error", err)
		}
	}

	if p.exporter != nil {
		if path, err := p.exporter.Keywords(result.Keywords); err != nil {
			slog.Warn("keyword export failed", "error", err)
			result.DegradedSources = append(result.DegradedSources, "export")
		} else if path != "" {
			slog.Info("keywords exported", "path", path)
		}
		if path, err := p.exporter.Clusters(result.Clusters); err != nil {
			slog.Warn("cluster export failed", "error", err)
		} else if path != "" {
			slog.Info("clusters exported", "path", path)
		}
	}
}

func countMembers(clusters []keyword.Cluster) int {
	n := 0
	for _, c := range clusters {
		n += len(c.Members)
	}
	return n
}

// buildEmbedder constructs the embedding provider chain from config:
// provider wrapped in an LRU cache, persisted when a cache path is set.
func buildEmbedder(cfg config.Embeddings) embed.Embedder {
	var inner embed.Embedder
	switch strings.ToLower(cfg.Provider) {
	case "none":
		return nil
	case "http":
		inner = embed.NewHTTPEmbedder(embed.HTTPConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	default:
		inner = embed.NewStaticEmbedder()
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = embed.DefaultEmbeddingCacheSize
	}
	if cfg.CachePath != "" {
		return embed.NewPersistentCachedEmbedder(inner, size, cfg.CachePath)
	}
	return embed.NewCachedEmbedder(inner, size)
}
