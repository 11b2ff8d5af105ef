package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywordscout/keywordscout/internal/config"
	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/keyword"
	"github.com/keywordscout/keywordscout/internal/store"
)

// fakeExpander serves canned suggestions without any network access.
type fakeExpander struct {
	bySeed   map[string][]keyword.RawSuggestion
	degraded []string
}

func (f *fakeExpander) Expand(_ context.Context, _ []keyword.SeedQuery) map[string][]keyword.RawSuggestion {
	return f.bySeed
}

func (f *fakeExpander) DegradedSources() []string { return f.degraded }

type failingVolumeProvider struct{}

func (failingVolumeProvider) Volumes(context.Context, []string) (map[string]int, error) {
	return nil, errors.New("volume api down")
}

type failingTrendProvider struct{}

func (failingTrendProvider) Trends(context.Context, []string, string) (map[string]float64, error) {
	return nil, errors.New("trend api down")
}

func suggestions(seed string, texts ...string) map[string][]keyword.RawSuggestion {
	out := make([]keyword.RawSuggestion, len(texts))
	for i, t := range texts {
		out[i] = keyword.RawSuggestion{Text: t, SourceSeed: seed, Source: keyword.ChannelAutocomplete}
	}
	return map[string][]keyword.RawSuggestion{seed: out}
}

func seedList(texts ...string) []keyword.SeedQuery {
	out := make([]keyword.SeedQuery, len(texts))
	for i, t := range texts {
		out[i] = keyword.SeedQuery{Text: t, Geo: "PE", Language: "es"}
	}
	return out
}

func newTestPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRunRejectsEmptySeeds(t *testing.T) {
	p := newTestPipeline(t, config.Default())

	_, err := p.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeInvalidInput, scouterr.GetCode(err))
}

func TestRunRejectsBlankSeed(t *testing.T) {
	p := newTestPipeline(t, config.Default())

	_, err := p.Run(context.Background(), seedList("seo", "   "))
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeInvalidInput, scouterr.GetCode(err))
}

func TestNewRejectsInvalidWeights(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.Ensemble.Trend = 0.5

	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeInvalidWeights, scouterr.GetCode(err))
}

func TestRunEndToEndWithHeuristicClusters(t *testing.T) {
	exportDir := t.TempDir()
	cfg := config.Default()
	cfg.Embeddings.Provider = "none"
	cfg.Export.Dir = exportDir

	s, err := store.Open(":memory:")
	require.NoError(t, err)

	expander := &fakeExpander{bySeed: suggestions("seo",
		"curso seo",
		"Curso SEO", // exact duplicate after normalization
		"agencia marketing lima",
		"herramientas email marketing",
	)}
	p := newTestPipeline(t, cfg, WithExpander(expander), WithStore(s))

	result, err := p.Run(context.Background(), seedList("seo"))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Stats.Harvested)
	assert.Equal(t, 3, result.Stats.Deduplicated)
	assert.Equal(t, 3, result.Stats.Scored)
	assert.Equal(t, 3, result.Stats.Clustered, "every keyword lands in a cluster")
	require.Len(t, result.Keywords, 3)
	assert.False(t, result.Partial)

	// Without embeddings, clustering degrades to heuristic buckets.
	assert.Contains(t, result.DegradedSources, "clustering")
	assert.NotEmpty(t, result.Clusters)

	// Scores are bounded and ordered.
	for i, kw := range result.Keywords {
		assert.GreaterOrEqual(t, kw.FinalScore, 0.0)
		assert.LessOrEqual(t, kw.FinalScore, 100.0)
		assert.Equal(t, "PE", kw.Geo)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Keywords[i-1].FinalScore, kw.FinalScore)
		}
	}

	// Persistence and export ran.
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	names := []string{entries[0].Name(), entries[1].Name()}
	assert.True(t, strings.HasPrefix(names[0], "clusters_") || strings.HasPrefix(names[1], "clusters_"))
	assert.True(t, strings.HasPrefix(names[0], "keywords_") || strings.HasPrefix(names[1], "keywords_"))
}

func TestRunClustersWithStaticEmbeddings(t *testing.T) {
	cfg := config.Default()
	expander := &fakeExpander{bySeed: suggestions("seo",
		"curso seo", "agencia seo lima", "herramientas seo gratis",
	)}
	p := newTestPipeline(t, cfg, WithExpander(expander))

	result, err := p.Run(context.Background(), seedList("seo"))
	require.NoError(t, err)

	assert.NotContains(t, result.DegradedSources, "clustering")
	assert.NotEmpty(t, result.Clusters)
	assert.Equal(t, result.Stats.Scored, result.Stats.Clustered)
}

func TestRunDegradesOnProviderFailures(t *testing.T) {
	cfg := config.Default()
	cfg.Embeddings.Provider = "none"
	expander := &fakeExpander{bySeed: suggestions("seo", "curso seo", "agencia seo lima")}

	p := newTestPipeline(t, cfg,
		WithExpander(expander),
		WithVolumeProvider(failingVolumeProvider{}),
		WithTrendProvider(failingTrendProvider{}),
	)

	result, err := p.Run(context.Background(), seedList("seo"))
	require.NoError(t, err, "provider failures degrade, they never abort")

	assert.Contains(t, result.DegradedSources, "volume")
	assert.Contains(t, result.DegradedSources, "trends")
	for _, kw := range result.Keywords {
		assert.Positive(t, kw.VolumeEstimate, "heuristic volume fallback")
		assert.Zero(t, kw.TrendScore, "neutral trend fallback")
	}
}

func TestRunCarriesHarvestDegradation(t *testing.T) {
	cfg := config.Default()
	cfg.Embeddings.Provider = "none"
	expander := &fakeExpander{
		bySeed:   suggestions("seo", "curso seo"),
		degraded: []string{"video"},
	}
	p := newTestPipeline(t, cfg, WithExpander(expander))

	result, err := p.Run(context.Background(), seedList("seo"))
	require.NoError(t, err)
	assert.Contains(t, result.DegradedSources, "video")
}

func TestRunMarksPartialOnCancellation(t *testing.T) {
	cfg := config.Default()
	cfg.Embeddings.Provider = "none"
	expander := &fakeExpander{bySeed: suggestions("seo", "curso seo")}
	p := newTestPipeline(t, cfg, WithExpander(expander))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, seedList("seo"))
	require.NoError(t, err)
	assert.True(t, result.Partial)
}
