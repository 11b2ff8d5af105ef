package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywordscout/keywordscout/internal/keyword"
)

func raw(texts ...string) []keyword.RawSuggestion {
	out := make([]keyword.RawSuggestion, len(texts))
	for i, t := range texts {
		out[i] = keyword.RawSuggestion{Text: t, SourceSeed: "seo", Source: keyword.ChannelAutocomplete}
	}
	return out
}

func normalizedTexts(cands []keyword.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.NormalizedText
	}
	return out
}

func TestCleanCaseInsensitiveExactDedup(t *testing.T) {
	d := New(0)
	got := d.Clean(raw("seo", "que es seo", "curso seo", "SEO"))

	require.Len(t, got, 3)
	assert.Equal(t, []string{"seo", "que es seo", "curso seo"}, normalizedTexts(got))
}

func TestCleanIdempotent(t *testing.T) {
	d := New(0)
	first := d.Clean(raw("curso de marketing", "Curso de Marketing 2024", "cursos de marketing", "marketing digital"))

	asRaw := make([]keyword.RawSuggestion, len(first))
	for i, c := range first {
		asRaw[i] = keyword.RawSuggestion{Text: c.DisplayText, SourceSeed: c.DiscoveredFrom}
	}
	second := d.Clean(asRaw)
	assert.Equal(t, normalizedTexts(first), normalizedTexts(second))
}

func TestCleanFuzzyPluralDuplicate(t *testing.T) {
	d := New(0)
	got := d.Clean(raw("curso de marketing", "cursos de marketing"))

	require.Len(t, got, 1)
	// The shorter singular survives as the display text.
	assert.Equal(t, "curso de marketing", got[0].DisplayText)
}

func TestCleanShorterReplacement(t *testing.T) {
	d := New(0)
	// The longer variant arrives first; the shorter near-duplicate should
	// replace it in place.
	got := d.Clean(raw("cursos de marketing", "curso de marketing"))

	require.Len(t, got, 1)
	assert.Equal(t, "curso de marketing", got[0].DisplayText)
}

func TestCleanDropsYearTokens(t *testing.T) {
	d := New(0)
	got := d.Clean(raw("marketing digital 2025"))
	require.Len(t, got, 1)
	assert.Equal(t, "marketing digital", got[0].NormalizedText)
}

func TestCleanPreservesSourceMetadata(t *testing.T) {
	d := New(0)
	got := d.Clean([]keyword.RawSuggestion{
		{Text: "Curso SEO Lima", SourceSeed: "seo", Source: keyword.ChannelRelated},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "curso seo lima", got[0].NormalizedText)
	assert.Equal(t, "Curso SEO Lima", got[0].DisplayText)
	assert.Equal(t, "related", got[0].SourceLabel)
	assert.Equal(t, "seo", got[0].DiscoveredFrom)
}

func TestValidRejections(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"seo", true},
		{"ab", false},
		{"", false},
		{"12345", false},
		{"visita www punto com", false},
		{"marketing digital", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.valid, Valid(tc.in), "input %q", tc.in)
	}
}

func TestCleanTextStripsNoise(t *testing.T) {
	assert.Equal(t, "Qué es SEO", CleanText("¿Qué es SEO?"))
	assert.Equal(t, "marketing digital", CleanText("marketing -- digital"))
	assert.Equal(t, "curso seo", CleanText("  curso   seo  "))
}

func TestComparisonKeyNormalizesAccentsPluralsStopwords(t *testing.T) {
	assert.Equal(t, ComparisonKey("cursos de marketing"), ComparisonKey("curso marketing"))
	assert.Equal(t, ComparisonKey("qué es seo"), ComparisonKey("que es seo"))
}

func TestSimilarityRatio(t *testing.T) {
	assert.InDelta(t, 1.0, SimilarityRatio("curso seo", "curso seo"), 1e-9)
	assert.InDelta(t, 1.0, SimilarityRatio("", ""), 1e-9, "equal inputs always score 1.0")
	assert.Greater(t, SimilarityRatio("curso seo", "curso seo lima"), 0.7)
	assert.Less(t, SimilarityRatio("curso seo", "agencia publicidad"), 0.5)
	assert.Zero(t, SimilarityRatio("", "curso"))
}
