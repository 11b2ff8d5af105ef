package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

func input(text string, volume int, trend, competition float64) Input {
	return Input{
		Candidate: keyword.Candidate{
			NormalizedText: text,
			DisplayText:    text,
		},
		Volume:      volume,
		TrendScore:  trend,
		Competition: competition,
	}
}

func newEnsembleEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestNewEngineRejectsBadWeightSums(t *testing.T) {
	for _, sum := range []float64{0.9, 1.1} {
		cfg := DefaultConfig()
		cfg.Ensemble = EnsembleWeights{Trend: sum} // all weight on one signal
		_, err := NewEngine(cfg)
		require.Error(t, err, "weight sum %.1f must be rejected", sum)
		assert.Equal(t, scouterr.ErrCodeInvalidWeights, scouterr.GetCode(err))
	}
}

func TestNewEngineAcceptsWeightSumWithinTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ensemble.Trend += 0.0005
	_, err := NewEngine(cfg)
	assert.NoError(t, err)
}

func TestNewEngineRejectsBadStandardizedWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeStandardized
	cfg.Standardized.RelevanceWeight = 0.9 // sum now 1.45
	_, err := NewEngine(cfg)
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeInvalidWeights, scouterr.GetCode(err))
}

func TestNewEngineRejectsUnknownMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "fancy"
	_, err := NewEngine(cfg)
	assert.Error(t, err)
}

func TestScoreBatchEmptyInput(t *testing.T) {
	e := newEnsembleEngine(t)
	assert.Empty(t, e.ScoreBatch(nil))
}

func TestScoreBatchBoundsAndOrdering(t *testing.T) {
	e := newEnsembleEngine(t)
	got := e.ScoreBatch([]Input{
		input("agencia marketing digital lima", 2000, 80, 0.4),
		input("marketing", 20000, 50, 0.85),
		input("que es marketing", 4000, 10, 0.5),
		input("curso seo lima", 1500, 60, 0.45),
	})

	require.Len(t, got, 4)
	for i, kw := range got {
		assert.GreaterOrEqual(t, kw.FinalScore, 0.0, "keyword %q", kw.NormalizedText)
		assert.LessOrEqual(t, kw.FinalScore, 100.0, "keyword %q", kw.NormalizedText)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].FinalScore, kw.FinalScore, "batch must be sorted descending")
		}
	}
	assert.Equal(t, "PE", got[0].Geo)
	assert.False(t, got[0].ScoredAt.IsZero())
}

func TestTransactionalGeoKeywordAvoidsPenalties(t *testing.T) {
	e := newEnsembleEngine(t)
	got := e.ScoreBatch([]Input{
		input("agencia marketing digital lima", 2000, 80, 0.4),
		input("marketing", 20000, 50, 0.85),
	})

	var target keyword.ScoredKeyword
	for _, kw := range got {
		if kw.NormalizedText == "agencia marketing digital lima" {
			target = kw
		}
	}
	require.NotEmpty(t, target.NormalizedText)

	assert.Equal(t, IntentTransactional, target.IntentWeight, "agencia is a transactional pattern")
	assert.Equal(t, 1.0, target.GeoWeight, "lima grants full geo weight")
	assert.Empty(t, target.AppliedPenalties)
	assert.Contains(t, target.AppliedBonuses, BonusOptimalLongtail, "four words qualify for the long-tail bonus")
}

func TestSingleWordGetsTooGenericPenalty(t *testing.T) {
	cfg := DefaultConfig()
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	got := e.ScoreBatch([]Input{
		input("marketing", 20000, 50, 0.85),
		input("curso de marketing digital", 3000, 40, 0.5),
	})

	var single keyword.ScoredKeyword
	for _, kw := range got {
		if kw.NormalizedText == "marketing" {
			single = kw
		}
	}
	require.NotEmpty(t, single.NormalizedText)
	assert.Contains(t, single.AppliedPenalties, PenaltyTooGeneric)
	assert.GreaterOrEqual(t, single.FinalScore, 0.0)
}

func TestGuardrailPenaltyMagnitude(t *testing.T) {
	e := newEnsembleEngine(t)

	s := enrichedSignals{}
	s.IntentWeight = IntentTransactional // keep the informational guardrail out
	s.GeoWeight = 1.0

	r := e.applyGuardrails("marketing", s, 50)
	assert.InDelta(t, 40, r.score, 1e-9, "single word loses exactly the too-generic penalty")
	assert.Equal(t, []string{PenaltyTooGeneric}, r.penalties)

	r = e.applyGuardrails("curso de marketing digital", s, 50)
	assert.InDelta(t, 53, r.score, 1e-9, "3-5 words gain the long-tail bonus")
	assert.Equal(t, []string{BonusOptimalLongtail}, r.bonuses)
}

func TestGuardrailScoreNeverNegative(t *testing.T) {
	e := newEnsembleEngine(t)
	s := enrichedSignals{}
	s.IntentWeight = IntentInformational
	s.GeoWeight = 0.6

	r := e.applyGuardrails("marketing", s, 5)
	assert.Zero(t, r.score)
	assert.ElementsMatch(t, []string{PenaltyInformationalNoGeo, PenaltyTooGeneric}, r.penalties)
}

func TestMarketBlocklistPenalty(t *testing.T) {
	e := newEnsembleEngine(t)
	s := enrichedSignals{}
	s.IntentWeight = IntentTransactional
	s.GeoWeight = 1.0

	// sepe is blocklisted for the PE market.
	r := e.applyGuardrails("tramites sepe online", s, 50)
	assert.Contains(t, r.penalties, PenaltyIrrelevantLocal)
	assert.InDelta(t, 50+3-6, r.score, 1e-9)
}

func TestStandardizedModeScoresAndReranks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeStandardized
	cfg.Standardized.IntentEnabled = true
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	low := input("que es seo", 1000, 20, 0.3)
	high := input("contratar agencia seo", 900, 18, 0.35)
	high.IntentProbability = 0.95

	got := e.ScoreBatch([]Input{low, high})
	require.Len(t, got, 2)
	for _, kw := range got {
		assert.GreaterOrEqual(t, kw.FinalScore, 0.0)
		assert.LessOrEqual(t, kw.FinalScore, 100.0)
	}
}

func TestMarketNormsForEmptyBatch(t *testing.T) {
	e := newEnsembleEngine(t)
	norms := e.MarketNormsFor(nil)
	assert.Equal(t, "PE", norms.Geo)
	assert.Equal(t, 100.0, norms.RelevanceMax)
	assert.Zero(t, norms.SampleSize)
}
