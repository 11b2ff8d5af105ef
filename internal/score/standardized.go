package score

import (
	"sort"
	"strings"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
)

// StandardizedVersion is the frozen formula version. The weights and the
// relevance heuristic must not change under this version string.
const StandardizedVersion = "v1.0.0"

// StandardizedConfig holds the frozen-formula weights and the optional
// intent re-ranking settings.
type StandardizedConfig struct {
	RelevanceWeight   float64 `yaml:"relevance"`
	VolumeWeight      float64 `yaml:"volume"`
	CompetitionWeight float64 `yaml:"competition"`
	TrendWeight       float64 `yaml:"trend"`

	// IntentEnabled turns on post-scoring intent re-ranking.
	IntentEnabled bool `yaml:"intent_enabled"`
	// IntentBaseMultiplier and IntentBoostFactor define the re-ranking
	// multiplier: base + boost * P(transactional).
	IntentBaseMultiplier float64 `yaml:"intent_base_multiplier"`
	IntentBoostFactor    float64 `yaml:"intent_boost_factor"`
}

// DefaultStandardizedConfig returns the frozen v1.0.0 weight set.
func DefaultStandardizedConfig() StandardizedConfig {
	return StandardizedConfig{
		RelevanceWeight:      0.45,
		VolumeWeight:         0.35,
		CompetitionWeight:    0.10,
		TrendWeight:          0.10,
		IntentBaseMultiplier: 0.9,
		IntentBoostFactor:    0.2,
	}
}

// Sum returns the total of the four formula weights.
func (c StandardizedConfig) Sum() float64 {
	return c.RelevanceWeight + c.VolumeWeight + c.CompetitionWeight + c.TrendWeight
}

// MarketNorms holds per-market min-max normalization bounds computed from
// one batch. Scores produced with the same norms are comparable; scores
// across markets are not.
type MarketNorms struct {
	Geo      string
	Language string

	RelevanceMin, RelevanceMax     float64
	VolumeMin, VolumeMax           float64
	CompetitionMin, CompetitionMax float64
	TrendMin, TrendMax             float64

	SampleSize int
}

// defaultMarketNorms are the bounds used for an empty batch.
func defaultMarketNorms(geoCode, language string) MarketNorms {
	return MarketNorms{
		Geo: geoCode, Language: language,
		RelevanceMax:   100.0,
		VolumeMax:      float64(volumeCeiling),
		CompetitionMax: 1.0,
		TrendMax:       100.0,
	}
}

// RelevanceScore is the standardized-mode relevance heuristic on a 0-100
// scale, evaluated against the default intent table: 50 baseline, +30
// transactional, +15 commercial, a 5-point penalty per word past six, and
// +5 for minimum viable length.
func RelevanceScore(text string) float64 {
	return defaultIntentTable.relevance(text)
}

// relevance is RelevanceScore against this table.
func (t *IntentTable) relevance(text string) float64 {
	if text == "" {
		return 0.0
	}
	lower := strings.TrimSpace(strings.ToLower(text))
	score := 50.0

	if t.matchesCategory(lower, CategoryTransactional) {
		score += 30.0
	}
	if t.matchesCategory(lower, CategoryCommercial) {
		score += 15.0
	}

	if wc := wordCount(lower); wc > 6 {
		score -= float64(wc-6) * 5.0
	}
	if len(lower) >= 3 {
		score += 5.0
	}
	return clampFloat(score, 0.0, 100.0)
}

// computeMarketNorms derives min-max bounds from a batch's raw values.
func computeMarketNorms(signals []enrichedSignals, geoCode, language string) MarketNorms {
	if len(signals) == 0 {
		return defaultMarketNorms(geoCode, language)
	}

	norms := MarketNorms{Geo: geoCode, Language: language, SampleSize: len(signals)}
	for i, s := range signals {
		relevance := s.relevanceRaw
		volume := float64(s.VolumeEstimate)
		competition := s.CompetitionEstimate
		trend := s.TrendScore

		if i == 0 {
			norms.RelevanceMin, norms.RelevanceMax = relevance, relevance
			norms.VolumeMin, norms.VolumeMax = volume, volume
			norms.CompetitionMin, norms.CompetitionMax = competition, competition
			norms.TrendMin, norms.TrendMax = trend, trend
			continue
		}
		norms.RelevanceMin = minFloat(norms.RelevanceMin, relevance)
		norms.RelevanceMax = maxFloat(norms.RelevanceMax, relevance)
		norms.VolumeMin = minFloat(norms.VolumeMin, volume)
		norms.VolumeMax = maxFloat(norms.VolumeMax, volume)
		norms.CompetitionMin = minFloat(norms.CompetitionMin, competition)
		norms.CompetitionMax = maxFloat(norms.CompetitionMax, competition)
		norms.TrendMin = minFloat(norms.TrendMin, trend)
		norms.TrendMax = maxFloat(norms.TrendMax, trend)
	}
	return norms
}

// normalizeMinMax maps value into [0,1] against the given bounds. A
// degenerate range (max <= min) yields the neutral 0.5.
func normalizeMinMax(value, minVal, maxVal float64) float64 {
	if maxVal <= minVal {
		return 0.5
	}
	return clampFloat((value-minVal)/(maxVal-minVal), 0.0, 1.0)
}

// standardizedScore applies the frozen formula for one keyword against the
// batch's market norms, on the 0-100 scale.
func standardizedScore(s enrichedSignals, norms MarketNorms, cfg StandardizedConfig) float64 {
	relevanceNorm := normalizeMinMax(s.relevanceRaw, norms.RelevanceMin, norms.RelevanceMax)
	volumeNorm := normalizeMinMax(float64(s.VolumeEstimate), norms.VolumeMin, norms.VolumeMax)
	competitionNorm := normalizeMinMax(s.CompetitionEstimate, norms.CompetitionMin, norms.CompetitionMax)
	trendNorm := normalizeMinMax(s.TrendScore, norms.TrendMin, norms.TrendMax)

	score := relevanceNorm*cfg.RelevanceWeight +
		volumeNorm*cfg.VolumeWeight +
		(1.0-competitionNorm)*cfg.CompetitionWeight +
		trendNorm*cfg.TrendWeight

	return score * 100.0
}

// validateStandardized checks the frozen weight sum at construction time.
func validateStandardized(cfg StandardizedConfig) error {
	if sum := cfg.Sum(); sum < 0.999 || sum > 1.001 {
		return scouterr.WeightsError(sum)
	}
	return nil
}

// rerankByIntent applies the optional intent multiplier, score ×
// (base + boost·P), to keywords with a known transactional probability and
// re-sorts the batch. Keywords without a probability keep their score.
func rerankByIntent(scored []scoredEntry, cfg StandardizedConfig) int {
	reranked := 0
	for i := range scored {
		p := scored[i].signals.IntentProbability
		if p <= 0 {
			continue
		}
		multiplier := cfg.IntentBaseMultiplier + cfg.IntentBoostFactor*p
		scored[i].score *= multiplier
		reranked++
	}
	if reranked > 0 {
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].score > scored[j].score
		})
	}
	return reranked
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
