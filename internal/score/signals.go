package score

import (
	"math"
	"strings"
	"time"

	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

// volumeCeiling is the log-scale ceiling for volume normalization.
const volumeCeiling = 100000

// SignalCalculator derives per-keyword scoring signals from raw data.
// Everything here is a cheap heuristic over the keyword text; no network.
type SignalCalculator struct {
	market geo.Market
	intent *IntentTable

	// now is swapped out in tests for deterministic freshness behavior.
	now func() time.Time
}

// NewSignalCalculator creates a calculator for one target market using the
// default intent table.
func NewSignalCalculator(market geo.Market) *SignalCalculator {
	return &SignalCalculator{market: market, intent: defaultIntentTable, now: time.Now}
}

// Compute fills a Signals value for one candidate from its raw inputs.
func (c *SignalCalculator) Compute(in Input) keyword.Signals {
	lower := strings.ToLower(in.NormalizedText)
	return keyword.Signals{
		VolumeEstimate:      in.Volume,
		TrendScore:          clampFloat(in.TrendScore, 0, 100),
		CompetitionEstimate: clampFloat(in.Competition, 0, 1),
		IntentWeight:        c.intent.Weight(lower),
		GeoWeight:           c.geoWeight(lower),
		SERPDifficulty:      c.serpDifficulty(lower),
		ClusterCentrality:   clusterCentrality(lower),
		FreshnessBoost:      c.freshnessBoost(lower),
		IntentProbability:   in.IntentProbability,
	}
}

// NormalizeTrend maps a 0-100 trend score linearly to 0-1.
func NormalizeTrend(trend float64) float64 {
	return clampFloat(trend, 0, 100) / 100.0
}

// NormalizeVolumeLog maps a volume estimate to 0-1 on a log10 scale with a
// 100k ceiling. Zero or negative volume maps to 0.
func NormalizeVolumeLog(volume int) float64 {
	if volume <= 0 {
		return 0.0
	}
	logVolume := math.Log10(math.Max(1, float64(volume)))
	return math.Min(1.0, logVolume/math.Log10(volumeCeiling))
}

// geoWeight is 1.0 when the keyword mentions one of the market's place
// names, else the reduced 0.6 baseline.
func (c *SignalCalculator) geoWeight(lower string) float64 {
	if lower == "" {
		return 0.6
	}
	if c.market.ContainsPlaceTerm(lower) {
		return 1.0
	}
	return 0.6
}

// serpDifficulty is a fast difficulty estimate in [0.1, 0.9]. Shorter
// keywords are harder; strong brands and commercial terms raise difficulty;
// geo targeting lowers it.
func (c *SignalCalculator) serpDifficulty(lower string) float64 {
	if lower == "" {
		return 0.5
	}

	var base float64
	switch wc := wordCount(lower); {
	case wc == 1:
		base = 0.9
	case wc == 2:
		base = 0.7
	case wc <= 4:
		base = 0.5
	default:
		base = 0.3
	}

	if containsAny(lower, strongBrands) {
		base += 0.1
	}
	base += float64(countMatches(lower, commercialDifficultyTerms)) * 0.05
	if c.market.ContainsPlaceTerm(lower) {
		base -= 0.1
	}
	return clampFloat(base, 0.1, 0.9)
}

// clusterCentrality estimates how central the keyword is within its topic.
// Two- and three-word phrases sit near cluster centers; long-tail phrases
// do not. Core domain terms add a small lift.
func clusterCentrality(lower string) float64 {
	if lower == "" {
		return 0.5
	}

	var base float64
	switch wordCount(lower) {
	case 1:
		base = 0.9
	case 2:
		base = 0.8
	case 3:
		base = 0.7
	default:
		base = 0.4
	}

	if containsAny(lower, coreDomainTerms) {
		base += 0.1
	}
	return clampFloat(base, 0.1, 1.0)
}

// freshnessBoost rewards current-year mentions, trendy terms, and Q4
// seasonal terms, in that priority order.
func (c *SignalCalculator) freshnessBoost(lower string) float64 {
	if lower == "" {
		return 0.0
	}

	now := c.now()
	if strings.Contains(lower, now.Format("2006")) {
		return 0.15
	}
	if containsAny(lower, trendyTerms) {
		return 0.10
	}
	if now.Month() >= time.October && containsAny(lower, seasonalTerms) {
		return 0.12
	}
	return 0.0
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
