// Package signals supplies external scoring inputs: search volume, trend
// interest, and competition estimates. Providers are interfaces so the
// pipeline can run with heuristic estimators when no external source is
// configured; a missing entry in a provider's result map means "no data"
// and degrades to a neutral value upstream, never an abort.
package signals

import (
	"context"
	"strings"

	"github.com/keywordscout/keywordscout/internal/keyword"
)

// VolumeProvider estimates monthly search volume for keywords. Keywords
// absent from the result map have no data.
type VolumeProvider interface {
	Volumes(ctx context.Context, keywords []string) (map[string]int, error)
}

// TrendProvider returns 0-100 trend interest scores. Keywords absent from
// the result map have no data.
type TrendProvider interface {
	Trends(ctx context.Context, keywords []string, geoCode string) (map[string]float64, error)
}

// Compile-time interface checks.
var (
	_ VolumeProvider = (*HeuristicVolumeProvider)(nil)
	_ TrendProvider  = (*BatchedTrendClient)(nil)
)

// HeuristicVolumeProvider estimates volume from keyword shape alone:
// shorter phrases get higher bases, with small adjustments for price,
// free, course, and local-place modifiers. Used when no external volume
// source is configured.
type HeuristicVolumeProvider struct{}

// Volumes implements VolumeProvider. Never fails and never omits a keyword.
func (p *HeuristicVolumeProvider) Volumes(_ context.Context, keywords []string) (map[string]int, error) {
	out := make(map[string]int, len(keywords))
	for _, kw := range keywords {
		out[kw] = EstimateVolume(kw)
	}
	return out, nil
}

var (
	priceTerms  = []string{"precio", "costo", "tarifa"}
	freeTerms   = []string{"gratis", "free"}
	courseTerms = []string{"curso", "clase", "diplomado", "certificado"}
	placeTerms  = []string{"lima", "perú", "peru", "madrid", "cdmx"}
	buyingTerms = []string{"precio", "costo", "mejor", "top", "comprar", "contratar"}
	minVolume   = 10
	volumeBases = []int{20000, 8000, 4000, 2000, 1200}
	compBases   = []float64{0.85, 0.7, 0.55, 0.45, 0.35}
	compMin     = 0.1
	compMax     = 0.95
)

// EstimateVolume returns a heuristic monthly volume for one keyword.
func EstimateVolume(kw string) int {
	if kw == "" {
		return 0
	}
	lower := strings.ToLower(kw)
	wc := len(strings.Fields(lower))

	idx := wc - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(volumeBases) {
		idx = len(volumeBases) - 1
	}
	base := float64(volumeBases[idx])

	if containsAny(lower, priceTerms) {
		base *= 0.9
	}
	if containsAny(lower, freeTerms) {
		base *= 1.1
	}
	if containsAny(lower, courseTerms) {
		base *= 0.85
	}
	// Local searches have lower absolute volume.
	if containsAny(lower, placeTerms) {
		base *= 0.7
	}

	if v := int(base); v > minVolume {
		return v
	}
	return minVolume
}

// EstimateCompetition returns a heuristic 0-1 competition level for one
// keyword: shorter phrases are more contested, commercial terms raise the
// estimate, very long tails and geo qualifiers lower it slightly.
func EstimateCompetition(kw string) float64 {
	if kw == "" {
		return 0.5
	}
	lower := strings.ToLower(kw)
	wc := len(strings.Fields(lower))

	idx := wc - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(compBases) {
		idx = len(compBases) - 1
	}
	comp := compBases[idx]

	if containsAny(lower, buyingTerms) {
		comp += 0.1
	}
	if wc >= 5 {
		comp -= 0.05
	}
	if containsAny(lower, placeTerms) {
		comp -= 0.05
	}

	if comp < compMin {
		return compMin
	}
	if comp > compMax {
		return compMax
	}
	return comp
}

// EnrichCandidates attaches heuristic volume and competition estimates to
// candidates, returning one row per candidate in input order.
func EnrichCandidates(candidates []keyword.Candidate) []Enriched {
	out := make([]Enriched, len(candidates))
	for i, c := range candidates {
		out[i] = Enriched{
			Candidate:   c,
			Volume:      EstimateVolume(c.NormalizedText),
			Competition: EstimateCompetition(c.NormalizedText),
		}
	}
	return out
}

// Enriched is a candidate plus its raw external signals.
type Enriched struct {
	keyword.Candidate

	Volume      int
	TrendScore  float64
	Competition float64
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
