package score

import (
	"sort"
)

// EnsembleWeights are the per-signal weights of the default scoring mode.
// They must sum to 1.0 within a 0.001 tolerance.
type EnsembleWeights struct {
	Trend             float64 `yaml:"trend"`
	Volume            float64 `yaml:"volume"`
	Intent            float64 `yaml:"intent"`
	Geo               float64 `yaml:"geo"`
	SERPOpportunity   float64 `yaml:"serp_opportunity"`
	ClusterCentrality float64 `yaml:"cluster_centrality"`
	Freshness         float64 `yaml:"freshness"`
}

// DefaultEnsembleWeights returns the business-tuned weight set: intent and
// geo dominate because they track conversion value, trend and volume are
// deliberately dampened.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{
		Trend:             0.20,
		Volume:            0.18,
		Intent:            0.25,
		Geo:               0.15,
		SERPOpportunity:   0.12,
		ClusterCentrality: 0.05,
		Freshness:         0.05,
	}
}

// Sum returns the total of all weights.
func (w EnsembleWeights) Sum() float64 {
	return w.Trend + w.Volume + w.Intent + w.Geo + w.SERPOpportunity + w.ClusterCentrality + w.Freshness
}

// percentileTable holds sorted per-signal value lists for one batch, used
// to convert raw signal values into batch-relative percentile ranks.
type percentileTable struct {
	trendNorm  []float64
	volumeNorm []float64
	serpDiff   []float64
	centrality []float64
}

// buildPercentileTable collects and sorts the rank-normalized signals of a
// batch. Percentile ranking makes ensemble scores comparable across batches
// with very different absolute signal ranges.
func buildPercentileTable(signals []enrichedSignals) percentileTable {
	t := percentileTable{
		trendNorm:  make([]float64, 0, len(signals)),
		volumeNorm: make([]float64, 0, len(signals)),
		serpDiff:   make([]float64, 0, len(signals)),
		centrality: make([]float64, 0, len(signals)),
	}
	for _, s := range signals {
		t.trendNorm = append(t.trendNorm, s.trendNorm)
		t.volumeNorm = append(t.volumeNorm, s.volumeNorm)
		t.serpDiff = append(t.serpDiff, s.SERPDifficulty)
		t.centrality = append(t.centrality, s.ClusterCentrality)
	}
	sort.Float64s(t.trendNorm)
	sort.Float64s(t.volumeNorm)
	sort.Float64s(t.serpDiff)
	sort.Float64s(t.centrality)
	return t
}

// percentileRank returns the rank of value within sorted in [0,1]. Values
// at or below the minimum rank 0; at or above the maximum rank 1.
func percentileRank(value float64, sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	if value <= sorted[0] {
		return 0.0
	}
	if value >= sorted[len(sorted)-1] {
		return 1.0
	}
	for i, v := range sorted {
		if value <= v {
			return float64(i) / float64(len(sorted))
		}
	}
	return 1.0
}

// ensembleScore computes the weighted percentile-rank ensemble score on the
// 0-100 scale, before guardrails.
func ensembleScore(s enrichedSignals, table percentileTable, w EnsembleWeights) float64 {
	trendPct := percentileRank(s.trendNorm, table.trendNorm)
	volumePct := percentileRank(s.volumeNorm, table.volumeNorm)
	// SERP opportunity is inverted difficulty ranked against the
	// difficulty distribution.
	serpPct := percentileRank(1.0-s.SERPDifficulty, table.serpDiff)
	centralityPct := percentileRank(s.ClusterCentrality, table.centrality)

	score := w.Trend*trendPct +
		w.Volume*volumePct +
		w.SERPOpportunity*serpPct +
		w.ClusterCentrality*centralityPct +
		w.Intent*s.IntentWeight +
		w.Geo*s.GeoWeight +
		w.Freshness*s.FreshnessBoost

	return score * 100.0
}
