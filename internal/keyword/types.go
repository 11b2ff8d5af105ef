// Package keyword defines the data model shared by the discovery pipeline
// stages: seeds, raw suggestions, candidates, scored keywords, and clusters.
package keyword

import "time"

// SeedQuery is an input query to expand. Immutable.
type SeedQuery struct {
	Text     string
	Geo      string
	Language string
}

// Channel identifies the suggestion source a raw suggestion came from.
type Channel string

const (
	// ChannelAutocomplete is the generic autocomplete suggestion endpoint.
	ChannelAutocomplete Channel = "autocomplete"
	// ChannelVideo is the video-platform autocomplete endpoint.
	ChannelVideo Channel = "video"
	// ChannelRelated is the related-searches block on a result page.
	ChannelRelated Channel = "related"
)

// RawSuggestion is a single suggestion string as returned by a channel,
// before any normalization. Discarded after the dedup stage.
type RawSuggestion struct {
	Text       string
	SourceSeed string
	Source     Channel
}

// Candidate is a deduplicated, normalized suggestion eligible for scoring.
// NormalizedText is unique within a working set after deduplication;
// DisplayText retains the original casing and diacritics.
type Candidate struct {
	NormalizedText string
	DisplayText    string
	SourceLabel    string
	DiscoveredFrom string
}

// Signals holds the per-candidate inputs to scoring. Each field is
// independently computable; zero values mean "not populated".
type Signals struct {
	VolumeEstimate      int
	TrendScore          float64 // 0-100
	CompetitionEstimate float64 // 0-1, higher is more competitive
	IntentWeight        float64 // 0-1, transactional > commercial > informational
	GeoWeight           float64 // 1.0 with local place name, else 0.6
	SERPDifficulty      float64 // 0-1, higher is harder
	ClusterCentrality   float64 // 0-1
	FreshnessBoost      float64 // 0-0.15
	IntentProbability   float64 // optional transactional probability for re-ranking
}

// ScoredKeyword is a candidate with its signals and final score.
// Immutable once produced: re-scoring yields a new value.
type ScoredKeyword struct {
	Candidate
	Signals

	// FinalScore is clamped to [0,100] after guardrail adjustments.
	FinalScore float64

	// AppliedPenalties and AppliedBonuses record guardrail actions
	// for auditability.
	AppliedPenalties []string
	AppliedBonuses   []string

	Geo      string
	Language string
	ScoredAt time.Time
}

// WordCount returns the number of whitespace-separated words in the
// candidate's normalized text.
func (k ScoredKeyword) WordCount() int {
	n := 0
	inWord := false
	for _, r := range k.NormalizedText {
		if r == ' ' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// Cluster groups semantically related scored keywords. Every scored keyword
// belongs to exactly one cluster after clustering completes, including the
// overflow cluster for points a density algorithm abstained on.
type Cluster struct {
	ID      int
	Label   string
	Members []ScoredKeyword
}
