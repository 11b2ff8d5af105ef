package dedup

import (
	"log/slog"
	"strings"

	"github.com/keywordscout/keywordscout/internal/keyword"
)

// DefaultSimilarityThreshold is the fuzzy-duplicate cutoff.
const DefaultSimilarityThreshold = 0.85

// Deduplicator converts raw suggestions into unique candidates.
type Deduplicator struct {
	threshold float64
}

// New creates a Deduplicator. A non-positive threshold uses the default.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// accepted tracks one surviving candidate with its precomputed key.
type accepted struct {
	candidate keyword.Candidate
	key       string
}

// Clean runs both passes over raw suggestions and returns unique
// candidates in first-occurrence order. Running Clean on its own output
// yields the same set (idempotent).
//
// Pass 1 drops invalid strings and exact case-insensitive duplicates.
// Pass 2 compares each survivor's comparison key against every already
// accepted candidate; at or above the similarity threshold the new entry
// either replaces the accepted one (when its display text is shorter with
// no more words) or is discarded. First match wins.
//
// Quadratic in the number of survivors, which is bounded to hundreds per
// run.
func (d *Deduplicator) Clean(raw []keyword.RawSuggestion) []keyword.Candidate {
	type cleanedSuggestion struct {
		display    string
		normalized string
		raw        keyword.RawSuggestion
	}

	seen := make(map[string]struct{}, len(raw))
	basic := make([]cleanedSuggestion, 0, len(raw))

	for _, r := range raw {
		display := CleanText(r.Text)
		normalized := strings.ToLower(display)
		if !Valid(normalized) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		basic = append(basic, cleanedSuggestion{display: display, normalized: normalized, raw: r})
	}

	kept := make([]accepted, 0, len(basic))
	for _, c := range basic {
		key := ComparisonKey(c.raw.Text)
		duplicate := false

		for i := range kept {
			if SimilarityRatio(key, kept[i].key) < d.threshold {
				continue
			}
			duplicate = true
			// Prefer the shorter, more general phrasing.
			if shorterAndSimpler(c.display, kept[i].candidate.DisplayText) {
				kept[i] = accepted{candidate: toCandidate(c.display, c.normalized, c.raw), key: key}
			}
			break
		}

		if !duplicate {
			kept = append(kept, accepted{candidate: toCandidate(c.display, c.normalized, c.raw), key: key})
		}
	}

	out := make([]keyword.Candidate, len(kept))
	for i, a := range kept {
		out[i] = a.candidate
	}
	slog.Debug("deduplication complete",
		"raw", len(raw), "after_basic", len(basic), "after_fuzzy", len(out))
	return out
}

// shorterAndSimpler reports whether a should replace b: strictly fewer
// characters and no more words.
func shorterAndSimpler(a, b string) bool {
	return len(a) < len(b) && strings.Count(a, " ") <= strings.Count(b, " ")
}

func toCandidate(display, normalized string, r keyword.RawSuggestion) keyword.Candidate {
	return keyword.Candidate{
		NormalizedText: normalized,
		DisplayText:    display,
		SourceLabel:    string(r.Source),
		DiscoveredFrom: r.SourceSeed,
	}
}
