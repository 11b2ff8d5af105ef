package cluster

import (
	"regexp"
	"sort"
	"strings"

	"github.com/keywordscout/keywordscout/internal/keyword"
)

// labelWordRegex matches label-worthy words, accented Latin included.
var labelWordRegex = regexp.MustCompile(`[a-záéíóúñü]+`)

// labelStopWords never appear in cluster labels.
var labelStopWords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "en": {}, "y": {}, "a": {},
	"para": {}, "con": {}, "del": {}, "las": {}, "los": {}, "que": {},
	"the": {}, "of": {}, "for": {}, "and": {}, "in": {}, "to": {},
}

// labelFor derives a human-readable label from cluster members: the two
// most frequent bigrams, falling back to the most frequent single words
// when the members share no bigram. A single member labels itself with its
// leading words.
func labelFor(members []keyword.ScoredKeyword) string {
	if len(members) == 0 {
		return "cluster"
	}
	if len(members) == 1 {
		words := strings.Fields(members[0].NormalizedText)
		if len(words) > 3 {
			words = words[:3]
		}
		return strings.Join(words, " ")
	}

	tokenLists := make([][]string, 0, len(members))
	for _, m := range members {
		words := labelWordRegex.FindAllString(strings.ToLower(m.NormalizedText), -1)
		kept := words[:0]
		for _, w := range words {
			if _, stop := labelStopWords[w]; !stop {
				kept = append(kept, w)
			}
		}
		tokenLists = append(tokenLists, kept)
	}

	bigrams := make(map[string]int)
	for _, tokens := range tokenLists {
		for i := 0; i+1 < len(tokens); i++ {
			bigrams[tokens[i]+" "+tokens[i+1]]++
		}
	}
	if label := topTerms(bigrams, 2); label != "" {
		return label
	}

	unigrams := make(map[string]int)
	for _, tokens := range tokenLists {
		for _, w := range tokens {
			unigrams[w]++
		}
	}
	if label := topTerms(unigrams, 2); label != "" {
		return label
	}
	return "cluster"
}

// topTerms joins the n most frequent terms, breaking frequency ties
// alphabetically for deterministic labels.
func topTerms(counts map[string]int, n int) string {
	type entry struct {
		term  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for term, count := range counts {
		entries = append(entries, entry{term, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].term < entries[j].term
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	terms := make([]string, len(entries))
	for i, e := range entries {
		terms[i] = e.term
	}
	return strings.Join(terms, " ")
}
