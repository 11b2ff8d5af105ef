package cluster

import (
	"fmt"
	"regexp"
	"sort"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

// BucketPattern is one entry in the ordered topic-bucket table used by
// degraded-mode clustering. Tables are data: they load from configuration
// and are walked in order, first match wins.
type BucketPattern struct {
	Label   string `yaml:"label"`
	Pattern string `yaml:"pattern"`
}

// DefaultBucketPatterns returns the built-in bucket table.
func DefaultBucketPatterns() []BucketPattern {
	return []BucketPattern{
		{Label: "cursos", Pattern: `\b(curso|clase|diplomado|certificado)s?\b`},
		{Label: "servicios", Pattern: `\b(agencia|empresa|servicio|proveedor|contratar)\b`},
		{Label: "precios", Pattern: `\b(precio|costo|tarifa|cuanto)\b`},
		{Label: "gratis", Pattern: `\b(gratis|free)\b`},
		{Label: "geo", Pattern: `\b(lima|perú|peru|madrid|cdmx|mexico|españa)\b`},
		{Label: "online", Pattern: `\bonline\b`},
		{Label: "guia", Pattern: `\bgu(í|i)a\b`},
		{Label: "herramientas", Pattern: `\bherramientas?\b`},
	}
}

// overflowBucketLabel collects keywords no pattern claimed.
const overflowBucketLabel = "otros"

// heuristicBucket is one compiled topic bucket.
type heuristicBucket struct {
	label   string
	pattern *regexp.Regexp
}

// BucketTable is a compiled, ordered bucket pattern table.
type BucketTable struct {
	buckets []heuristicBucket
}

// CompileBucketPatterns compiles patterns into a table, preserving order.
// An empty list compiles the defaults. Invalid regexes and empty labels are
// validation errors.
func CompileBucketPatterns(patterns []BucketPattern) (*BucketTable, error) {
	if len(patterns) == 0 {
		patterns = DefaultBucketPatterns()
	}

	buckets := make([]heuristicBucket, 0, len(patterns))
	for _, p := range patterns {
		if p.Label == "" {
			return nil, scouterr.ValidationError(
				fmt.Sprintf("bucket pattern %q has no label", p.Pattern), nil)
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, scouterr.ValidationError(
				fmt.Sprintf("bucket pattern %q does not compile", p.Pattern), err)
		}
		buckets = append(buckets, heuristicBucket{label: p.Label, pattern: re})
	}
	return &BucketTable{buckets: buckets}, nil
}

// defaultBucketTable backs HeuristicClusters; the defaults always compile.
var defaultBucketTable = func() *BucketTable {
	t, err := CompileBucketPatterns(nil)
	if err != nil {
		panic(err)
	}
	return t
}()

// HeuristicClusters groups keywords with the default bucket table.
func HeuristicClusters(kws []keyword.ScoredKeyword) []keyword.Cluster {
	return defaultBucketTable.Clusters(kws)
}

// Clusters groups keywords into the table's topic buckets. This is the
// degraded-mode replacement used when embedding-based clustering is
// unavailable: the first matching bucket claims each keyword, only
// non-empty buckets are returned, members sorted by score descending, IDs
// assigned in bucket declaration order with the overflow bucket last.
func (t *BucketTable) Clusters(kws []keyword.ScoredKeyword) []keyword.Cluster {
	buckets := make(map[string][]keyword.ScoredKeyword, len(t.buckets)+1)

	for _, kw := range kws {
		label := overflowBucketLabel
		for _, b := range t.buckets {
			if b.pattern.MatchString(kw.NormalizedText) {
				label = b.label
				break
			}
		}
		buckets[label] = append(buckets[label], kw)
	}

	clusters := make([]keyword.Cluster, 0, len(buckets))
	id := 1
	done := make(map[string]struct{}, len(buckets))
	appendBucket := func(label string) {
		if _, seen := done[label]; seen {
			return
		}
		done[label] = struct{}{}
		members := buckets[label]
		if len(members) == 0 {
			return
		}
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].FinalScore > members[b].FinalScore
		})
		clusters = append(clusters, keyword.Cluster{ID: id, Label: label, Members: members})
		id++
	}

	for _, b := range t.buckets {
		appendBucket(b.label)
	}
	appendBucket(overflowBucketLabel)

	return clusters
}
