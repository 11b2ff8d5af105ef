package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

func TestHeuristicClustersBucketsByTopic(t *testing.T) {
	input := scored(
		"curso seo",
		"diplomado marketing digital",
		"agencia publicidad",
		"precio hosting",
		"seo gratis",
		"marketing lima",
		"xyzzy quux",
	)

	got := HeuristicClusters(input)
	require.NotEmpty(t, got)
	assertCompleteness(t, input, got)

	byLabel := make(map[string][]keyword.ScoredKeyword)
	for _, c := range got {
		byLabel[c.Label] = append(byLabel[c.Label], c.Members...)
	}
	assert.Len(t, byLabel["cursos"], 2, "curso and diplomado share a bucket")
	assert.Len(t, byLabel["servicios"], 1)
	assert.Len(t, byLabel["precios"], 1)
	assert.Len(t, byLabel["gratis"], 1)
	assert.Len(t, byLabel["geo"], 1)
	assert.Len(t, byLabel["otros"], 1, "unmatched keywords overflow")
}

func TestHeuristicClustersFirstMatchWins(t *testing.T) {
	// "curso seo gratis lima" matches cursos, gratis, and geo; the earliest
	// bucket in declaration order claims it.
	got := HeuristicClusters(scored("curso seo gratis lima"))
	require.Len(t, got, 1)
	assert.Equal(t, "cursos", got[0].Label)
}

func TestHeuristicClustersOrderAndIDs(t *testing.T) {
	got := HeuristicClusters(scored("precio hosting", "curso seo", "xyzzy"))
	require.Len(t, got, 3)

	// Declaration order with otros last, IDs sequential from 1.
	assert.Equal(t, "cursos", got[0].Label)
	assert.Equal(t, "precios", got[1].Label)
	assert.Equal(t, "otros", got[2].Label)
	for i, c := range got {
		assert.Equal(t, i+1, c.ID)
	}
}

func TestHeuristicClustersMembersSortedByScore(t *testing.T) {
	input := []keyword.ScoredKeyword{
		{Candidate: keyword.Candidate{NormalizedText: "curso seo"}, FinalScore: 40},
		{Candidate: keyword.Candidate{NormalizedText: "curso sem"}, FinalScore: 80},
	}
	got := HeuristicClusters(input)
	require.Len(t, got, 1)
	assert.Equal(t, "curso sem", got[0].Members[0].NormalizedText)
}

func TestHeuristicClustersEmptyInput(t *testing.T) {
	assert.Empty(t, HeuristicClusters(nil))
}

func TestCompileBucketPatternsEmptyUsesDefaults(t *testing.T) {
	table, err := CompileBucketPatterns(nil)
	require.NoError(t, err)

	got := table.Clusters(scored("curso seo"))
	require.Len(t, got, 1)
	assert.Equal(t, "cursos", got[0].Label)
}

func TestCompileBucketPatternsRejectsBadRegex(t *testing.T) {
	_, err := CompileBucketPatterns([]BucketPattern{{Label: "broken", Pattern: `[unclosed`}})
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeInvalidInput, scouterr.GetCode(err))
}

func TestCompileBucketPatternsRejectsEmptyLabel(t *testing.T) {
	_, err := CompileBucketPatterns([]BucketPattern{{Pattern: `\bseo\b`}})
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeInvalidInput, scouterr.GetCode(err))
}

func TestBucketTableCustomPatternsWalkInOrder(t *testing.T) {
	table, err := CompileBucketPatterns([]BucketPattern{
		{Label: "local", Pattern: `\blima\b`},
		{Label: "formacion", Pattern: `\bcurso\b`},
	})
	require.NoError(t, err)

	input := scored("curso seo lima", "curso sem", "hosting barato")
	got := table.Clusters(input)
	assertCompleteness(t, input, got)
	require.Len(t, got, 3)

	// "curso seo lima" matches both entries; the earlier one claims it.
	assert.Equal(t, "local", got[0].Label)
	assert.Equal(t, "formacion", got[1].Label)
	assert.Equal(t, "otros", got[2].Label)
}
