package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinMaxNormalizeSpread(t *testing.T) {
	scores := map[uint64]float64{1: 1.0, 2: 3.0}
	got := minMaxNormalize(scores)
	assert.InDelta(t, 0.0, got[1], 1e-9)
	assert.InDelta(t, 1.0, got[2], 1e-9)
}

func TestMinMaxNormalizeFlatScoresAllZero(t *testing.T) {
	scores := map[uint64]float64{1: 5.0, 2: 5.0}
	got := minMaxNormalize(scores)
	assert.Equal(t, 0.0, got[1])
	assert.Equal(t, 0.0, got[2])
}

func TestMinMaxNormalizeEmpty(t *testing.T) {
	assert.Empty(t, minMaxNormalize(nil))
}

// TestFuseHitsWorkedExample reproduces the exact worked example: keyword hits
// X=1.0, Y=3.0; vector hits (same X) 0.8, Z=0.4; alpha=0.5, limit=3.
// Expected fused scores: X=0.5, Y=1.0, Z=0.0, ranked Y, X, Z.
func TestFuseHitsWorkedExample(t *testing.T) {
	kw := []KeywordHit{{Content: "X", Score: 1.0}, {Content: "Y", Score: 3.0}}
	vec := []VectorHit{{Source: "X", Score: 0.8}, {Source: "Z", Score: 0.4}}

	hits := fuseHits(kw, vec, 0.5, 3)
	require.Len(t, hits, 3)

	assert.Equal(t, "Y", hits[0].Content)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	assert.Equal(t, "X", hits[1].Content)
	assert.InDelta(t, 0.5, hits[1].Score, 1e-9)

	assert.Equal(t, "Z", hits[2].Content)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-9)
}

func TestFuseHitsKeywordOnly(t *testing.T) {
	kw := []KeywordHit{{Content: "A", Score: 2.0}, {Content: "B", Score: 4.0}}
	hits := fuseHits(kw, nil, 0.5, 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "B", hits[0].Content)
	assert.Equal(t, fromKeyword, hits[0].From)
}

func TestFuseHitsEmptyBothSources(t *testing.T) {
	assert.Empty(t, fuseHits(nil, nil, 0.5, 10))
}

func TestFuseHitsRespectsLimit(t *testing.T) {
	kw := []KeywordHit{{Content: "A", Score: 1}, {Content: "B", Score: 2}, {Content: "C", Score: 3}}
	hits := fuseHits(kw, nil, 0.5, 2)
	assert.Len(t, hits, 2)
}

func TestFuseHitsOutputKeysSubsetOfInput(t *testing.T) {
	kw := []KeywordHit{{Content: "X", Score: 1.0}, {Content: "Y", Score: 3.0}}
	vec := []VectorHit{{Source: "X", Score: 0.8}, {Source: "Z", Score: 0.4}}
	hits := fuseHits(kw, vec, 0.5, 10)
	seen := map[string]bool{}
	for _, h := range hits {
		seen[h.Content] = true
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
	assert.True(t, seen["X"] && seen["Y"] && seen["Z"])
}
