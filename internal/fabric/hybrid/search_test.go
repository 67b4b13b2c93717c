package hybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retrievalfabric/core/internal/fabric/symbols"
)

func TestAddRankedAssignsDecreasingRRFByRank(t *testing.T) {
	candidates := make(map[string]*candidate)
	docs := []rankedDoc{
		{docID: "a.go-0", filePath: "a.go", chunkIndex: 0},
		{docID: "b.go-0", filePath: "b.go", chunkIndex: 0},
	}
	addRanked(candidates, docs, MatchSemantic)

	first := candidates["a.go-0"].score
	second := candidates["b.go-0"].score
	assert.Greater(t, first, second)
	assert.InDelta(t, 1.0/61.0, first, 1e-9)
	assert.InDelta(t, 1.0/62.0, second, 1e-9)
}

func TestMatchTypePriorityOrdering(t *testing.T) {
	assert.Greater(t, MatchExact.priority(), MatchStatistical.priority())
	assert.Greater(t, MatchStatistical.priority(), MatchSemantic.priority())
	assert.Greater(t, MatchSemantic.priority(), MatchType("unknown").priority())
}

func TestRankCandidatesTieBreaksByMatchTypeThenStartLine(t *testing.T) {
	candidates := map[string]*candidate{
		"a": {docID: "a", filePath: "x.go", score: 1.0, matchType: MatchSemantic, startLine: 50},
		"b": {docID: "b", filePath: "x.go", score: 1.0, matchType: MatchExact, startLine: 10},
		"c": {docID: "c", filePath: "x.go", score: 1.0, matchType: MatchExact, startLine: 5},
	}
	ranked := rankCandidates(candidates, 10)
	assert.Equal(t, "c", ranked[0].docID)
	assert.Equal(t, "b", ranked[1].docID)
	assert.Equal(t, "a", ranked[2].docID)
}

func TestRankCandidatesTruncatesToTopN(t *testing.T) {
	candidates := map[string]*candidate{
		"a": {docID: "a", score: 3.0},
		"b": {docID: "b", score: 2.0},
		"c": {docID: "c", score: 1.0},
	}
	ranked := rankCandidates(candidates, 2)
	assert.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].docID)
	assert.Equal(t, "b", ranked[1].docID)
}

func TestApplySymbolBonusBoostsSameFileOnlyWithoutChangingMatchType(t *testing.T) {
	f := &Fabric{SymbolWeight: 2.0}
	candidates := map[string]*candidate{
		"same":  {docID: "same", filePath: "x.go", score: 1.0, matchType: MatchStatistical},
		"other": {docID: "other", filePath: "y.go", score: 1.0, matchType: MatchStatistical},
	}
	f.applySymbolBonus(candidates, []symbols.Symbol{{Name: "Thing", FilePath: "x.go"}})

	expectedBonus := (1.0 / (rrfK + 1)) * 2.0
	assert.InDelta(t, 1.0+expectedBonus, candidates["same"].score, 1e-9)
	assert.InDelta(t, 1.0, candidates["other"].score, 1e-9)
	assert.Equal(t, MatchStatistical, candidates["same"].matchType)
}

func TestSymbolWeightDefaultsToOne(t *testing.T) {
	f := &Fabric{}
	assert.Equal(t, 1.0, f.symbolWeight())
}
