package bm25

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tok(text string, pos int) Token {
	return Token{Text: text, Position: pos, ImportanceWeight: 1.0}
}

func TestBM25Basic(t *testing.T) {
	e := New(1.2, 0.75)

	e.AddDocument(Document{ID: "doc1", Tokens: []Token{tok("quick", 0), tok("brown", 1), tok("fox", 2)}})
	e.AddDocument(Document{ID: "doc2", Tokens: []Token{tok("quick", 0), tok("quick", 1), tok("dog", 2)}})

	results, err := e.Search("quick", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc2", results[0].DocID)
	assert.Greater(t, results[0].Score, results[1].Score)

	results, err = e.Search("fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].DocID)
}

func TestIDFOrdering(t *testing.T) {
	// Mirrors spec §8 seed test 1.
	e := New(1.2, 0.75)
	e.AddDocument(Document{ID: "doc1", Tokens: []Token{tok("function", 0), tok("calculate", 1), tok("total", 2)}})
	e.AddDocument(Document{ID: "doc2", Tokens: []Token{tok("function", 0), tok("function", 1), tok("process", 2)}})

	idfCalculate := e.CalculateIDF("calculate")
	idfFunction := e.CalculateIDF("function")

	assert.Greater(t, idfCalculate, idfFunction+1e-4)
	assert.Greater(t, idfCalculate, 0.0)
	assert.Greater(t, idfFunction, 0.0)
}

func TestIDFCommonVsRare(t *testing.T) {
	e := New(1.2, 0.75)
	for i := 0; i < 10; i++ {
		tokens := []Token{tok("common", 0)}
		if i < 2 {
			tokens = append(tokens, tok("rare", 1))
		}
		e.AddDocument(Document{ID: fmt.Sprintf("doc%d", i), Tokens: tokens})
	}

	idfCommon := e.CalculateIDF("common")
	idfRare := e.CalculateIDF("rare")
	assert.Greater(t, idfRare, idfCommon)
}

func TestIDFFloorNeverNegative(t *testing.T) {
	e := New(1.2, 0.75)
	// "common" appears in every one of 100 docs: df/N ratio pushes raw IDF negative.
	for i := 0; i < 100; i++ {
		e.AddDocument(Document{ID: fmt.Sprintf("doc%d", i), Tokens: []Token{tok("common", 0)}})
	}
	assert.GreaterOrEqual(t, e.CalculateIDF("common"), epsilon)
}

func TestIDFUnknownTerm(t *testing.T) {
	e := New(1.2, 0.75)
	e.AddDocument(Document{ID: "doc1", Tokens: []Token{tok("a", 0)}})
	idf := e.CalculateIDF("nonexistent")
	assert.Equal(t, math.Log(float64(e.Stats().TotalDocuments)+1.0), idf)
}

func TestSearchEmptyQueryIsInvalid(t *testing.T) {
	e := New(1.2, 0.75)
	_, err := e.Search("   ", 10)
	assert.Error(t, err)
}

func TestScoreUnknownDocument(t *testing.T) {
	e := New(1.2, 0.75)
	e.AddDocument(Document{ID: "doc1", Tokens: []Token{tok("a", 0)}})
	_, err := e.ScoreDocument([]string{"a"}, "missing")
	assert.Error(t, err)
}

func TestRemoveDocumentIsAtomic(t *testing.T) {
	e := New(1.2, 0.75)
	e.AddDocument(Document{ID: "doc1", Tokens: []Token{tok("alpha", 0)}})
	e.AddDocument(Document{ID: "doc2", Tokens: []Token{tok("alpha", 0), tok("beta", 1)}})

	e.RemoveDocument("doc1")
	results, err := e.Search("alpha", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc2", results[0].DocID)
}

func TestReindexIdempotent(t *testing.T) {
	e := New(1.2, 0.75)
	doc := Document{ID: "f.go-0", Tokens: []Token{tok("alpha", 0), tok("beta", 1)}}
	e.AddDocument(doc)
	statsOnce := e.Stats()

	e.RemoveDocument(doc.ID)
	e.AddDocument(doc)
	statsTwice := e.Stats()

	assert.Equal(t, statsOnce.TotalDocuments, statsTwice.TotalDocuments)
	assert.InDelta(t, statsOnce.AvgDocumentLength, statsTwice.AvgDocumentLength, 1e-9)
}
