// Package bm25 implements an Okapi BM25 inverted index with floored IDF,
// safe for concurrent indexing and querying.
package bm25

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

const epsilon = 0.001

// Token is a single positioned term in a document.
type Token struct {
	Text             string
	Position         int
	ImportanceWeight float64
}

// Document is the unit submitted to AddDocument.
type Document struct {
	ID     string
	Tokens []Token
}

// TermStats tracks corpus-wide statistics for one term.
type TermStats struct {
	DocumentFrequency uint32
	TotalFrequency    uint64
}

type documentTerm struct {
	docID         string
	termFrequency uint32
	positions     []uint32
}

// Match is one scored search result.
type Match struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// Engine is the BM25 inverted index. The zero value is not usable; use New.
type Engine struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	totalDocs     int
	avgDocLength  float64
	termStats     map[string]*TermStats
	docLengths    map[string]int
	invertedIndex map[string][]documentTerm
}

// New creates an Engine with the given k1/b parameters (defaults 1.2/0.75
// per spec — callers pass 1.2, 0.75 explicitly; there is no silent default).
func New(k1, b float64) *Engine {
	return &Engine{
		k1:            k1,
		b:             b,
		termStats:     make(map[string]*TermStats),
		docLengths:    make(map[string]int),
		invertedIndex: make(map[string][]documentTerm),
	}
}

// AddDocument indexes doc, updating total_docs and avg_doc_length
// incrementally. Terms are lower-cased at insert.
func (e *Engine) AddDocument(doc Document) {
	e.mu.Lock()
	defer e.mu.Unlock()

	docLen := len(doc.Tokens)
	totalLength := e.avgDocLength*float64(e.totalDocs) + float64(docLen)
	e.totalDocs++
	e.avgDocLength = totalLength / float64(e.totalDocs)
	e.docLengths[doc.ID] = docLen

	positions := make(map[string][]uint32)
	counts := make(map[string]uint32)
	for _, tok := range doc.Tokens {
		term := strings.ToLower(tok.Text)
		positions[term] = append(positions[term], uint32(tok.Position))
		counts[term]++
	}

	for term, freq := range counts {
		stats, ok := e.termStats[term]
		if !ok {
			stats = &TermStats{}
			e.termStats[term] = stats
		}
		stats.DocumentFrequency++
		stats.TotalFrequency += uint64(freq)

		e.invertedIndex[term] = append(e.invertedIndex[term], documentTerm{
			docID:         doc.ID,
			termFrequency: freq,
			positions:     positions[term],
		})
	}
}

// RemoveDocument deletes doc's contribution to the index, for per-file
// atomic reindex. It is a no-op if the document is unknown.
func (e *Engine) RemoveDocument(docID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeDocumentLocked(docID)
}

func (e *Engine) removeDocumentLocked(docID string) {
	docLen, ok := e.docLengths[docID]
	if !ok {
		return
	}
	delete(e.docLengths, docID)

	if e.totalDocs > 0 {
		totalLength := e.avgDocLength*float64(e.totalDocs) - float64(docLen)
		e.totalDocs--
		if e.totalDocs > 0 {
			e.avgDocLength = totalLength / float64(e.totalDocs)
		} else {
			e.avgDocLength = 0
		}
	}

	for term, postings := range e.invertedIndex {
		kept := postings[:0]
		var removedFreq uint32
		for _, p := range postings {
			if p.docID == docID {
				removedFreq = p.termFrequency
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == len(postings) {
			continue
		}
		if len(kept) == 0 {
			delete(e.invertedIndex, term)
			delete(e.termStats, term)
			continue
		}
		e.invertedIndex[term] = kept
		if stats, ok := e.termStats[term]; ok {
			stats.DocumentFrequency--
			stats.TotalFrequency -= uint64(removedFreq)
		}
	}
}

// CalculateIDF returns the floored IDF for term. Terms absent from the
// corpus return ln(N+1); every other term is floored at epsilon so a
// negative raw IDF (very common term) can never invert ranking.
func (e *Engine) CalculateIDF(term string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calculateIDFLocked(strings.ToLower(term))
}

func (e *Engine) calculateIDFLocked(term string) float64 {
	stats, ok := e.termStats[term]
	if !ok {
		return math.Log(float64(e.totalDocs) + 1.0)
	}
	n := float64(e.totalDocs)
	df := float64(stats.DocumentFrequency)
	raw := math.Log((n - df + 0.5) / (df + 0.5))
	return math.Max(epsilon, raw)
}

// ScoreDocument computes the BM25 score of doc_id against query_terms.
func (e *Engine) ScoreDocument(queryTerms []string, docID string) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scoreDocumentLocked(queryTerms, docID)
}

func (e *Engine) scoreDocumentLocked(queryTerms []string, docID string) (float64, error) {
	docLength, ok := e.docLengths[docID]
	if !ok {
		return 0, fabricerr.New(fabricerr.NotFound, "document not found in BM25 index: "+docID)
	}

	score := 0.0
	for _, term := range queryTerms {
		term = strings.ToLower(term)
		idf := e.calculateIDFLocked(term)

		tf := 0.0
		for _, dt := range e.invertedIndex[term] {
			if dt.docID == docID {
				tf = float64(dt.termFrequency)
				break
			}
		}
		if tf == 0 {
			continue
		}

		normFactor := 1 - e.b + e.b*(float64(docLength)/e.avgDocLength)
		termScore := idf * (tf * (e.k1 + 1)) / (tf + e.k1*normFactor)
		score += termScore
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fabricerr.New(fabricerr.MathematicalIntegrity, "BM25 score is not finite for document "+docID)
	}
	return score, nil
}

// Search tokenizes query on whitespace, lowercases, scores every candidate
// document that contains at least one query term, and returns the top
// `limit` matches sorted by score descending, ties broken by doc_id.
func (e *Engine) Search(query string, limit int) ([]Match, error) {
	queryTerms := tokenizeQuery(query)
	if len(queryTerms) == 0 {
		return nil, fabricerr.New(fabricerr.InvalidQuery, "empty query provided to BM25 search")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	candidates := make(map[string][]string)
	for _, term := range queryTerms {
		for _, dt := range e.invertedIndex[term] {
			candidates[dt.docID] = append(candidates[dt.docID], term)
		}
	}

	matches := make([]Match, 0, len(candidates))
	for docID, matchedTerms := range candidates {
		score, err := e.scoreDocumentLocked(queryTerms, docID)
		if err != nil {
			return nil, err
		}
		if score == 0 {
			continue
		}
		matches = append(matches, Match{DocID: docID, Score: score, MatchedTerms: matchedTerms})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DocID < matches[j].DocID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func tokenizeQuery(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Stats summarizes the current index state.
type Stats struct {
	TotalDocuments    int
	TotalTerms        int
	AvgDocumentLength float64
	K1                float64
	B                 float64
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		TotalDocuments:    e.totalDocs,
		TotalTerms:        len(e.termStats),
		AvgDocumentLength: e.avgDocLength,
		K1:                e.k1,
		B:                 e.b,
	}
}

// Clear empties the entire index.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalDocs = 0
	e.avgDocLength = 0
	e.termStats = make(map[string]*TermStats)
	e.docLengths = make(map[string]int)
	e.invertedIndex = make(map[string][]documentTerm)
}
