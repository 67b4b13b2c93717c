package lexical

import (
	"context"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Search executes query against the index, tagging each hit Exact (term or
// phrase matched verbatim) or Statistical (matched via bleve's scored
// relevance only), per §4.5. Results outside a configured project root are
// filtered before being returned — scoping binds the reader, not the writer.
func (idx *Index) Search(q string, limit int) ([]Match, error) {
	if q == "" {
		return nil, fabricerr.New(fabricerr.InvalidQuery, "query must not be empty")
	}
	if limit <= 0 {
		limit = 15
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	exactQ := bleve.NewMatchPhraseQuery(q)
	exactQ.SetField("content")
	statQ := bleve.NewQueryStringQuery(q)

	disjunction := bleve.NewDisjunctionQuery(exactQ, statQ)
	req := bleve.NewSearchRequestOptions(disjunction, limit*2, 0, false)
	req.Fields = []string{"file_path", "chunk_index", "content", "start_line", "end_line"}

	var result *bleve.SearchResult
	err := fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		r, serr := idx.index.Search(req)
		if serr != nil {
			return fabricerr.Wrap(fabricerr.Storage, "lexical search", serr)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	exactHits, err := idx.exactHitSet(exactQ, limit*2)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		rec := hitToRecord(hit)
		if !idx.inProjectScope(rec.FilePath) {
			continue
		}
		mt := MatchStatistical
		if exactHits[hit.ID] {
			mt = MatchExact
		}
		matches = append(matches, Match{Record: rec, Score: hit.Score, MatchType: mt})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (idx *Index) exactHitSet(q query.Query, limit int) (map[string]bool, error) {
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	var result *bleve.SearchResult
	err := fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		r, serr := idx.index.Search(req)
		if serr != nil {
			return fabricerr.Wrap(fabricerr.Storage, "exact-match probe", serr)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(result.Hits))
	for _, hit := range result.Hits {
		set[hit.ID] = true
	}
	return set, nil
}

// SearchFuzzy runs a fuzzy (edit-distance bounded) query, per §4.5's
// search_fuzzy(query, max_edit_distance ∈ {0,1,2}) contract, which bleve's
// native FuzzyQuery satisfies directly — the reason C5 is bound to bleve
// rather than a SQLite FTS5 backend (see DESIGN.md).
func (idx *Index) SearchFuzzy(q string, maxEditDistance, limit int) ([]Match, error) {
	if q == "" {
		return nil, fabricerr.New(fabricerr.InvalidQuery, "query must not be empty")
	}
	if maxEditDistance < 0 || maxEditDistance > 2 {
		return nil, fabricerr.Field(fabricerr.InvalidQuery, "max_edit_distance", "must be 0, 1, or 2", strconv.Itoa(maxEditDistance))
	}
	if limit <= 0 {
		limit = 15
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	fq := bleve.NewFuzzyQuery(q)
	fq.SetField("content")
	fq.Fuzziness = maxEditDistance

	req := bleve.NewSearchRequestOptions(fq, limit, 0, false)
	req.Fields = []string{"file_path", "chunk_index", "content", "start_line", "end_line"}

	var result *bleve.SearchResult
	err := fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		r, serr := idx.index.Search(req)
		if serr != nil {
			return fabricerr.Wrap(fabricerr.Storage, "fuzzy lexical search", serr)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		rec := hitToRecord(hit)
		if !idx.inProjectScope(rec.FilePath) {
			continue
		}
		mt := MatchStatistical
		if maxEditDistance == 0 {
			mt = MatchExact
		}
		matches = append(matches, Match{Record: rec, Score: hit.Score, MatchType: mt})
	}
	return matches, nil
}

func hitToRecord(hit *search.DocumentMatch) Record {
	filePath, _ := hit.Fields["file_path"].(string)
	content, _ := hit.Fields["content"].(string)
	chunkIndex := fieldInt(hit.Fields["chunk_index"])
	startLine := fieldInt(hit.Fields["start_line"])
	endLine := fieldInt(hit.Fields["end_line"])

	return Record{
		ID:         hit.ID,
		FilePath:   filePath,
		ChunkIndex: chunkIndex,
		Content:    content,
		StartLine:  startLine,
		EndLine:    endLine,
	}
}

func fieldInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
