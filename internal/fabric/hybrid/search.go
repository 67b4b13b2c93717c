package hybrid

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/retrievalfabric/core/internal/fabric/embed"
	"github.com/retrievalfabric/core/internal/fabric/expand"
	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
	"github.com/retrievalfabric/core/internal/fabric/lexical"
	"github.com/retrievalfabric/core/internal/fabric/symbols"
)

const fanOutLimit = 50

// Result is a single fused, ranked, context-expanded search hit (§4.9 step 5).
type Result struct {
	FilePath        string
	Score           float64
	MatchType       MatchType
	ChunkIndex      int
	StartLine       int
	EndLine         int
	Context         *expand.Context
	SymbolsInTarget []symbols.Symbol
}

type candidate struct {
	docID      string
	filePath   string
	chunkIndex int
	startLine  int
	endLine    int
	score      float64
	matchType  MatchType
}

// Search runs the §4.9 query path: fan BM25/lexical/symbol/semantic lookups
// out in parallel via errgroup, so the first hard failure among them
// surfaces as Search's own error instead of being silently swallowed the
// way the teacher's raw-WaitGroup fan-out would (see DESIGN.md) — then fuse
// with Reciprocal Rank Fusion and expand the top topN hits with
// three-chunk context.
func (f *Fabric) Search(ctx context.Context, query string, topN int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fabricerr.New(fabricerr.InvalidQuery, "query must not be empty")
	}
	if topN <= 0 {
		topN = 10
	}

	traceID := uuid.New().String()
	start := time.Now()

	var bm25Matches []rankedDoc
	var lexMatches []lexical.Match
	var symMatches []symbols.Symbol
	var semanticMatches []rankedDoc

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		matches, err := f.BM25.Search(query, fanOutLimit)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fp, idx, ok := ParseDocID(m.DocID)
			if !ok {
				continue
			}
			bm25Matches = append(bm25Matches, rankedDoc{docID: m.DocID, filePath: fp, chunkIndex: idx})
		}
		return nil
	})

	g.Go(func() error {
		matches, err := f.Lexical.Search(query, fanOutLimit)
		if err != nil {
			return err
		}
		lexMatches = matches
		return nil
	})

	g.Go(func() error {
		defs := f.Symbols.FindDefinition(query)
		symMatches = append(symMatches, defs...)
		if kind, ok := matchKind(query); ok {
			symMatches = append(symMatches, f.Symbols.FindByKind(kind)...)
		}
		return nil
	})

	if f.Embedder != nil && f.Vectors != nil {
		g.Go(func() error {
			vec, err := f.Embedder.Embed(query, embed.SearchQuery)
			if err != nil {
				return err
			}
			recs, err := f.Vectors.SearchSimilar(vec[:], fanOutLimit)
			if err != nil {
				return err
			}
			for _, r := range recs {
				semanticMatches = append(semanticMatches, rankedDoc{docID: r.ID, filePath: r.FilePath, chunkIndex: r.ChunkIndex, startLine: r.StartLine, endLine: r.EndLine})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if f.Metrics != nil {
			f.Metrics.FailedSearches.Inc()
		}
		f.logger().Warn("search leg failed", "trace_id", traceID, "query", query, "error", err)
		return nil, err
	}

	candidates := make(map[string]*candidate)
	addRanked(candidates, bm25Matches, MatchStatistical)
	addLexical(candidates, lexMatches)
	addRanked(candidates, semanticMatches, MatchSemantic)
	f.applySymbolBonus(candidates, symMatches)

	results := rankCandidates(candidates, topN)
	out := f.expandResults(results)

	duration := time.Since(start)
	if f.Metrics != nil {
		outcome := "ok"
		f.Metrics.SearchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
		f.Metrics.SearchResultCount.WithLabelValues(outcome).Observe(float64(len(out)))
	}
	f.logger().Info("search completed",
		"trace_id", traceID, "query", query, "results", len(out), "duration", duration)

	return out, nil
}

type rankedDoc struct {
	docID      string
	filePath   string
	chunkIndex int
	startLine  int
	endLine    int
}

func addRanked(candidates map[string]*candidate, docs []rankedDoc, mt MatchType) {
	for rank, d := range docs {
		rrf := 1.0 / (rrfK + float64(rank+1))
		c, ok := candidates[d.docID]
		if !ok {
			c = &candidate{docID: d.docID, filePath: d.filePath, chunkIndex: d.chunkIndex, startLine: d.startLine, endLine: d.endLine}
			candidates[d.docID] = c
		}
		c.score += rrf
		if mt.priority() > c.matchType.priority() {
			c.matchType = mt
		}
	}
}

func addLexical(candidates map[string]*candidate, matches []lexical.Match) {
	for rank, m := range matches {
		rrf := 1.0 / (rrfK + float64(rank+1))
		mt := MatchStatistical
		if m.MatchType == lexical.MatchExact {
			mt = MatchExact
		}
		docID := DocID(m.Record.FilePath, m.Record.ChunkIndex)
		c, ok := candidates[docID]
		if !ok {
			c = &candidate{docID: docID, filePath: m.Record.FilePath, chunkIndex: m.Record.ChunkIndex, startLine: m.Record.StartLine, endLine: m.Record.EndLine}
			candidates[docID] = c
		}
		c.score += rrf
		if mt.priority() > c.matchType.priority() {
			c.matchType = mt
		}
	}
}

// applySymbolBonus adds a fixed rank-1 RRF contribution, scaled by
// SymbolWeight, to every existing candidate sharing a symbol hit's file —
// symbols carry no chunk_index, so the bonus cannot target one surviving
// candidate the way the content-bearing lists do (documented judgment call,
// see DESIGN.md).
func (f *Fabric) applySymbolBonus(candidates map[string]*candidate, syms []symbols.Symbol) {
	if len(syms) == 0 {
		return
	}
	bonus := (1.0 / (rrfK + 1)) * f.symbolWeight()
	for _, s := range syms {
		for _, c := range candidates {
			if c.filePath == s.FilePath {
				c.score += bonus
			}
		}
	}
}

func (f *Fabric) symbolWeight() float64 {
	if f.SymbolWeight == 0 {
		return 1.0
	}
	return f.SymbolWeight
}

func rankCandidates(candidates map[string]*candidate, topN int) []*candidate {
	list := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, c)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		if list[i].matchType.priority() != list[j].matchType.priority() {
			return list[i].matchType.priority() > list[j].matchType.priority()
		}
		return list[i].startLine < list[j].startLine
	})
	if len(list) > topN {
		list = list[:topN]
	}
	return list
}

func (f *Fabric) expandResults(cands []*candidate) []Result {
	out := make([]Result, 0, len(cands))
	for _, c := range cands {
		res := Result{
			FilePath:   c.filePath,
			Score:      c.score,
			MatchType:  c.matchType,
			ChunkIndex: c.chunkIndex,
			StartLine:  c.startLine,
			EndLine:    c.endLine,
		}

		f.mu.RLock()
		chunks := f.chunkCache[c.filePath]
		f.mu.RUnlock()

		if chunks != nil && c.chunkIndex < len(chunks) {
			if ctx, err := expand.Expand(chunks, c.chunkIndex); err == nil {
				res.Context = &ctx
				res.StartLine = ctx.Target.StartLine
				res.EndLine = ctx.Target.EndLine
			}
		}

		res.SymbolsInTarget = f.Symbols.SymbolsInRange(c.filePath, res.StartLine, res.EndLine)
		out = append(out, res)
	}
	return out
}

// matchKind reports whether query names a known symbol kind, for the
// find_by_kind half of the symbol lookup leg.
func matchKind(query string) (symbols.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(query)) {
	case "function":
		return symbols.KindFunction, true
	case "method":
		return symbols.KindMethod, true
	case "class":
		return symbols.KindClass, true
	case "struct":
		return symbols.KindStruct, true
	case "interface":
		return symbols.KindInterface, true
	case "enum":
		return symbols.KindEnum, true
	case "variable":
		return symbols.KindVariable, true
	case "field":
		return symbols.KindField, true
	case "module":
		return symbols.KindModule, true
	default:
		return "", false
	}
}
