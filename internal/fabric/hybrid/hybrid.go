// Package hybrid is the C9 Hybrid Searcher: it orchestrates indexing across
// C1/C3/C4/C5/C7/C8 and fuses their parallel query results with Reciprocal
// Rank Fusion, grounded on the teacher's searcher_coordinator.go dual-update
// orchestration, generalized from raw goroutines to errgroup.
package hybrid

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/retrievalfabric/core/internal/fabric/bm25"
	"github.com/retrievalfabric/core/internal/fabric/chunk"
	"github.com/retrievalfabric/core/internal/fabric/embed"
	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
	"github.com/retrievalfabric/core/internal/fabric/lexical"
	"github.com/retrievalfabric/core/internal/fabric/metrics"
	"github.com/retrievalfabric/core/internal/fabric/symbols"
	"github.com/retrievalfabric/core/internal/fabric/vectorstore"
)

// rrfK is the Reciprocal Rank Fusion constant from §4.9.
const rrfK = 60.0

// MatchType is the fused result's provenance tag, ordered by priority for
// tie-breaking: Exact > Statistical > Semantic.
type MatchType string

const (
	MatchExact       MatchType = "Exact"
	MatchStatistical MatchType = "Statistical"
	MatchSemantic    MatchType = "Semantic"
)

func (m MatchType) priority() int {
	switch m {
	case MatchExact:
		return 3
	case MatchStatistical:
		return 2
	case MatchSemantic:
		return 1
	default:
		return 0
	}
}

// Counters track per-file indexing outcomes (§4.9 step 5).
type Counters struct {
	FilesIndexed  int64
	ChunksCreated int64
	Errors        int64
}

// Fabric wires the four retrieval components together behind the
// index/search contract. SymbolWeight scales the fixed rank-1 symbol bonus
// added during fusion.
type Fabric struct {
	BM25         *bm25.Engine
	Lexical      *lexical.Index
	Symbols      *symbols.Database
	Embedder     *embed.Embedder
	Vectors      *vectorstore.Store
	Metrics      *metrics.Registry
	Logger       *slog.Logger
	ChunkOpts    chunk.Options
	SymbolWeight float64

	mu         sync.RWMutex
	counters   Counters
	chunkCache map[string][]chunk.Chunk

	// fileLocks serializes IndexFile calls per path, so at most one writer
	// touches a given file's records at a time (§4.9's concurrency contract)
	// while unrelated files index concurrently.
	fileLocks sync.Map
}

func (f *Fabric) lockFor(path string) *sync.Mutex {
	v, _ := f.fileLocks.LoadOrStore(path, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// New returns a Fabric wiring the given components with default chunk
// options and a symbol weight of 1.0.
func New(b *bm25.Engine, lex *lexical.Index, syms *symbols.Database, emb *embed.Embedder, vs *vectorstore.Store, m *metrics.Registry) *Fabric {
	return &Fabric{
		BM25:         b,
		Lexical:      lex,
		Symbols:      syms,
		Embedder:     emb,
		Vectors:      vs,
		Metrics:      m,
		Logger:       slog.Default(),
		ChunkOpts:    chunk.Options{},
		SymbolWeight: 1.0,
		chunkCache:   make(map[string][]chunk.Chunk),
	}
}

func (f *Fabric) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Counters returns a snapshot of the indexing counters.
func (f *Fabric) Counters() Counters {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.counters
}

// IndexFile runs the §4.9 indexing path for a single file: remove prior
// records, chunk, and fan each chunk out to C4/C5/C7→C8, then replace the
// file's symbols in C3. A per-chunk failure is counted, not fatal.
func (f *Fabric) IndexFile(ctx context.Context, path string) error {
	lock := f.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	f.removeFileBestEffort(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "read file for indexing", err)
	}

	mode := chunk.ModeForExtension(filepath.Ext(path))
	chunks := chunk.Split(string(content), mode, f.ChunkOpts)

	f.mu.Lock()
	f.chunkCache[path] = chunks
	f.mu.Unlock()

	var chunkErrors int64
	for i, c := range chunks {
		if err := f.indexChunk(path, i, c); err != nil {
			chunkErrors++
			continue
		}
	}

	lang := languageForExt(filepath.Ext(path))
	syms := symbols.Extract(content, lang, path)
	f.Symbols.ReplaceFile(path, syms)

	f.mu.Lock()
	f.counters.FilesIndexed++
	f.counters.ChunksCreated += int64(len(chunks))
	f.counters.Errors += chunkErrors
	f.mu.Unlock()

	// A log line for operators; the per-file counts are carried by the
	// counters updated above, and no prometheus metric is recorded here.
	f.logger().Info("indexed file",
		"path", path, "chunks", len(chunks), "chunk_errors", chunkErrors,
		"symbols", len(syms), "duration", time.Since(start))

	return nil
}

func (f *Fabric) indexChunk(path string, i int, c chunk.Chunk) error {
	docID := DocID(path, i)
	lower := strings.ToLower(c.Content)

	f.BM25.AddDocument(bm25.Document{ID: docID, Tokens: tokenize(lower)})

	if err := f.Lexical.IndexChunk(lexical.Record{
		ID:         docID,
		FilePath:   path,
		ChunkIndex: i,
		Content:    c.Content,
		StartLine:  c.StartLine,
		EndLine:    c.EndLine,
	}); err != nil {
		return err
	}

	if f.Embedder == nil || f.Vectors == nil {
		return nil
	}
	vec, err := f.Embedder.Embed(c.Content, embed.SearchDocument)
	if err != nil {
		return err
	}
	return f.Vectors.Upsert([]vectorstore.Record{{
		ID:         docID,
		FilePath:   path,
		ChunkIndex: i,
		Content:    c.Content,
		Embedding:  vec[:],
		StartLine:  c.StartLine,
		EndLine:    c.EndLine,
	}})
}

func (f *Fabric) removeFileBestEffort(path string) {
	f.mu.RLock()
	cached := f.chunkCache[path]
	f.mu.RUnlock()

	for i := range cached {
		f.BM25.RemoveDocument(DocID(path, i))
	}
	_ = f.Lexical.DeleteFile(path)
	if f.Vectors != nil {
		_ = f.Vectors.DeleteByFile(path)
	}
}

func tokenize(lower string) []bm25.Token {
	fields := strings.Fields(lower)
	tokens := make([]bm25.Token, len(fields))
	for i, t := range fields {
		tokens[i] = bm25.Token{Text: t, Position: i, ImportanceWeight: 1.0}
	}
	return tokens
}

var extToLanguage = map[string]string{
	".rs": "rust", ".py": "python", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "tsx", ".go": "go", ".java": "java",
	".c": "c", ".h": "c", ".cpp": "cpp", ".cc": "cpp", ".hpp": "cpp",
	".php": "php", ".rb": "ruby", ".sh": "bash", ".bash": "bash",
	".json": "json", ".css": "css", ".html": "html", ".htm": "html",
}

func languageForExt(ext string) string {
	if lang, ok := extToLanguage[strings.ToLower(ext)]; ok {
		return lang
	}
	return ""
}
