// Package lexical is a persistent, per-line token index backed by bleve,
// grounded on the teacher's exact_searcher.go bleve usage pattern (mapping
// construction, batch indexing, query-string search with highlighting).
package lexical

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/gobwas/glob"
	"github.com/gofrs/flock"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// MatchType tags how a result satisfied the query, per §4.5.
type MatchType string

const (
	MatchExact       MatchType = "Exact"
	MatchStatistical MatchType = "Statistical"
)

// Record is a single per-line document stored in the index.
type Record struct {
	ID         string
	FilePath   string
	ChunkIndex int
	Content    string
	StartLine  int
	EndLine    int
}

// Match is a ranked search hit.
type Match struct {
	Record    Record
	Score     float64
	MatchType MatchType
}

const lockFileName = ".lexical.lock"
const markerFileName = ".lexical.ok"

// Index is a bleve-backed lexical index with optional project-root scoping
// and on-disk persistence.
type Index struct {
	mu         sync.RWMutex
	index      bleve.Index
	path       string
	flock      *flock.Flock
	projectGlb glob.Glob
}

// Open opens or creates an on-disk bleve index at path. If path already
// contains an index, it is reloaded without re-indexing (§4.5 "deterministic
// behavior across process restart"). An advisory file lock prevents two
// processes from mutating the same on-disk index concurrently.
func Open(path, projectRoot string) (*Index, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fabricerr.Wrap(fabricerr.Storage, "create index directory", err)
	}

	fl := flock.New(filepath.Join(path, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fabricerr.Wrap(fabricerr.Storage, "acquire lexical index lock", err)
	}
	if !locked {
		return nil, fabricerr.New(fabricerr.Storage, "lexical index already locked by another process")
	}

	bidx, err := openOrCreate(path)
	if err != nil {
		fl.Unlock()
		return nil, err
	}

	idx := &Index{index: bidx, path: path, flock: fl}
	if projectRoot != "" {
		g, gerr := glob.Compile(filepath.Clean(projectRoot) + "/**")
		if gerr != nil {
			fl.Unlock()
			return nil, fabricerr.Wrap(fabricerr.Configuration, "compile project root glob", gerr)
		}
		idx.projectGlb = g
	}
	return idx, nil
}

// openOrCreate opens an existing bleve index, creating one (and writing the
// completion marker) when absent. An index whose marker is present but which
// cannot be opened is removed and rebuilt from scratch; an index data
// directory without the marker makes creation fail, and that failure is
// returned as an IndexCorrupt error.
func openOrCreate(path string) (bleve.Index, error) {
	marker := filepath.Join(path, markerFileName)
	dataDir := filepath.Join(path, "bleve")

	_, statErr := os.Stat(marker)
	markerPresent := statErr == nil

	if markerPresent {
		bidx, err := bleve.Open(dataDir)
		if err == nil {
			return bidx, nil
		}
		// Corrupt: marker present but index unreadable. Rebuild from scratch.
		_ = os.RemoveAll(dataDir)
	}

	bidx, err := bleve.New(dataDir, buildMapping())
	if err != nil {
		return nil, fabricerr.Wrap(fabricerr.IndexCorrupt, "create lexical index", err)
	}
	if err := os.WriteFile(marker, []byte("ok"), 0o644); err != nil {
		bidx.Close()
		return nil, fabricerr.Wrap(fabricerr.Storage, "write lexical index marker", err)
	}
	return bidx, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = "standard"
	content.Store = true
	content.Index = true
	content.IncludeTermVectors = true

	filePath := bleve.NewTextFieldMapping()
	filePath.Analyzer = "keyword"
	filePath.Store = true
	filePath.Index = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("file_path", filePath)
	im.DefaultMapping = doc
	return im
}

// Close releases the index and its advisory lock.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	err := idx.index.Close()
	idx.flock.Unlock()
	return err
}

// IndexFile splits content into lines and indexes each non-blank line as its
// own record, replacing any prior records for path, per the §4.5 schema (id, file_path, chunk_index, content, start_line, end_line).
func (idx *Index) IndexFile(path string, content string) error {
	lines := strings.Split(content, "\n")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.deleteFileLocked(path); err != nil {
		return err
	}

	batch := idx.index.NewBatch()
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		id := fmt.Sprintf("%s-%d", path, i)
		rec := map[string]interface{}{
			"file_path":   path,
			"chunk_index": i,
			"content":     line,
			"start_line":  i + 1,
			"end_line":    i + 1,
		}
		if err := batch.Index(id, rec); err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "batch index line", err)
		}
	}
	if batch.Size() > 0 {
		if err := fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
			if err := idx.index.Batch(batch); err != nil {
				return fabricerr.Wrap(fabricerr.Storage, "execute lexical batch", err)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// IndexChunk upserts a single record under an externally assigned id,
// bypassing the per-line split IndexFile performs. This is what the Hybrid
// Searcher uses to index C1 chunks under the shared DocumentId scheme
// (§4.2), since bleve's Index(id, doc) already overwrites any existing
// document sharing that id.
func (idx *Index) IndexChunk(rec Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc := map[string]interface{}{
		"file_path":   rec.FilePath,
		"chunk_index": rec.ChunkIndex,
		"content":     rec.Content,
		"start_line":  rec.StartLine,
		"end_line":    rec.EndLine,
	}
	return fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		if err := idx.index.Index(rec.ID, doc); err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "index chunk", err)
		}
		return nil
	})
}

// IndexDirectory walks dir and indexes every regular file under it.
func (idx *Index) IndexDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return fabricerr.Wrap(fabricerr.Storage, "read file for lexical index", rerr)
		}
		return idx.IndexFile(path, string(content))
	})
}

// DeleteFile removes every record belonging to path.
func (idx *Index) DeleteFile(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.deleteFileLocked(path)
}

func (idx *Index) deleteFileLocked(path string) error {
	q := bleve.NewMatchQuery(path)
	q.SetField("file_path")
	req := bleve.NewSearchRequestOptions(q, 10000, 0, false)
	req.Fields = []string{"file_path"}

	var result *bleve.SearchResult
	err := fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		r, serr := idx.index.Search(req)
		if serr != nil {
			return fabricerr.Wrap(fabricerr.Storage, "search for delete", serr)
		}
		result = r
		return nil
	})
	if err != nil {
		return err
	}
	if len(result.Hits) == 0 {
		return nil
	}
	batch := idx.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	return fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		if err := idx.index.Batch(batch); err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "execute lexical delete batch", err)
		}
		return nil
	})
}

// inProjectScope reports whether path is allowed given the configured
// project root glob; with no root configured, everything is in scope.
func (idx *Index) inProjectScope(path string) bool {
	if idx.projectGlb == nil {
		return true
	}
	return idx.projectGlb.Match(path)
}
