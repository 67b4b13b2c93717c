package hybrid

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrievalfabric/core/internal/fabric/bm25"
	"github.com/retrievalfabric/core/internal/fabric/embed"
	"github.com/retrievalfabric/core/internal/fabric/lexical"
	"github.com/retrievalfabric/core/internal/fabric/metrics"
	"github.com/retrievalfabric/core/internal/fabric/symbols"
	"github.com/retrievalfabric/core/internal/fabric/vectorstore"
)

// hashModel is a deterministic, dependency-free stand-in for a real tensor
// model: same text always maps to the same vector, and inputs sharing words
// end up closer in cosine space than unrelated inputs.
type hashModel struct{}

func (hashModel) Infer(text string) ([]float32, error) {
	vec := make([]float32, embed.Dimension)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv32(w)
		for i := 0; i < embed.Dimension; i++ {
			if (h>>uint(i%32))&1 == 1 {
				vec[i] += 1
			} else {
				vec[i] -= 0.1
			}
		}
	}
	return vec, nil
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func newTestFabric(t *testing.T) *Fabric {
	t.Helper()

	lex, err := lexical.Open(t.TempDir(), "")
	require.NoError(t, err)
	t.Cleanup(func() { lex.Close() })

	vs, err := vectorstore.Open(filepath.Join(t.TempDir(), "vectors.db"), embed.Dimension)
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })

	emb, err := embed.New(hashModel{}, 0)
	require.NoError(t, err)

	f := New(bm25.New(1.2, 0.75), lex, symbols.NewDatabase(), emb, vs, metrics.New())
	return f
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexFileThenSearchFindsExactToken(t *testing.T) {
	f := newTestFabric(t)
	dir := t.TempDir()

	path := writeTempFile(t, dir, "widget.go", "package widget\n\nfunc ComputeTotal(items []int) int {\n\tsum := 0\n\tfor _, i := range items {\n\t\tsum += i\n\t}\n\treturn sum\n}\n")

	require.NoError(t, f.IndexFile(context.Background(), path))

	counters := f.Counters()
	assert.Equal(t, int64(1), counters.FilesIndexed)
	assert.Greater(t, counters.ChunksCreated, int64(0))

	results, err := f.Search(context.Background(), "ComputeTotal", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, path, results[0].FilePath)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	f := newTestFabric(t)
	_, err := f.Search(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestSearchSurfacesSymbolsInTarget(t *testing.T) {
	f := newTestFabric(t)
	dir := t.TempDir()

	path := writeTempFile(t, dir, "service.go", "package service\n\nfunc Start() error {\n\treturn nil\n}\n")
	require.NoError(t, f.IndexFile(context.Background(), path))

	results, err := f.Search(context.Background(), "Start", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	found := false
	for _, r := range results {
		for _, s := range r.SymbolsInTarget {
			if s.Name == "Start" {
				found = true
			}
		}
	}
	assert.True(t, found, "expected Start symbol to be surfaced in at least one result")
}

func TestReindexRemovesStaleChunks(t *testing.T) {
	f := newTestFabric(t)
	dir := t.TempDir()

	path := writeTempFile(t, dir, "flag.go", "package flag\n\nfunc LegacyHelper() {}\n")
	require.NoError(t, f.IndexFile(context.Background(), path))

	require.NoError(t, os.WriteFile(path, []byte("package flag\n\nfunc RenamedHelper() {}\n"), 0o644))
	require.NoError(t, f.IndexFile(context.Background(), path))

	bm25Hits, err := f.BM25.Search("legacyhelper", 5)
	require.NoError(t, err)
	assert.Empty(t, bm25Hits, "stale chunk referencing the old symbol name should no longer be BM25-indexed")

	defs := f.Symbols.FindDefinition("LegacyHelper")
	assert.Empty(t, defs)

	defs = f.Symbols.FindDefinition("RenamedHelper")
	assert.NotEmpty(t, defs)
}

func TestSymbolBonusBoostsSameFileCandidates(t *testing.T) {
	f := newTestFabric(t)
	dir := t.TempDir()

	path := writeTempFile(t, dir, "math.go", "package math\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n\nfunc Subtract(a, b int) int {\n\treturn a - b\n}\n")
	require.NoError(t, f.IndexFile(context.Background(), path))

	results, err := f.Search(context.Background(), "Add", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 1.0/(rrfK+1), "every candidate shares math.go with the Add definition, so each carries the symbol bonus")
	}
}
