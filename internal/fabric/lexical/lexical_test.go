package lexical

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T, projectRoot string) *Index {
	t.Helper()
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "idx"), projectRoot)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexFileAndSearch(t *testing.T) {
	idx := openTestIndex(t, "")
	require.NoError(t, idx.IndexFile("main.go", "package main\n\nfunc handleRequest() {\n\tprocessPayload()\n}\n"))

	matches, err := idx.Search("handleRequest", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "main.go", matches[0].Record.FilePath)
}

func TestSearchEmptyQueryErrors(t *testing.T) {
	idx := openTestIndex(t, "")
	_, err := idx.Search("", 10)
	assert.Error(t, err)
}

func TestSearchFuzzyRejectsOutOfRangeDistance(t *testing.T) {
	idx := openTestIndex(t, "")
	_, err := idx.SearchFuzzy("foo", 3, 10)
	assert.Error(t, err)
}

func TestSearchFuzzyFindsNearMiss(t *testing.T) {
	idx := openTestIndex(t, "")
	require.NoError(t, idx.IndexFile("util.go", "func calculateTotal() int {\n\treturn 0\n}\n"))

	matches, err := idx.SearchFuzzy("calculat", 2, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestProjectScopingExcludesOutsideRoot(t *testing.T) {
	idx := openTestIndex(t, "/project")
	require.NoError(t, idx.IndexFile("/project/src/a.go", "func insideScope() {}\n"))
	require.NoError(t, idx.IndexFile("/other/b.go", "func outsideScope() {}\n"))

	matches, err := idx.Search("func", 10)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Contains(t, m.Record.FilePath, "/project/")
	}
}

func TestDeleteFileRemovesRecords(t *testing.T) {
	idx := openTestIndex(t, "")
	require.NoError(t, idx.IndexFile("gone.go", "func vanish() {}\n"))
	require.NoError(t, idx.DeleteFile("gone.go"))

	matches, err := idx.Search("vanish", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestReopenReloadsWithoutReindex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx")

	idx, err := Open(path, "")
	require.NoError(t, err)
	require.NoError(t, idx.IndexFile("persist.go", "func persisted() {}\n"))
	require.NoError(t, idx.Close())

	reopened, err := Open(path, "")
	require.NoError(t, err)
	defer reopened.Close()

	matches, err := reopened.Search("persisted", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
