package vectorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dims int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vec.db")
	s, err := Open(path, dims)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func unitVector(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	s := openTestStore(t, 4)
	err := s.Upsert([]Record{{ID: "a-0", FilePath: "a", Embedding: []float32{1, 2}}})
	assert.Error(t, err)
}

func TestUpsertAndBruteForceSearch(t *testing.T) {
	s := openTestStore(t, 4)
	require.NoError(t, s.Upsert([]Record{
		{ID: "a-0", FilePath: "a", ChunkIndex: 0, Content: "alpha", Embedding: unitVector(4, 0), StartLine: 1, EndLine: 1},
		{ID: "b-0", FilePath: "b", ChunkIndex: 0, Content: "beta", Embedding: unitVector(4, 1), StartLine: 1, EndLine: 1},
	}))

	results, err := s.SearchSimilar(unitVector(4, 0), 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a-0", results[0].ID)
}

func TestDeleteByFileRemovesRecords(t *testing.T) {
	s := openTestStore(t, 4)
	require.NoError(t, s.Upsert([]Record{
		{ID: "a-0", FilePath: "a", ChunkIndex: 0, Content: "alpha", Embedding: unitVector(4, 0)},
	}))
	require.NoError(t, s.DeleteByFile("a"))

	results, err := s.SearchSimilar(unitVector(4, 0), 2)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPrepareForSearchUsesAnnPath(t *testing.T) {
	s := openTestStore(t, 4)
	require.NoError(t, s.Upsert([]Record{
		{ID: "a-0", FilePath: "a", ChunkIndex: 0, Content: "alpha", Embedding: unitVector(4, 0)},
		{ID: "b-0", FilePath: "b", ChunkIndex: 0, Content: "beta", Embedding: unitVector(4, 1)},
	}))
	require.NoError(t, s.PrepareForSearch())

	results, err := s.SearchSimilar(unitVector(4, 0), 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a-0", results[0].ID)
}

func TestSearchSimilarRejectsDimensionMismatch(t *testing.T) {
	s := openTestStore(t, 4)
	_, err := s.SearchSimilar([]float32{1, 2, 3}, 1)
	assert.Error(t, err)
}
