package fabricconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidateRejectsBadDimensions(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Dimensions = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestValidateRejectsBadSimilarityThreshold(t *testing.T) {
	cfg := Default()
	cfg.Search.SimilarityThreshold = 1.5
	assert.Error(t, Validate(cfg))
}

func TestLoadUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
embedding:
  provider: local
  model: test-model
  dimensions: 768
  endpoint: http://localhost:1234
  batch_size: 8
  cache_size: 500
chunking:
  strategies: ["symbols"]
  doc_chunk_size: 100
  code_chunk_size: 200
  overlap: 10
storage:
  backend: sqlite
  max_connections: 5
search:
  top_k_default: 5
  similarity_threshold: 0.5
server:
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
}

func TestGlobalInitGet(t *testing.T) {
	Init(Default())
	cfg, err := Get()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EMBED_SERVER_PORT", "9999")
	t.Setenv("EMBED_STORAGE_BACKEND", "memory")

	cfg := Default()
	require.NoError(t, applyEnvOverrides(cfg))
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

func TestEnvOverrideInvalidPort(t *testing.T) {
	t.Setenv("EMBED_SERVER_PORT", "not-a-number")
	cfg := Default()
	assert.Error(t, applyEnvOverrides(cfg))
}
