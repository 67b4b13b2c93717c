package fabricconfig

import (
	"fmt"
	"strings"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Validate checks the configuration per §4.11: positive max_connections,
// positive embedding.dimensions, positive batch_size, similarity threshold
// in [0,1], positive workers.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Storage.MaxConnections <= 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "storage.max_connections", "must be greater than 0", fmt.Sprint(cfg.Storage.MaxConnections)))
	}
	if cfg.Storage.CacheMaxAgeDays < 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "storage.cache_max_age_days", "cannot be negative", fmt.Sprint(cfg.Storage.CacheMaxAgeDays)))
	}
	if cfg.Storage.CacheMaxSizeMB < 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "storage.cache_max_size_mb", "cannot be negative", fmt.Sprint(cfg.Storage.CacheMaxSizeMB)))
	}

	if cfg.Embedding.Dimensions <= 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "embedding.dimensions", "must be greater than 0", fmt.Sprint(cfg.Embedding.Dimensions)))
	}
	if cfg.Embedding.BatchSize <= 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "embedding.batch_size", "must be greater than 0", fmt.Sprint(cfg.Embedding.BatchSize)))
	}
	provider := strings.ToLower(cfg.Embedding.Provider)
	if provider != "local" && provider != "openai" {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "embedding.provider", "must be 'local' or 'openai'", cfg.Embedding.Provider))
	}

	if cfg.Search.SimilarityThreshold < 0 || cfg.Search.SimilarityThreshold > 1 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "search.similarity_threshold", "must be between 0.0 and 1.0", fmt.Sprint(cfg.Search.SimilarityThreshold)))
	}

	if cfg.Server.Workers <= 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "server.workers", "must be greater than 0", fmt.Sprint(cfg.Server.Workers)))
	}

	if len(cfg.Chunking.Strategies) == 0 {
		errs = append(errs, fabricerr.New(fabricerr.Validation, "chunking.strategies: at least one strategy required"))
	}
	if cfg.Chunking.DocChunkSize <= 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "chunking.doc_chunk_size", "must be positive", fmt.Sprint(cfg.Chunking.DocChunkSize)))
	}
	if cfg.Chunking.CodeChunkSize <= 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "chunking.code_chunk_size", "must be positive", fmt.Sprint(cfg.Chunking.CodeChunkSize)))
	}
	if cfg.Chunking.Overlap < 0 {
		errs = append(errs, fabricerr.Field(fabricerr.Validation, "chunking.overlap", "cannot be negative", fmt.Sprint(cfg.Chunking.Overlap)))
	}

	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fabricerr.New(fabricerr.Validation, "validation failed:\n  - "+strings.Join(msgs, "\n  - "))
}
