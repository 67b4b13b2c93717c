// Package fabricconfig is the process-wide configuration slot: TOML/JSON/
// YAML loading by extension, validation, and environment overrides.
package fabricconfig

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Config is the complete fabric configuration.
type Config struct {
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Server    ServerConfig    `mapstructure:"server"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	Endpoint   string `mapstructure:"endpoint"`
	BatchSize  int    `mapstructure:"batch_size"`
	CacheSize  int    `mapstructure:"cache_size"`
}

type PathsConfig struct {
	Code   []string `mapstructure:"code"`
	Docs   []string `mapstructure:"docs"`
	Ignore []string `mapstructure:"ignore"`
}

type ChunkingConfig struct {
	Strategies    []string `mapstructure:"strategies"`
	DocChunkSize  int      `mapstructure:"doc_chunk_size"`
	CodeChunkSize int      `mapstructure:"code_chunk_size"`
	Overlap       int      `mapstructure:"overlap"`
}

// StorageBackend selects the C8 vector-store/C5 lexical-index backend.
type StorageBackend string

const (
	BackendMemory     StorageBackend = "memory"
	BackendLanceDB    StorageBackend = "lancedb"
	BackendSQLite     StorageBackend = "sqlite"
	BackendPostgreSQL StorageBackend = "postgresql"
)

type StorageConfig struct {
	Backend           StorageBackend `mapstructure:"backend"`
	Path              string         `mapstructure:"path"`
	MaxConnections    int            `mapstructure:"max_connections"`
	ConnTimeoutMillis int            `mapstructure:"connection_timeout_ms"`
	CacheMaxAgeDays   int            `mapstructure:"cache_max_age_days"`
	CacheMaxSizeMB    float64        `mapstructure:"cache_max_size_mb"`
}

type SearchConfig struct {
	TopKDefault          int     `mapstructure:"top_k_default"`
	SimilarityThreshold  float64 `mapstructure:"similarity_threshold"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Workers int    `mapstructure:"workers"`
}

// Default returns a configuration with the fabric's built-in defaults,
// extending the donor's Default() with the Rust original's storage/search/
// server sections (see SPEC_FULL.md §1A).
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   "local",
			Model:      "nomic-embed-text-v1.5",
			Dimensions: 768,
			Endpoint:   "http://localhost:8121/embed",
			BatchSize:  16,
			CacheSize:  2000,
		},
		Paths: PathsConfig{
			Code: []string{
				"**/*.go", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx",
				"**/*.py", "**/*.rs", "**/*.c", "**/*.cpp", "**/*.cc",
				"**/*.h", "**/*.hpp", "**/*.php", "**/*.rb", "**/*.java",
			},
			Docs:   []string{"**/*.md", "**/*.rst"},
			Ignore: []string{"node_modules/**", "vendor/**", ".git/**", "dist/**", "build/**", "target/**", "__pycache__/**"},
		},
		Chunking: ChunkingConfig{
			Strategies:    []string{"symbols", "definitions", "data"},
			DocChunkSize:  800,
			CodeChunkSize: 2000,
			Overlap:       100,
		},
		Storage: StorageConfig{
			Backend:           BackendSQLite,
			Path:              "./data",
			MaxConnections:    10,
			ConnTimeoutMillis: 5000,
			CacheMaxAgeDays:   0,
			CacheMaxSizeMB:    0,
		},
		Search: SearchConfig{
			TopKDefault:         10,
			SimilarityThreshold: 0.7,
		},
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			Workers: 4,
		},
	}
}

// Load reads and validates a Config from path. Format is selected by
// extension (toml/json/yaml/yml); an unsupported or missing extension is a
// Configuration error.
func Load(path string) (*Config, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case "toml", "json", "yaml", "yml":
	default:
		return nil, fabricerr.New(fabricerr.Configuration, "unsupported configuration format: "+path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(ext)
	if err := v.ReadInConfig(); err != nil {
		return nil, fabricerr.Wrap(fabricerr.Configuration, "failed to read configuration file: "+path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fabricerr.Wrap(fabricerr.Configuration, "failed to decode configuration: "+path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides implements §6's environment override contract.
func applyEnvOverrides(cfg *Config) error {
	if val, ok := lookupEnv("EMBED_STORAGE_BACKEND"); ok {
		switch StorageBackend(strings.ToLower(val)) {
		case BackendMemory, BackendLanceDB, BackendSQLite, BackendPostgreSQL:
			cfg.Storage.Backend = StorageBackend(strings.ToLower(val))
		default:
			return fabricerr.New(fabricerr.Configuration, "invalid EMBED_STORAGE_BACKEND: "+val)
		}
	}
	if val, ok := lookupEnv("EMBED_SERVER_PORT"); ok {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fabricerr.Wrap(fabricerr.Configuration, "invalid EMBED_SERVER_PORT: "+val, err)
		}
		cfg.Server.Port = port
	}
	if val, ok := lookupEnv("EMBED_SERVER_WORKERS"); ok {
		workers, err := strconv.Atoi(val)
		if err != nil {
			return fabricerr.Wrap(fabricerr.Configuration, "invalid EMBED_SERVER_WORKERS: "+val, err)
		}
		cfg.Server.Workers = workers
	}
	return nil
}
