package fabricconfig

import (
	"log/slog"
	"sync"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// global is the process-wide config slot (§9 "Global state"): explicit
// Init/Get, never lazily populated from an arbitrary call site. A second
// Init atomically replaces the value; readers always observe a complete
// Config, never a partially-written one.
var global struct {
	mu  sync.RWMutex
	cfg *Config
}

// Init installs cfg as the process-wide configuration.
func Init(cfg *Config) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.cfg = cfg
}

// Get returns the process-wide configuration, or a Configuration error if
// Init has never been called.
func Get() (*Config, error) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if global.cfg == nil {
		return nil, fabricerr.New(fabricerr.Configuration, "configuration not initialized")
	}
	return global.cfg, nil
}

// Reload loads path and replaces the global config on success, leaving the
// prior config in place on failure.
func Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	Init(cfg)
	return nil
}

// LoadOrDefault loads path, falling back to Default() with a logged warning
// if loading fails, matching the original ConfigManager::load_or_default.
func LoadOrDefault(path string, logger *slog.Logger) *Config {
	cfg, err := Load(path)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to load configuration, using defaults", "path", path, "error", err)
		}
		cfg = Default()
	}
	Init(cfg)
	return cfg
}
