// Command fabricd is a minimal smoke-test binary for the retrieval fabric:
// it wires configuration into a Fabric and exposes index/search verbs.
// The surface is intentionally tiny (two verbs), so it uses stdlib flag
// rather than a command-tree library (see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/retrievalfabric/core/internal/fabric/bm25"
	"github.com/retrievalfabric/core/internal/fabric/fabricconfig"
	"github.com/retrievalfabric/core/internal/fabric/hybrid"
	"github.com/retrievalfabric/core/internal/fabric/lexical"
	"github.com/retrievalfabric/core/internal/fabric/metrics"
	"github.com/retrievalfabric/core/internal/fabric/symbols"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "index":
		runIndex(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fabricd <index|search> [flags]")
}

func runIndex(args []string) {
	fset := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fset.String("config", "", "path to fabric config file (toml/json/yaml)")
	root := fset.String("root", ".", "root directory to index")
	fset.Parse(args)

	logger := slog.Default()
	cfg := fabricconfig.LoadOrDefault(*configPath, logger)

	f, closeFn, err := buildFabric(cfg, logger)
	if err != nil {
		logger.Error("failed to build fabric", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	ctx := context.Background()
	err = filepath.WalkDir(*root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isIndexableExt(filepath.Ext(path)) {
			return nil
		}
		if err := f.IndexFile(ctx, path); err != nil {
			logger.Warn("failed to index file", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("walk failed", "error", err)
		os.Exit(1)
	}

	counters := f.Counters()
	fmt.Printf("indexed %d files, %d chunks, %d chunk errors\n", counters.FilesIndexed, counters.ChunksCreated, counters.Errors)
}

func runSearch(args []string) {
	fset := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fset.String("config", "", "path to fabric config file (toml/json/yaml)")
	topN := fset.Int("top-n", 10, "number of results to return")
	fset.Parse(args)

	if fset.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: fabricd search [flags] <query>")
		os.Exit(2)
	}
	query := strings.Join(fset.Args(), " ")

	logger := slog.Default()
	cfg := fabricconfig.LoadOrDefault(*configPath, logger)

	f, closeFn, err := buildFabric(cfg, logger)
	if err != nil {
		logger.Error("failed to build fabric", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	results, err := f.Search(context.Background(), query, *topN)
	if err != nil {
		logger.Error("search failed", "error", err)
		os.Exit(1)
	}

	for i, r := range results {
		fmt.Printf("%d. %s (%s, score=%.4f, lines %d-%d)\n", i+1, r.FilePath, r.MatchType, r.Score, r.StartLine, r.EndLine)
		for _, s := range r.SymbolsInTarget {
			fmt.Printf("     symbol: %s %s\n", s.Kind, s.Name)
		}
	}
}

// buildFabric wires every component with a concrete, weight-free
// implementation. Semantic embedding needs a pluggable embed.Model backed by
// real inference compute, which this transformation does not implement (the
// donor itself externalizes that to a separate Python subprocess, see
// DESIGN.md) — so fabricd runs BM25 + lexical + symbol fusion only; the
// Embedder/Vectors fields are left nil, which hybrid.Search already treats
// as "skip the semantic leg".
func buildFabric(cfg *fabricconfig.Config, logger *slog.Logger) (*hybrid.Fabric, func(), error) {
	dataDir := cfg.Storage.Path
	if dataDir == "" {
		dataDir = ".fabric"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, err
	}

	lex, err := lexical.Open(filepath.Join(dataDir, "lexical"), "")
	if err != nil {
		return nil, nil, err
	}

	f := hybrid.New(bm25.New(1.2, 0.75), lex, symbols.NewDatabase(), nil, nil, metrics.New())
	f.Logger = logger

	closeFn := func() {
		_ = lex.Close()
	}
	return f, closeFn, nil
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, "target": true, "__pycache__": true, ".fabric": true,
}

func shouldSkipDir(name string) bool {
	return skipDirs[name]
}

var indexableExt = map[string]bool{
	".go": true, ".rs": true, ".py": true, ".js": true, ".jsx": true,
	".ts": true, ".tsx": true, ".java": true, ".c": true, ".h": true,
	".cpp": true, ".cc": true, ".hpp": true, ".php": true, ".rb": true,
	".md": true, ".sh": true, ".bash": true, ".json": true, ".css": true,
	".html": true, ".htm": true,
}

func isIndexableExt(ext string) bool {
	return indexableExt[strings.ToLower(ext)]
}
