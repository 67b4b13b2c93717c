package symbols

import (
	"strings"
	"sync"

	"github.com/dominikbraun/graph"
)

// Database indexes extracted symbols for O(1)-average name lookup and
// O(1)-average kind/file aggregation, matching §4.3's
// find_definition/find_all_references/find_by_kind/files_indexed/total_symbols
// contract. Symbols are replaced en bloc per file on re-index.
type Database struct {
	mu sync.RWMutex

	byName map[string][]Symbol
	byKind map[Kind][]Symbol
	byFile map[string][]Symbol

	// refs is a directed graph from a definition's name to the names of
	// every other symbol whose signature text mentions it — a best-effort
	// reference graph, since this is a lightweight symbol table rather than
	// a full semantic analysis with resolved call sites (see DESIGN.md).
	refs graph.Graph[string, string]
}

// NewDatabase returns an empty symbol database.
func NewDatabase() *Database {
	return &Database{
		byName: make(map[string][]Symbol),
		byKind: make(map[Kind][]Symbol),
		byFile: make(map[string][]Symbol),
		refs:   graph.New(graph.StringHash, graph.Directed()),
	}
}

// ReplaceFile removes all symbols previously indexed for filePath and
// indexes syms in their place, preserving the "readers see either entirely
// the old set or entirely the new set" invariant under the write lock.
func (d *Database) ReplaceFile(filePath string, syms []Symbol) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeFileLocked(filePath)
	d.byFile[filePath] = append([]Symbol(nil), syms...)

	for _, s := range syms {
		d.byName[s.Name] = append(d.byName[s.Name], s)
		d.byKind[s.Kind] = append(d.byKind[s.Kind], s)
		_ = d.refs.AddVertex(s.Name)
	}

	d.indexReferencesLocked(syms)
}

func (d *Database) removeFileLocked(filePath string) {
	old, ok := d.byFile[filePath]
	if !ok {
		return
	}
	delete(d.byFile, filePath)

	for _, s := range old {
		d.byName[s.Name] = removeSymbol(d.byName[s.Name], s)
		if len(d.byName[s.Name]) == 0 {
			delete(d.byName, s.Name)
		}
		d.byKind[s.Kind] = removeSymbol(d.byKind[s.Kind], s)
		if len(d.byKind[s.Kind]) == 0 {
			delete(d.byKind, s.Kind)
		}
	}
}

func removeSymbol(list []Symbol, target Symbol) []Symbol {
	out := list[:0]
	for _, s := range list {
		if s.Key() != target.Key() {
			out = append(out, s)
		}
	}
	return out
}

// indexReferencesLocked scans every symbol's signature for mentions of
// other known symbol names and records a directed edge referenced->referrer.
func (d *Database) indexReferencesLocked(syms []Symbol) {
	for _, referrer := range syms {
		if referrer.Signature == "" {
			continue
		}
		for name := range d.byName {
			if name == referrer.Name {
				continue
			}
			if containsIdentifier(referrer.Signature, name) {
				_ = d.refs.AddEdge(name, referrer.Name)
			}
		}
	}
}

func containsIdentifier(haystack, name string) bool {
	idx := strings.Index(haystack, name)
	if idx < 0 {
		return false
	}
	before := idx == 0 || !isIdentByte(haystack[idx-1])
	after := idx+len(name) >= len(haystack) || !isIdentByte(haystack[idx+len(name)])
	return before && after
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// FindDefinition returns every symbol named name, least recently indexed
// file first.
func (d *Database) FindDefinition(name string) []Symbol {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Symbol(nil), d.byName[name]...)
}

// FindAllReferences returns the names of symbols whose signature mentions
// name, per the best-effort reference graph built at index time.
func (d *Database) FindAllReferences(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	edges, err := d.refs.AdjacencyMap()
	if err != nil {
		return nil
	}
	targets, ok := edges[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(targets))
	for to := range targets {
		out = append(out, to)
	}
	return out
}

// FindByKind returns every indexed symbol of the given kind.
func (d *Database) FindByKind(kind Kind) []Symbol {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Symbol(nil), d.byKind[kind]...)
}

// SymbolsInRange returns every symbol indexed for filePath whose line span
// overlaps [startLine, endLine], used by the Hybrid Searcher to populate a
// result's symbols_in_target.
func (d *Database) SymbolsInRange(filePath string, startLine, endLine int) []Symbol {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Symbol
	for _, s := range d.byFile[filePath] {
		if s.StartLine <= endLine && s.EndLine >= startLine {
			out = append(out, s)
		}
	}
	return out
}

// FilesIndexed returns the number of distinct files with symbols indexed.
func (d *Database) FilesIndexed() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byFile)
}

// TotalSymbols returns the total number of indexed symbols across all files.
func (d *Database) TotalSymbols() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, syms := range d.byFile {
		total += len(syms)
	}
	return total
}
