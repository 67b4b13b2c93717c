// Package symbols extracts named definitions (functions, types, fields, ...)
// from source files using tree-sitter grammars, falling back to a regex
// boundary scan for languages the pack carries no grammar for, and indexes
// them in a queryable in-process database.
package symbols

import "strconv"

// Kind enumerates the symbol categories the database distinguishes.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
	KindVariable  Kind = "variable"
	KindField     Kind = "field"
	KindModule    Kind = "module"
	KindOther     Kind = "other"
)

// Symbol is a single named definition extracted from a file.
type Symbol struct {
	Name      string
	Kind      Kind
	FilePath  string
	StartLine int
	EndLine   int
	Signature string
	Parent    string
}

// Key returns the (file_path, name, line_start) tuple the spec declares
// unique per re-index.
func (s Symbol) Key() string {
	return s.FilePath + "\x00" + s.Name + "\x00" + strconv.Itoa(s.StartLine)
}
