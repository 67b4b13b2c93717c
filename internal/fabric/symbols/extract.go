package symbols

// Extract produces symbol records for source, dispatching to a tree-sitter
// grammar when one is registered for lang and falling back to a regex
// boundary scan otherwise. Per §4.3, malformed input never errors: a parse
// failure yields whatever partial symbol list was collected before the
// failure (tree-sitter's error-recovery nodes are simply skipped by the
// node-kind rule tables, since unrecognized kinds never match a rule).
func Extract(source []byte, lang, filePath string) []Symbol {
	if Supported(lang) {
		if syms, err := extractTreeSitter(source, lang, filePath); err == nil {
			return syms
		}
	}
	return extractFallback(source, lang, filePath)
}
