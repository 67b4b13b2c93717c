package symbols

import (
	"bufio"
	"regexp"
	"strings"
)

// fallbackPatterns reuses the chunker's boundary-line idiom for languages no
// pack grammar covers. This is a documented grounding gap (see DESIGN.md):
// it produces coarse, best-effort KindOther symbols rather than a real
// parse, satisfying §4.3's "malformed input yields a best-effort partial
// symbol list — never an error" requirement for bash/html/css/json.
var fallbackPatterns = map[string]*regexp.Regexp{
	"bash": regexp.MustCompile(`^\s*(?:function\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(\)\s*\{?`),
	"json": regexp.MustCompile(`^\s*"([^"]+)"\s*:`),
	"css":  regexp.MustCompile(`^\s*([.#]?[A-Za-z0-9_\-\[\]="':., >~+*]+)\s*\{`),
	"html": regexp.MustCompile(`^\s*<([a-zA-Z][a-zA-Z0-9]*)(?:\s+id="([^"]+)")?[^>]*>`),
}

func extractFallback(source []byte, lang, filePath string) []Symbol {
	pattern, ok := fallbackPatterns[lang]
	if !ok {
		return nil
	}

	var out []Symbol
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		name := m[1]
		if lang == "html" && len(m) > 2 && m[2] != "" {
			name = m[2]
		}
		if name == "" {
			continue
		}

		out = append(out, Symbol{
			Name:      name,
			Kind:      KindOther,
			FilePath:  filePath,
			StartLine: line,
			EndLine:   line,
			Signature: strings.TrimSpace(text),
		})
	}
	return out
}
