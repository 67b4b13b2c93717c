package symbols

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tsc "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tscpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tsgo "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tsjava "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tsjs "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tsphp "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tspy "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tsruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	tsrust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tsts "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// nodeRule maps a tree-sitter node kind to the Symbol kind it produces.
// containerField, when set, names the field holding the enclosing type's
// name for container nodes (e.g. Rust's impl_item "type" field); memberKind
// names the kind assigned to definitions nested directly in that container's
// body (donor's extractImpl/extractMethod split).
type nodeRule struct {
	kind           Kind
	skipChildren   bool
	containerField string
	memberKind     Kind
}

// languageSpec binds a tree-sitter grammar to its node-kind rule table.
type languageSpec struct {
	language *sitter.Language
	rules    map[string]nodeRule
}

var registry = map[string]languageSpec{
	"rust": {
		language: sitter.NewLanguage(tsrust.Language()),
		rules: map[string]nodeRule{
			"struct_item":    {kind: KindStruct},
			"enum_item":      {kind: KindEnum},
			"trait_item":     {kind: KindInterface},
			"function_item":  {kind: KindFunction},
			"const_item":     {kind: KindVariable},
			"static_item":    {kind: KindVariable},
			"mod_item":       {kind: KindModule},
			"impl_item":      {kind: KindOther, skipChildren: true, containerField: "type", memberKind: KindMethod},
			"field_declaration": {kind: KindField},
		},
	},
	"python": {
		language: sitter.NewLanguage(tspy.Language()),
		rules: map[string]nodeRule{
			"class_definition":    {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"function_definition": {kind: KindFunction},
		},
	},
	"javascript": {
		language: sitter.NewLanguage(tsjs.Language()),
		rules: map[string]nodeRule{
			"class_declaration":    {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"function_declaration": {kind: KindFunction},
			"method_definition":    {kind: KindMethod},
			"lexical_declaration":  {kind: KindVariable},
		},
	},
	"typescript": {
		language: sitter.NewLanguage(tsts.LanguageTypescript()),
		rules: map[string]nodeRule{
			"class_declaration":     {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"interface_declaration": {kind: KindInterface},
			"function_declaration":  {kind: KindFunction},
			"method_definition":     {kind: KindMethod},
			"lexical_declaration":   {kind: KindVariable},
			"type_alias_declaration": {kind: KindOther},
		},
	},
	"tsx": {
		language: sitter.NewLanguage(tsts.LanguageTSX()),
		rules: map[string]nodeRule{
			"class_declaration":     {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"interface_declaration": {kind: KindInterface},
			"function_declaration":  {kind: KindFunction},
			"method_definition":     {kind: KindMethod},
			"lexical_declaration":   {kind: KindVariable},
		},
	},
	"go": {
		language: sitter.NewLanguage(tsgo.Language()),
		rules: map[string]nodeRule{
			"function_declaration": {kind: KindFunction},
			"method_declaration":   {kind: KindMethod},
			"type_spec":            {kind: KindStruct},
			"const_spec":           {kind: KindVariable},
			"var_spec":             {kind: KindVariable},
		},
	},
	"java": {
		language: sitter.NewLanguage(tsjava.Language()),
		rules: map[string]nodeRule{
			"class_declaration":     {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"interface_declaration": {kind: KindInterface, containerField: "name", memberKind: KindMethod},
			"enum_declaration":      {kind: KindEnum},
			"method_declaration":    {kind: KindMethod},
			"field_declaration":     {kind: KindField},
			"constructor_declaration": {kind: KindMethod},
		},
	},
	"c": {
		language: sitter.NewLanguage(tsc.Language()),
		rules: map[string]nodeRule{
			"function_definition": {kind: KindFunction},
			"struct_specifier":    {kind: KindStruct},
			"enum_specifier":      {kind: KindEnum},
		},
	},
	"cpp": {
		language: sitter.NewLanguage(tscpp.Language()),
		rules: map[string]nodeRule{
			"function_definition": {kind: KindFunction},
			"struct_specifier":    {kind: KindStruct},
			"class_specifier":     {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"enum_specifier":      {kind: KindEnum},
			"namespace_definition": {kind: KindModule},
		},
	},
	"php": {
		language: sitter.NewLanguage(tsphp.LanguagePHP()),
		rules: map[string]nodeRule{
			"class_declaration":     {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"interface_declaration": {kind: KindInterface},
			"function_definition":   {kind: KindFunction},
			"method_declaration":    {kind: KindMethod},
		},
	},
	"ruby": {
		language: sitter.NewLanguage(tsruby.Language()),
		rules: map[string]nodeRule{
			"class":  {kind: KindClass, containerField: "name", memberKind: KindMethod},
			"module": {kind: KindModule},
			"method": {kind: KindMethod},
		},
	},
}

// Supported reports whether a tree-sitter grammar is registered for lang.
func Supported(lang string) bool {
	_, ok := registry[lang]
	return ok
}

func extractTreeSitter(source []byte, lang, filePath string) ([]Symbol, error) {
	spec, ok := registry[lang]
	if !ok {
		return nil, errUnsupported(lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(spec.language); err != nil {
		return nil, err
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	var out []Symbol
	walk(tree.RootNode(), source, filePath, spec.rules, "", "", &out)
	return out, nil
}

func walk(node *sitter.Node, source []byte, filePath string, rules map[string]nodeRule, parent string, memberKind Kind, out *[]Symbol) {
	if node == nil {
		return
	}

	rule, matched := rules[node.Kind()]
	nextParent := parent
	nextMember := memberKind

	if matched {
		name := fieldText(node, "name", source)
		if name == "" {
			name = fieldText(node, "declarator", source)
		}
		if name != "" && rule.kind != KindOther {
			kind := rule.kind
			if kind == KindFunction && memberKind != "" {
				kind = memberKind
			}
			*out = append(*out, Symbol{
				Name:      name,
				Kind:      kind,
				FilePath:  filePath,
				StartLine: int(node.StartPosition().Row) + 1,
				EndLine:   int(node.EndPosition().Row) + 1,
				Parent:    parent,
			})
		}
		nextMember = rule.memberKind
		if rule.containerField != "" {
			if cname := fieldText(node, rule.containerField, source); cname != "" {
				nextParent = cname
			}
		}
	}

	if matched && rule.skipChildren {
		// Container node (e.g. Rust impl block): descend once more with the
		// container's member kind applied to direct function definitions.
		walkContainerBody(node, source, filePath, rule, nextParent, out)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(uint(i)), source, filePath, rules, nextParent, nextMember, out)
	}
}

// walkContainerBody handles nodes like Rust's impl_item whose direct
// function children are methods of the container rather than free
// functions, mirroring the donor's extractImpl/extractMethod split.
func walkContainerBody(node *sitter.Node, source []byte, filePath string, rule nodeRule, parent string, out *[]Symbol) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(uint(i))
		name := fieldText(child, "name", source)
		if name == "" {
			continue
		}
		*out = append(*out, Symbol{
			Name:      name,
			Kind:      rule.memberKind,
			FilePath:  filePath,
			StartLine: int(child.StartPosition().Row) + 1,
			EndLine:   int(child.EndPosition().Row) + 1,
			Parent:    parent,
		})
	}
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	n := node.ChildByFieldName(field)
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}

type unsupportedLangError string

func (e unsupportedLangError) Error() string { return "unsupported language: " + string(e) }

func errUnsupported(lang string) error { return unsupportedLangError(lang) }
