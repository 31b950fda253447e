package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

// ---------- C / C++ / CUDA ----------

var cRules = map[string]rule{
	"function_definition": {
		kind: ports.KindFunction, construct: cFunction,
		name: cFunctionName, path: cQualifier, refine: cFunctionKind,
		params: []string{"parameter_list"},
	},
	"struct_specifier":     {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1},
	"union_specifier":      {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1},
	"enum_specifier":       {kind: ports.KindOther, construct: cType, field: "name", names: []string{"type_identifier"}, depth: 1},
	"type_definition":      {kind: ports.KindOther, construct: cType, names: []string{"type_identifier"}, depth: 1},
	"preproc_def":          {kind: ports.KindConstant, construct: cMacro, field: "name", names: []string{"identifier"}, depth: 1},
	"preproc_function_def": {kind: ports.KindFunction, construct: cMacro, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"preproc_params"}},
	"declaration":          {kind: ports.KindVariable, construct: cVar, name: cDeclarationName, refine: cDeclarationKind},
}

var cSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindClass, ports.KindConstant, ports.KindVariable, ports.KindOther),
	rules: cRules,
}

var cppSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindConstant,
		ports.KindVariable, ports.KindModule, ports.KindOther),
	rules: merge(cRules, map[string]rule{
		"class_specifier":      {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1, scope: true, classLike: true},
		"struct_specifier":     {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1, scope: true, classLike: true},
		"namespace_definition": {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"namespace_identifier", "nested_namespace_specifier"}, depth: 1, scope: true},
		"alias_declaration":    {kind: ports.KindOther, construct: cType, field: "name", names: []string{"type_identifier"}, depth: 1},
	}),
}

// cFunctionName finds the declarator's identifier. Qualified names such as
// Foo::bar yield bar; the qualifier goes to the path.
func cFunctionName(x *extraction, n *tree_sitter.Node) string {
	id := cDeclaratorID(n)
	if id == nil {
		return ""
	}
	for id.Kind() == "qualified_identifier" && id.NamedChildCount() > 0 {
		id = id.NamedChild(id.NamedChildCount() - 1)
	}
	return x.text(id)
}

func cDeclaratorID(n *tree_sitter.Node) *tree_sitter.Node {
	d := findDescendant(n, nameDepth, "function_declarator")
	if d == nil {
		return nil
	}
	return firstNamed(d)
}

func cQualifier(x *extraction, n *tree_sitter.Node) []string {
	id := cDeclaratorID(n)
	var path []string
	for id != nil && id.Kind() == "qualified_identifier" && id.NamedChildCount() > 1 {
		path = append(path, x.text(id.NamedChild(0)))
		id = id.NamedChild(id.NamedChildCount() - 1)
	}
	return path
}

func cFunctionKind(_ *extraction, n *tree_sitter.Node, _ string) (ports.SymbolKind, bool) {
	if id := cDeclaratorID(n); id != nil && id.Kind() == "qualified_identifier" {
		return ports.KindMethod, true
	}
	return ports.KindFunction, true
}

// cDeclarationName names a global variable declaration. Prototypes and bare
// type declarations yield no name and are skipped.
func cDeclarationName(x *extraction, n *tree_sitter.Node) string {
	for i := uint(0); i < uint(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "identifier":
			return x.text(c)
		case "init_declarator", "pointer_declarator", "array_declarator":
			return declaratorName(x, c)
		}
	}
	return ""
}

// cDeclarationKind makes const and constexpr globals constants. A pointer to
// const data stays a variable unless the pointer itself is const.
func cDeclarationKind(x *extraction, n *tree_sitter.Node, _ string) (ports.SymbolKind, bool) {
	constant := hasConstQualifier(x, n)
	for i := uint(0); i < uint(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Kind() == "init_declarator" {
			d = firstNamed(d)
		}
		if d != nil && d.Kind() == "pointer_declarator" {
			constant = hasConstQualifier(x, d)
			break
		}
	}
	if constant {
		return ports.KindConstant, true
	}
	return ports.KindVariable, true
}

func hasConstQualifier(x *extraction, n *tree_sitter.Node) bool {
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "constexpr":
			return true
		case "type_qualifier":
			if t := x.text(c); t == "const" || t == "constexpr" {
				return true
			}
		}
	}
	return false
}

func declaratorName(x *extraction, d *tree_sitter.Node) string {
	for d != nil {
		switch d.Kind() {
		case "identifier":
			return x.text(d)
		case "function_declarator":
			return ""
		case "init_declarator", "pointer_declarator", "array_declarator", "parenthesized_declarator":
			var next *tree_sitter.Node
			for i := uint(0); i < uint(d.NamedChildCount()); i++ {
				c := d.NamedChild(i)
				if c.Kind() == "identifier" || c.Kind() == "function_declarator" || c.Kind() == "pointer_declarator" ||
					c.Kind() == "array_declarator" || c.Kind() == "parenthesized_declarator" {
					next = c
					break
				}
			}
			d = next
		default:
			return ""
		}
	}
	return ""
}

// ---------- C# ----------

var csharpSpec = &langSpec{
	kinds: kinds(ports.KindMethod, ports.KindClass, ports.KindInterface, ports.KindConstant,
		ports.KindVariable, ports.KindModule, ports.KindOther),
	rules: map[string]rule{
		"namespace_declaration":             {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"qualified_name", "identifier"}, depth: 1, scope: true},
		"file_scoped_namespace_declaration": {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"qualified_name", "identifier"}, depth: 1, scope: true, body: "declaration_list"},
		"class_declaration":                 {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"struct_declaration":                {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"record_declaration":                {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"interface_declaration":             {kind: ports.KindInterface, construct: cInterface, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"enum_declaration":                  {kind: ports.KindOther, construct: cType, field: "name", names: []string{"identifier"}, depth: 1},
		"method_declaration": {
			kind: ports.KindMethod, construct: cMethod, params: []string{"parameter_list"},
			name: csharpMemberName,
		},
		"constructor_declaration": {kind: ports.KindMethod, construct: cMethod, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"parameter_list"}},
		"property_declaration":    {kind: ports.KindVariable, construct: cVar, name: csharpMemberName},
		"field_declaration": {
			construct: cVar, via: "variable_declarator", names: []string{"identifier"}, depth: 1,
			refine: csharpFieldKind,
		},
	},
}

// csharpMemberName is the identifier right before the parameter list or
// accessor block; return types may themselves be identifiers.
func csharpMemberName(x *extraction, n *tree_sitter.Node) string {
	if x.fieldAccess() {
		if c := n.ChildByFieldName("name"); c != nil {
			return x.text(c)
		}
	}
	var last *tree_sitter.Node
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "identifier":
			last = c
		case "parameter_list", "type_parameter_list", "accessor_list", "arrow_expression_clause", "=":
			if last != nil {
				return x.text(last)
			}
			return ""
		}
	}
	if last != nil {
		return x.text(last)
	}
	return ""
}

func csharpFieldKind(x *extraction, n *tree_sitter.Node, _ string) (ports.SymbolKind, bool) {
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Kind() == "modifier" && x.text(c) == "const" {
			return ports.KindConstant, true
		}
	}
	return ports.KindVariable, true
}
