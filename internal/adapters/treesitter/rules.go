package treesitter

import (
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

// Construct names shared with the capability table.
const (
	cPackage   = "PackageClause"
	cFunction  = "FunctionDeclaration"
	cMethod    = "MethodDeclaration"
	cClass     = "ClassDeclaration"
	cInterface = "InterfaceDeclaration"
	cType      = "TypeDeclaration"
	cConst     = "ConstDeclaration"
	cVar       = "VariableDeclaration"
	cModule    = "ModuleDeclaration"
	cImpl      = "ImplBlock"
	cMacro     = "MacroDefinition"
	cBlock     = "BlockDeclaration"
)

// specFor returns the extraction recipe for a language tag, or nil for
// grammars that carry no symbols (data formats, markup).
func specFor(lang string) *langSpec {
	switch lang {
	case "go":
		return goSpec
	case "python":
		return pythonSpec
	case "javascript":
		return jsSpec
	case "typescript", "tsx":
		return tsSpec
	case "java":
		return javaSpec
	case "rust":
		return rustSpec
	case "c":
		return cSpec
	case "cpp", "cuda":
		return cppSpec
	case "csharp":
		return csharpSpec
	case "ruby":
		return rubySpec
	case "php":
		return phpSpec
	case "bash":
		return bashSpec
	case "sql":
		return sqlSpec
	case "kotlin":
		return kotlinSpec
	case "scala":
		return scalaSpec
	case "lua":
		return luaSpec
	case "haskell":
		return haskellSpec
	case "ocaml":
		return ocamlSpec
	case "zig":
		return zigSpec
	case "verilog":
		return verilogSpec
	case "hcl":
		return hclSpec
	}
	return nil
}

func kinds(k ...ports.SymbolKind) []ports.SymbolKind { return k }

func isUpperName(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// ---------- Go ----------

var goSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindInterface,
		ports.KindConstant, ports.KindVariable, ports.KindModule, ports.KindOther),
	rules: map[string]rule{
		"package_clause":       {kind: ports.KindModule, construct: cPackage, names: []string{"package_identifier"}, depth: 1},
		"function_declaration": {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"parameter_list"}},
		"method_declaration": {
			kind: ports.KindMethod, construct: cMethod, field: "name", names: []string{"field_identifier"}, depth: 1,
			path: goReceiver, sig: goMethodSignature,
		},
		"type_spec":  {construct: cType, field: "name", names: []string{"type_identifier"}, depth: 1, refine: goTypeKind},
		"type_alias": {kind: ports.KindOther, construct: cType, field: "name", names: []string{"type_identifier"}, depth: 1},
		"const_spec": {kind: ports.KindConstant, construct: cConst, field: "name", names: []string{"identifier"}, depth: 1},
		"var_spec":   {kind: ports.KindVariable, construct: cVar, field: "name", names: []string{"identifier"}, depth: 1},
	},
}

func goReceiver(x *extraction, n *tree_sitter.Node) []string {
	recv := childByKind(n, "parameter_list")
	if recv == nil {
		return nil
	}
	if t := findDescendant(recv, 4, "type_identifier"); t != nil {
		return []string{x.text(t)}
	}
	return nil
}

// Go method signatures are the parameter list after the name, not the
// receiver list, so the generic signature lookup is not used.
func goMethodSignature(x *extraction, n *tree_sitter.Node, name string) string {
	seen := false
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Kind() == "field_identifier" {
			seen = true
			continue
		}
		if seen && c.Kind() == "parameter_list" {
			return name + squash(x.text(c))
		}
	}
	return ""
}

func goTypeKind(x *extraction, n *tree_sitter.Node, _ string) (ports.SymbolKind, bool) {
	for i := uint(0); i < uint(n.NamedChildCount()); i++ {
		switch n.NamedChild(i).Kind() {
		case "struct_type":
			return ports.KindClass, true
		case "interface_type":
			return ports.KindInterface, true
		}
	}
	return ports.KindOther, true
}

// ---------- Python ----------

var pythonSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindConstant, ports.KindVariable),
	rules: map[string]rule{
		"function_definition": {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"parameters"}},
		"class_definition":    {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"assignment": {
			construct: cVar,
			name: func(x *extraction, n *tree_sitter.Node) string {
				if c := firstNamed(n); c != nil && c.Kind() == "identifier" {
					return x.text(c)
				}
				return ""
			},
			refine: constantIfUpper,
		},
	},
}

func constantIfUpper(_ *extraction, _ *tree_sitter.Node, name string) (ports.SymbolKind, bool) {
	if isUpperName(name) {
		return ports.KindConstant, true
	}
	return ports.KindVariable, true
}

// ---------- JavaScript / TypeScript ----------

var jsRules = map[string]rule{
	"function_declaration":           {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"formal_parameters"}},
	"generator_function_declaration": {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"formal_parameters"}},
	"class_declaration":              {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier", "type_identifier"}, depth: 1, scope: true, classLike: true},
	"method_definition": {
		kind: ports.KindMethod, construct: cMethod, field: "name",
		names: []string{"property_identifier", "private_property_identifier"}, depth: 1,
		params: []string{"formal_parameters"},
	},
	"variable_declarator": {
		construct: cVar,
		name: func(x *extraction, n *tree_sitter.Node) string {
			if c := firstNamed(n); c != nil && c.Kind() == "identifier" {
				return x.text(c)
			}
			return ""
		},
		refine: jsDeclaratorKind,
	},
}

func jsDeclaratorKind(_ *extraction, n *tree_sitter.Node, _ string) (ports.SymbolKind, bool) {
	for i := uint(1); i < uint(n.NamedChildCount()); i++ {
		switch n.NamedChild(i).Kind() {
		case "arrow_function", "function_expression", "function", "generator_function":
			return ports.KindFunction, true
		}
	}
	if p := n.Parent(); p != nil && p.ChildCount() > 0 && p.Child(0).Kind() == "const" {
		return ports.KindConstant, true
	}
	return ports.KindVariable, true
}

var jsSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindConstant, ports.KindVariable),
	rules: jsRules,
}

var tsSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindInterface,
		ports.KindConstant, ports.KindVariable, ports.KindModule, ports.KindOther),
	rules: merge(jsRules, map[string]rule{
		"abstract_class_declaration": {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1, scope: true, classLike: true},
		"interface_declaration":      {kind: ports.KindInterface, construct: cInterface, field: "name", names: []string{"type_identifier"}, depth: 1},
		"type_alias_declaration":     {kind: ports.KindOther, construct: cType, field: "name", names: []string{"type_identifier"}, depth: 1},
		"enum_declaration":           {kind: ports.KindOther, construct: cType, field: "name", names: []string{"identifier"}, depth: 1},
		"internal_module":            {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"identifier", "nested_identifier"}, depth: 1, scope: true},
		"module":                     {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"identifier", "nested_identifier", "string"}, depth: 1, scope: true},
	}),
}

func merge(base, extra map[string]rule) map[string]rule {
	out := make(map[string]rule, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ---------- Java ----------

var javaSpec = &langSpec{
	kinds: kinds(ports.KindMethod, ports.KindClass, ports.KindInterface, ports.KindConstant,
		ports.KindVariable, ports.KindModule),
	rules: map[string]rule{
		"package_declaration":         {kind: ports.KindModule, construct: cPackage, names: []string{"scoped_identifier", "identifier"}, depth: 1},
		"class_declaration":           {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"enum_declaration":            {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"record_declaration":          {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"interface_declaration":       {kind: ports.KindInterface, construct: cInterface, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"annotation_type_declaration": {kind: ports.KindInterface, construct: cInterface, field: "name", names: []string{"identifier"}, depth: 1},
		"method_declaration":          {kind: ports.KindMethod, construct: cMethod, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"formal_parameters"}},
		"constructor_declaration":     {kind: ports.KindMethod, construct: cMethod, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"formal_parameters"}},
		"field_declaration": {
			construct: cVar, via: "variable_declarator", field: "name", names: []string{"identifier"}, depth: 1,
			refine: javaFieldKind,
		},
	},
}

func javaFieldKind(x *extraction, n *tree_sitter.Node, _ string) (ports.SymbolKind, bool) {
	if m := childByKind(n, "modifiers"); m != nil {
		words := strings.Fields(x.text(m))
		static, final := false, false
		for _, w := range words {
			static = static || w == "static"
			final = final || w == "final"
		}
		if static && final {
			return ports.KindConstant, true
		}
	}
	return ports.KindVariable, true
}

// ---------- Rust ----------

var rustSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindInterface,
		ports.KindConstant, ports.KindVariable, ports.KindModule, ports.KindOther),
	rules: map[string]rule{
		"function_item":           {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"parameters"}},
		"function_signature_item": {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"parameters"}},
		"struct_item":             {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1},
		"enum_item":               {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1},
		"union_item":              {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"type_identifier"}, depth: 1},
		"trait_item":              {kind: ports.KindInterface, construct: cInterface, field: "name", names: []string{"type_identifier"}, depth: 1, scope: true, classLike: true},
		"impl_item": {
			construct: cImpl, scope: true, classLike: true,
			name: rustImplType,
		},
		"const_item":       {kind: ports.KindConstant, construct: cConst, field: "name", names: []string{"identifier"}, depth: 1},
		"static_item":      {kind: ports.KindVariable, construct: cVar, field: "name", names: []string{"identifier"}, depth: 1},
		"mod_item":         {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"identifier"}, depth: 1, scope: true},
		"type_item":        {kind: ports.KindOther, construct: cType, field: "name", names: []string{"type_identifier"}, depth: 1},
		"macro_definition": {kind: ports.KindOther, construct: cMacro, field: "name", names: []string{"identifier"}, depth: 1},
	},
}

// rustImplType names an impl block after the type it implements, which is
// the last type before the body: `impl Trait for Type` yields Type.
func rustImplType(x *extraction, n *tree_sitter.Node) string {
	if x.fieldAccess() {
		if t := n.ChildByFieldName("type"); t != nil {
			return baseTypeName(x, t)
		}
	}
	var last *tree_sitter.Node
	for i := uint(0); i < uint(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "type_identifier", "generic_type", "scoped_type_identifier", "reference_type", "primitive_type":
			last = c
		}
	}
	if last == nil {
		return ""
	}
	return baseTypeName(x, last)
}

func baseTypeName(x *extraction, t *tree_sitter.Node) string {
	if t.Kind() == "type_identifier" || t.Kind() == "primitive_type" {
		return x.text(t)
	}
	if id := findDescendant(t, 3, "type_identifier"); id != nil {
		return x.text(id)
	}
	return x.text(t)
}
