package treesitter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

// ---------- Ruby ----------

var rubySpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindConstant, ports.KindModule),
	rules: map[string]rule{
		"method":           {kind: ports.KindFunction, construct: cMethod, field: "name", names: []string{"identifier", "constant", "setter", "operator"}, depth: 1, params: []string{"method_parameters"}},
		"singleton_method": {kind: ports.KindMethod, construct: cMethod, field: "name", names: []string{"identifier", "constant", "setter", "operator"}, depth: 1, params: []string{"method_parameters"}},
		"class":            {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"constant", "scope_resolution"}, depth: 1, scope: true, classLike: true},
		"module":           {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"constant", "scope_resolution"}, depth: 1, scope: true, classLike: true},
		"assignment": {
			kind: ports.KindConstant, construct: cConst,
			name: func(x *extraction, n *tree_sitter.Node) string {
				if c := firstNamed(n); c != nil && c.Kind() == "constant" {
					return x.text(c)
				}
				return ""
			},
		},
	},
}

// ---------- PHP ----------

// PHP names are always located structurally: the table marks FieldAccess
// partial for this grammar, so field lookups fall through to the name search.
var phpSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindInterface,
		ports.KindConstant, ports.KindVariable, ports.KindModule),
	rules: map[string]rule{
		"namespace_definition":  {kind: ports.KindModule, construct: cModule, field: "name", names: []string{"namespace_name"}, depth: 1, scope: true, body: "compound_statement"},
		"function_definition":   {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"name"}, depth: 1, params: []string{"formal_parameters"}},
		"class_declaration":     {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"name"}, depth: 1, scope: true, classLike: true},
		"trait_declaration":     {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"name"}, depth: 1, scope: true, classLike: true},
		"enum_declaration":      {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"name"}, depth: 1, scope: true, classLike: true},
		"interface_declaration": {kind: ports.KindInterface, construct: cInterface, field: "name", names: []string{"name"}, depth: 1, scope: true, classLike: true},
		"method_declaration":    {kind: ports.KindMethod, construct: cMethod, field: "name", names: []string{"name"}, depth: 1, params: []string{"formal_parameters"}},
		"const_element":         {kind: ports.KindConstant, construct: cConst, names: []string{"name"}, depth: 1},
		"property_declaration":  {kind: ports.KindVariable, construct: cVar, via: "property_element", names: []string{"name"}, depth: 3},
	},
}

// ---------- Bash ----------

var bashSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindVariable),
	rules: map[string]rule{
		"function_definition": {kind: ports.KindFunction, construct: cFunction, names: []string{"word"}, depth: 1},
		"variable_assignment": {kind: ports.KindVariable, construct: cVar, names: []string{"variable_name"}, depth: 1},
	},
}

// ---------- Lua ----------

var luaSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod),
	rules: map[string]rule{
		"function_declaration": {
			kind: ports.KindFunction, construct: cFunction,
			names: []string{"identifier", "dot_index_expression", "method_index_expression"}, depth: 1,
			params: []string{"parameters"}, refine: luaFunctionKind,
		},
	},
}

// luaFunctionKind treats `function Obj:m()` as a method.
func luaFunctionKind(_ *extraction, _ *tree_sitter.Node, name string) (ports.SymbolKind, bool) {
	if strings.Contains(name, ":") {
		return ports.KindMethod, true
	}
	return ports.KindFunction, true
}
