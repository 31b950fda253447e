package treesitter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

// ---------- Kotlin ----------

var kotlinSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindVariable),
	rules: map[string]rule{
		"function_declaration": {kind: ports.KindFunction, construct: cFunction, names: []string{"simple_identifier", "identifier"}, depth: 1, params: []string{"function_value_parameters"}},
		"class_declaration":    {kind: ports.KindClass, construct: cClass, names: []string{"type_identifier", "identifier"}, depth: 1, scope: true, classLike: true},
		"object_declaration":   {kind: ports.KindClass, construct: cClass, names: []string{"type_identifier", "identifier"}, depth: 1, scope: true, classLike: true},
		"property_declaration": {kind: ports.KindVariable, construct: cVar, via: "variable_declaration", names: []string{"simple_identifier", "identifier"}, depth: 1},
	},
}

// ---------- Scala ----------

var scalaSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindMethod, ports.KindClass, ports.KindInterface,
		ports.KindConstant, ports.KindVariable),
	rules: map[string]rule{
		"function_definition":  {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"parameters"}},
		"function_declaration": {kind: ports.KindFunction, construct: cFunction, field: "name", names: []string{"identifier"}, depth: 1, params: []string{"parameters"}},
		"class_definition":     {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"object_definition":    {kind: ports.KindClass, construct: cClass, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"trait_definition":     {kind: ports.KindInterface, construct: cInterface, field: "name", names: []string{"identifier"}, depth: 1, scope: true, classLike: true},
		"val_definition":       {kind: ports.KindConstant, construct: cConst, field: "pattern", names: []string{"identifier"}, depth: 1},
		"var_definition":       {kind: ports.KindVariable, construct: cVar, field: "pattern", names: []string{"identifier"}, depth: 1},
	},
}

// ---------- Haskell ----------

var haskellSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindClass, ports.KindInterface, ports.KindOther),
	rules: map[string]rule{
		"function":      {kind: ports.KindFunction, construct: cFunction, names: []string{"variable"}, depth: 1},
		"bind":          {kind: ports.KindFunction, construct: cFunction, names: []string{"variable"}, depth: 1},
		"data_type":     {kind: ports.KindClass, construct: cClass, names: []string{"name"}, depth: 1},
		"newtype":       {kind: ports.KindClass, construct: cClass, names: []string{"name"}, depth: 1},
		"class":         {kind: ports.KindInterface, construct: cInterface, names: []string{"name"}, depth: 1},
		"type_synomym":  {kind: ports.KindOther, construct: cType, names: []string{"name"}, depth: 1},
		"type_family":   {kind: ports.KindOther, construct: cType, names: []string{"name"}, depth: 1},
		"type_instance": {kind: ports.KindOther, construct: cType, names: []string{"name"}, depth: 1},
	},
}

// ---------- OCaml ----------

var ocamlSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindModule, ports.KindOther),
	rules: map[string]rule{
		"let_binding":    {kind: ports.KindFunction, construct: cFunction, names: []string{"value_name"}, depth: 1},
		"type_binding":   {kind: ports.KindOther, construct: cType, names: []string{"type_constructor"}, depth: 1},
		"module_binding": {kind: ports.KindModule, construct: cModule, names: []string{"module_name"}, depth: 1, scope: true},
	},
}

// ---------- Zig ----------

var zigSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindConstant, ports.KindVariable),
	rules: map[string]rule{
		"function_declaration": {kind: ports.KindFunction, construct: cFunction, names: []string{"identifier"}, depth: 1, params: []string{"parameters"}},
		"variable_declaration": {construct: cVar, names: []string{"identifier"}, depth: 1, refine: zigVarKind},
	},
}

func zigVarKind(x *extraction, n *tree_sitter.Node, _ string) (ports.SymbolKind, bool) {
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		switch n.Child(i).Kind() {
		case "const":
			return ports.KindConstant, true
		case "var":
			return ports.KindVariable, true
		}
	}
	if strings.HasPrefix(strings.TrimPrefix(x.text(n), "pub "), "const") {
		return ports.KindConstant, true
	}
	return ports.KindVariable, true
}

// ---------- Verilog ----------

var verilogSpec = &langSpec{
	kinds: kinds(ports.KindFunction, ports.KindModule),
	rules: map[string]rule{
		"module_declaration":   {kind: ports.KindModule, construct: cModule, names: []string{"simple_identifier"}, depth: 3, scope: true},
		"function_declaration": {kind: ports.KindFunction, construct: cFunction, names: []string{"function_identifier", "simple_identifier"}, depth: 4},
		"task_declaration":     {kind: ports.KindFunction, construct: cFunction, names: []string{"task_identifier", "simple_identifier"}, depth: 4},
	},
}

// ---------- HCL ----------

var hclSpec = &langSpec{
	kinds: kinds(ports.KindOther),
	rules: map[string]rule{
		"block": {kind: ports.KindOther, construct: cBlock, name: hclBlockName},
	},
}

// hclBlockName joins the block type and its labels:
// resource "aws_s3_bucket" "logs" becomes resource.aws_s3_bucket.logs.
func hclBlockName(x *extraction, n *tree_sitter.Node) string {
	var parts []string
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "identifier":
			parts = append(parts, x.text(c))
		case "string_lit":
			parts = append(parts, cleanName(x.text(c)))
		case "block_start", "{":
			return strings.Join(parts, ".")
		}
	}
	return strings.Join(parts, ".")
}
