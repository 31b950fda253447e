//go:build !lean

package treesitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/symdex/internal/domain/capability"
	"github.com/corey/symdex/internal/ports"
)

var testCatalog = NewCatalog()

func registry(t *testing.T) *capability.Registry {
	t.Helper()
	r, err := capability.Default()
	require.NoError(t, err)
	return r
}

func extractWith(t *testing.T, lang string, caps ports.CapabilityChecker, src string) ports.Extraction {
	t.Helper()
	l, ok := testCatalog.Get(lang)
	require.True(t, ok, "language %s not registered", lang)
	tree, err := l.Parse([]byte(src), nil, nil)
	require.NoError(t, err)
	defer tree.Close()
	out, err := l.Extract(tree, caps)
	require.NoError(t, err)
	return out
}

func extract(t *testing.T, lang, src string) ports.Extraction {
	t.Helper()
	return extractWith(t, lang, registry(t), src)
}

// brief is the part of a symbol most tests care about.
type brief struct {
	Kind ports.SymbolKind
	Name string
	Path string
}

func briefs(syms []ports.Symbol) []brief {
	out := make([]brief, len(syms))
	for i, s := range syms {
		out[i] = brief{s.Kind, s.Name, s.QualifiedName(".")}
	}
	return out
}

func byName(t *testing.T, syms []ports.Symbol, name string) ports.Symbol {
	t.Helper()
	for _, s := range syms {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not found in %v", name, briefs(syms))
	return ports.Symbol{}
}

// =============================================================================
// Go
// =============================================================================

const goSource = `package shapes

const Pi = 3.14

var registry = map[string]int{}

type Shape interface {
	Area() float64
}

type Circle struct {
	R float64
}

func (c *Circle) Area() float64 {
	return Pi * c.R * c.R
}

func New(r float64) *Circle { return &Circle{R: r} }
`

func TestExtract_Go(t *testing.T) {
	out := extract(t, "go", goSource)

	assert.Equal(t, []brief{
		{ports.KindModule, "shapes", "shapes"},
		{ports.KindConstant, "Pi", "Pi"},
		{ports.KindVariable, "registry", "registry"},
		{ports.KindInterface, "Shape", "Shape"},
		{ports.KindClass, "Circle", "Circle"},
		{ports.KindMethod, "Area", "Circle.Area"},
		{ports.KindFunction, "New", "New"},
	}, briefs(out.Symbols))
	assert.Empty(t, out.Diagnostics)

	area := byName(t, out.Symbols, "Area")
	assert.Equal(t, "Area()", area.Signature)
	assert.Equal(t, 15, area.StartLine)
	assert.Equal(t, 0, area.StartCol)
	assert.Equal(t, 17, area.EndLine)
	assert.Equal(t, ports.ConfidenceExact, area.Confidence)

	assert.Equal(t, "New(r float64)", byName(t, out.Symbols, "New").Signature)
	for _, s := range out.Symbols {
		assert.True(t, s.Location.Valid(), "%s has invalid location", s.Name)
		assert.NotNil(t, s.QualifiedPath)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	a := extract(t, "go", goSource)
	b := extract(t, "go", goSource)
	assert.Equal(t, a, b)
}

func TestExtract_PartialParseKeepsIntactDeclarations(t *testing.T) {
	src := `package p

func Good() {}

func Broken( {

type T struct{}
`
	l, _ := testCatalog.Get("go")
	tree, err := l.Parse([]byte(src), nil, nil)
	require.NoError(t, err)
	defer tree.Close()
	assert.True(t, tree.HasErrors())

	out, err := l.Extract(tree, registry(t))
	require.NoError(t, err)
	good := byName(t, out.Symbols, "Good")
	assert.Equal(t, ports.KindFunction, good.Kind)
	assert.Equal(t, ports.ConfidenceExact, good.Confidence)
}

// =============================================================================
// Capability gating
// =============================================================================

// overrideCaps answers from a fixed map and falls back to the real table.
type overrideCaps struct {
	base ports.CapabilityChecker
	over map[string]ports.Support
}

func (o overrideCaps) Supports(lang, version, construct string) ports.Support {
	if s, ok := o.over[construct]; ok {
		return s
	}
	return o.base.Supports(lang, version, construct)
}

func TestExtract_UnsupportedConstructIsDiagnosedNotGuessed(t *testing.T) {
	caps := overrideCaps{base: registry(t), over: map[string]ports.Support{
		"FunctionDeclaration": {Status: ports.Unsupported, Note: "functions unavailable"},
	}}
	out := extractWith(t, "go", caps, goSource)

	for _, s := range out.Symbols {
		assert.NotEqual(t, ports.KindFunction, s.Kind)
	}
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, ports.Diagnostic{Construct: "FunctionDeclaration", Note: "functions unavailable", Line: 19}, out.Diagnostics[0])
	byName(t, out.Symbols, "Area")
}

func TestExtract_PartialConstructIsBestEffort(t *testing.T) {
	caps := overrideCaps{base: registry(t), over: map[string]ports.Support{
		"TypeDeclaration": {Status: ports.PartiallySupported, Note: "generics are skipped"},
	}}
	out := extractWith(t, "go", caps, goSource)
	assert.Equal(t, ports.ConfidenceBestEffort, byName(t, out.Symbols, "Circle").Confidence)
	assert.Equal(t, ports.ConfidenceExact, byName(t, out.Symbols, "New").Confidence)
}

func TestExtract_UnknownGrammarIsBestEffortAndStructural(t *testing.T) {
	// No table at all: nothing is Supported, field names are not trusted.
	known := extract(t, "go", goSource)
	out := extractWith(t, "go", nil, goSource)

	assert.Equal(t, briefs(known.Symbols), briefs(out.Symbols), "structural search finds the same names")
	for _, s := range out.Symbols {
		assert.Equal(t, ports.ConfidenceBestEffort, s.Confidence, s.Name)
	}
}

// =============================================================================
// Per-language extraction
// =============================================================================

func TestExtract_PHPConstants(t *testing.T) {
	out := extract(t, "php", "<?php\nconst FOO = 1; const BAR = 2;")

	require.Len(t, out.Symbols, 2)
	for i, name := range []string{"FOO", "BAR"} {
		s := out.Symbols[i]
		assert.Equal(t, ports.KindConstant, s.Kind)
		assert.Equal(t, name, s.Name)
		assert.Equal(t, 2, s.StartLine)
		assert.Equal(t, ports.ConfidenceExact, s.Confidence)
	}
	assert.Empty(t, out.Diagnostics)
}

func TestExtract_PHPClass(t *testing.T) {
	out := extract(t, "php", `<?php
namespace App;

class User {
    const ROLE = 'admin';
    public function name($x) { return $x; }
}
`)
	assert.Equal(t, []brief{
		{ports.KindModule, "App", "App"},
		{ports.KindClass, "User", "App.User"},
		{ports.KindConstant, "ROLE", "App.User.ROLE"},
		{ports.KindMethod, "name", "App.User.name"},
	}, briefs(out.Symbols))
}

func TestExtract_SQLProcedureGap(t *testing.T) {
	src := "CREATE FUNCTION f1() RETURNS INT AS $$ SELECT 1 $$ LANGUAGE sql;\n" +
		"\n" +
		"CREATE PROCEDURE p1() AS $$ SELECT 1 $$ LANGUAGE sql;\n"
	out := extract(t, "sql", src)

	var routines []ports.Symbol
	for _, s := range out.Symbols {
		if s.Kind == ports.KindStoredRoutine {
			routines = append(routines, s)
		}
	}
	require.Len(t, routines, 1)
	assert.Equal(t, "f1", routines[0].Name)
	assert.Equal(t, 1, routines[0].StartLine)

	require.Len(t, out.Diagnostics, 1)
	d := out.Diagnostics[0]
	assert.Equal(t, "CreateProcedure", d.Construct)
	assert.Equal(t, 3, d.Line)
	assert.NotEmpty(t, d.Note)
}

func TestExtract_SQLProcedureInCommentIgnored(t *testing.T) {
	out := extract(t, "sql", "-- CREATE PROCEDURE old() ...\nCREATE TABLE t (id INT);\n")
	assert.Empty(t, out.Diagnostics)
}

func TestExtract_SQLBlockCommentIgnored(t *testing.T) {
	out := extract(t, "sql", "/* CREATE PROCEDURE old() */\n"+
		"CREATE FUNCTION f1() RETURNS INT AS $$ SELECT 1 $$ LANGUAGE sql;\n")

	assert.Empty(t, out.Diagnostics)
	assert.Equal(t, "f1", byName(t, out.Symbols, "f1").Name)
}

func TestExtract_SQLCommentedFunctionNotRecovered(t *testing.T) {
	src := "/* legacy:\n" +
		"CREATE FUNCTION ghost() RETURNS INT AS $$ SELECT 1 $$ LANGUAGE sql;\n" +
		"*/\n" +
		"CREATE PROCEDURE p1() AS $$ SELECT 1 $$ LANGUAGE sql;\n" +
		"SELECT 'CREATE FUNCTION quoted() RETURNS INT';\n"
	out := extract(t, "sql", src)

	for _, s := range out.Symbols {
		assert.NotEqual(t, "ghost", s.Name)
		assert.NotEqual(t, "quoted", s.Name)
	}
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, 4, out.Diagnostics[0].Line)
}

func TestSQLCode_BlanksCommentsAndLiterals(t *testing.T) {
	src := "a -- x\n/* b /* c */ d */ 'it''s' $$ e $$ f"
	got := string(sqlCode([]byte(src)))

	assert.Equal(t, len(src), len(got))
	assert.Equal(t, "a     \n                  '     ' $$   $$ f", got)
}

func TestExtract_SQLTablesAndViews(t *testing.T) {
	out := extract(t, "sql", `CREATE TABLE app.users (id INT);
CREATE VIEW active_users AS SELECT id FROM app.users;
`)
	assert.Equal(t, []brief{
		{ports.KindOther, "users", "app.users"},
		{ports.KindView, "active_users", "active_users"},
	}, briefs(out.Symbols))
}

func TestExtract_Python(t *testing.T) {
	out := extract(t, "python", `MAX_RETRIES = 3
timeout = 10

class Client:
    def get(self, url):
        return url

def helper(x):
    return x
`)
	assert.Equal(t, []brief{
		{ports.KindConstant, "MAX_RETRIES", "MAX_RETRIES"},
		{ports.KindVariable, "timeout", "timeout"},
		{ports.KindClass, "Client", "Client"},
		{ports.KindMethod, "get", "Client.get"},
		{ports.KindFunction, "helper", "helper"},
	}, briefs(out.Symbols))

	assert.Equal(t, "get(self, url)", byName(t, out.Symbols, "get").Signature)
	assert.Equal(t, ports.ConfidenceBestEffort, byName(t, out.Symbols, "timeout").Confidence, "variables are partial for python")
	assert.Equal(t, ports.ConfidenceExact, byName(t, out.Symbols, "Client").Confidence)
}

func TestExtract_JavaScript(t *testing.T) {
	out := extract(t, "javascript", `const API_URL = "x";
let count = 0;
const handler = (req) => req;
function main(argv) {}
class Server {
  start(port) {}
}
`)
	assert.Equal(t, []brief{
		{ports.KindConstant, "API_URL", "API_URL"},
		{ports.KindVariable, "count", "count"},
		{ports.KindFunction, "handler", "handler"},
		{ports.KindFunction, "main", "main"},
		{ports.KindClass, "Server", "Server"},
		{ports.KindMethod, "start", "Server.start"},
	}, briefs(out.Symbols))
	assert.Equal(t, "main(argv)", byName(t, out.Symbols, "main").Signature)
}

func TestExtract_TypeScript(t *testing.T) {
	out := extract(t, "typescript", `interface Props { id: number }
type ID = string;
namespace Util {
  export function pad(s: string): string { return s; }
}
`)
	assert.Equal(t, []brief{
		{ports.KindInterface, "Props", "Props"},
		{ports.KindOther, "ID", "ID"},
		{ports.KindModule, "Util", "Util"},
		{ports.KindFunction, "pad", "Util.pad"},
	}, briefs(out.Symbols))
}

func TestExtract_Java(t *testing.T) {
	out := extract(t, "java", `package com.acme;

public class Repo {
    public static final int LIMIT = 10;
    private String name;
    public Repo(String name) { this.name = name; }
    public String find(int id) { return name; }
}
`)
	assert.Equal(t, []brief{
		{ports.KindModule, "com.acme", "com.acme"},
		{ports.KindClass, "Repo", "Repo"},
		{ports.KindConstant, "LIMIT", "Repo.LIMIT"},
		{ports.KindVariable, "name", "Repo.name"},
		{ports.KindMethod, "Repo", "Repo.Repo"},
		{ports.KindMethod, "find", "Repo.find"},
	}, briefs(out.Symbols))
	assert.Equal(t, "find(int id)", byName(t, out.Symbols, "find").Signature)
}

func TestExtract_Rust(t *testing.T) {
	out := extract(t, "rust", `mod net {
    pub struct Conn;
    impl Conn {
        pub fn open() -> Self { Conn }
    }
    pub trait Dial {
        fn dial(&self);
    }
}
const MAX: u32 = 1;
`)
	assert.Equal(t, []brief{
		{ports.KindModule, "net", "net"},
		{ports.KindClass, "Conn", "net.Conn"},
		{ports.KindMethod, "open", "net.Conn.open"},
		{ports.KindInterface, "Dial", "net.Dial"},
		{ports.KindMethod, "dial", "net.Dial.dial"},
		{ports.KindConstant, "MAX", "MAX"},
	}, briefs(out.Symbols))
}

func TestExtract_Cpp(t *testing.T) {
	out := extract(t, "cpp", `namespace geo {
class Point {
public:
  int x() const { return 0; }
};
}
int area(int w, int h) { return w * h; }
int Point::y() { return 1; }
constexpr int LIMIT = 4;
const double PI = 3.14;
int hits = 0;
`)
	assert.Equal(t, []brief{
		{ports.KindModule, "geo", "geo"},
		{ports.KindClass, "Point", "geo.Point"},
		{ports.KindMethod, "x", "geo.Point.x"},
		{ports.KindFunction, "area", "area"},
		{ports.KindMethod, "y", "Point.y"},
		{ports.KindConstant, "LIMIT", "LIMIT"},
		{ports.KindConstant, "PI", "PI"},
		{ports.KindVariable, "hits", "hits"},
	}, briefs(out.Symbols))
	assert.Equal(t, "area(int w, int h)", byName(t, out.Symbols, "area").Signature)
}

func TestExtract_C(t *testing.T) {
	out := extract(t, "c", `#define LIMIT 10
struct node { int v; };
static int counter = 0;
const int MAX_SIZE = 100;
const char *greeting = "hi";
char *const banner = 0;
int sum(int a, int b);
int sum(int a, int b) { return a + b; }
`)
	assert.Equal(t, []brief{
		{ports.KindConstant, "LIMIT", "LIMIT"},
		{ports.KindClass, "node", "node"},
		{ports.KindVariable, "counter", "counter"},
		{ports.KindConstant, "MAX_SIZE", "MAX_SIZE"},
		{ports.KindVariable, "greeting", "greeting"},
		{ports.KindConstant, "banner", "banner"},
		{ports.KindFunction, "sum", "sum"},
	}, briefs(out.Symbols), "prototypes are not symbols")
	assert.Equal(t, ports.ConfidenceBestEffort, byName(t, out.Symbols, "LIMIT").Confidence)
}

func TestExtract_Ruby(t *testing.T) {
	out := extract(t, "ruby", `module Billing
  RATE = 5
  class Invoice
    def total(items)
      items.sum
    end

    def self.build
    end
  end
end
`)
	assert.Equal(t, []brief{
		{ports.KindModule, "Billing", "Billing"},
		{ports.KindConstant, "RATE", "Billing.RATE"},
		{ports.KindClass, "Invoice", "Billing.Invoice"},
		{ports.KindMethod, "total", "Billing.Invoice.total"},
		{ports.KindMethod, "build", "Billing.Invoice.build"},
	}, briefs(out.Symbols))
}

func TestExtract_BashAndHCL(t *testing.T) {
	sh := extract(t, "bash", "NAME=x\ngreet() { echo hi; }\n")
	assert.Equal(t, []brief{
		{ports.KindVariable, "NAME", "NAME"},
		{ports.KindFunction, "greet", "greet"},
	}, briefs(sh.Symbols))

	tf := extract(t, "hcl", "resource \"aws_s3_bucket\" \"logs\" {\n  bucket = \"x\"\n}\n")
	require.Len(t, tf.Symbols, 1)
	assert.Equal(t, "resource.aws_s3_bucket.logs", tf.Symbols[0].Name)
	assert.Equal(t, ports.ConfidenceBestEffort, tf.Symbols[0].Confidence)
}

func TestExtract_DataGrammarHasNoSymbols(t *testing.T) {
	l, ok := testCatalog.Get("json")
	require.True(t, ok)
	assert.Empty(t, l.SupportedKinds())
	out := extract(t, "json", `{"a": 1}`)
	assert.Empty(t, out.Symbols)
}

// =============================================================================
// Parse
// =============================================================================

func TestParse_IncrementalMatchesFull(t *testing.T) {
	l, _ := testCatalog.Get("go")
	before := "package p\n\nfunc A() {}\n"
	after := "package p\n\nfunc AB() {}\n"

	prev, err := l.Parse([]byte(before), nil, nil)
	require.NoError(t, err)
	defer prev.Close()

	edit := &ports.InputEdit{
		StartByte: 17, OldEndByte: 17, NewEndByte: 18,
		StartPoint:  ports.Point{Row: 2, Column: 6},
		OldEndPoint: ports.Point{Row: 2, Column: 6},
		NewEndPoint: ports.Point{Row: 2, Column: 7},
	}
	inc, err := l.Parse([]byte(after), prev, edit)
	require.NoError(t, err)
	defer inc.Close()
	full, err := l.Parse([]byte(after), nil, nil)
	require.NoError(t, err)
	defer full.Close()

	caps := registry(t)
	a, err := l.Extract(inc, caps)
	require.NoError(t, err)
	b, err := l.Extract(full, caps)
	require.NoError(t, err)
	assert.Equal(t, b, a)
	assert.Equal(t, "AB", a.Symbols[1].Name)

	old, err := l.Extract(prev, caps)
	require.NoError(t, err)
	assert.Equal(t, "A", old.Symbols[1].Name, "previous tree is left untouched")
}

func TestParse_SourceIsCopied(t *testing.T) {
	l, _ := testCatalog.Get("go")
	src := []byte("package p\n\nfunc A() {}\n")
	tree, err := l.Parse(src, nil, nil)
	require.NoError(t, err)
	defer tree.Close()
	copy(src, "XXXXXXXXXXXXXXXXXXXXX")

	out, err := l.Extract(tree, registry(t))
	require.NoError(t, err)
	assert.Equal(t, "A", out.Symbols[1].Name)
}

type alienTree struct{}

func (alienTree) HasErrors() bool { return false }
func (alienTree) Close()          {}

func TestExtract_ForeignTree(t *testing.T) {
	l, _ := testCatalog.Get("go")
	_, err := l.Extract(alienTree{}, nil)
	assert.ErrorIs(t, err, ErrForeignTree)
}
