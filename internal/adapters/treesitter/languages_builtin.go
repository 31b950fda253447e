//go:build !lean

package treesitter

// This file registers the compiled-in grammars. It is excluded when building
// with -tags lean, which produces a binary that loads every grammar from a
// shared library instead.

import (
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/alexaandru/go-sitter-forest/sql"

	ts_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	ts_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	ts_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	ts_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	ts_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	ts_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	ts_haskell "github.com/tree-sitter/tree-sitter-haskell/bindings/go"
	ts_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	ts_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_json "github.com/tree-sitter/tree-sitter-json/bindings/go"
	ts_ocaml "github.com/tree-sitter/tree-sitter-ocaml/bindings/go"
	ts_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	ts_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ts_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	ts_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	ts_scala "github.com/tree-sitter/tree-sitter-scala/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
	ts_verilog "github.com/tree-sitter/tree-sitter-verilog/bindings/go"

	ts_cuda "github.com/tree-sitter-grammars/tree-sitter-cuda/bindings/go"
	ts_hcl "github.com/tree-sitter-grammars/tree-sitter-hcl/bindings/go"
	ts_kotlin "github.com/tree-sitter-grammars/tree-sitter-kotlin/bindings/go"
	ts_lua "github.com/tree-sitter-grammars/tree-sitter-lua/bindings/go"
	ts_svelte "github.com/tree-sitter-grammars/tree-sitter-svelte/bindings/go"
	ts_toml "github.com/tree-sitter-grammars/tree-sitter-toml/bindings/go"
	ts_yaml "github.com/tree-sitter-grammars/tree-sitter-yaml/bindings/go"
	ts_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
)

func langPtr(p unsafe.Pointer) *tree_sitter.Language {
	return tree_sitter.NewLanguage(p)
}

func (c *Catalog) registerBuiltinLanguages() {
	// Languages with symbol rules
	c.addLang("go", langPtr(ts_go.Language()))
	c.addLang("python", langPtr(ts_python.Language()))
	c.addLang("javascript", langPtr(ts_javascript.Language()))
	c.addLang("typescript", langPtr(ts_typescript.LanguageTypescript()))
	c.addLang("tsx", langPtr(ts_typescript.LanguageTSX()))
	c.addLang("java", langPtr(ts_java.Language()))
	c.addLang("rust", langPtr(ts_rust.Language()))
	c.addLang("c", langPtr(ts_c.Language()))
	c.addLang("cpp", langPtr(ts_cpp.Language()))
	c.addLang("cuda", langPtr(ts_cuda.Language()))
	c.addLang("csharp", langPtr(ts_csharp.Language()))
	c.addLang("ruby", langPtr(ts_ruby.Language()))
	c.addLang("php", langPtr(ts_php.LanguagePHP()))
	c.addLang("bash", langPtr(ts_bash.Language()))
	c.addLang("sql", langPtr(sql.GetLanguage()))
	c.addLang("kotlin", langPtr(ts_kotlin.Language()))
	c.addLang("scala", langPtr(ts_scala.Language()))
	c.addLang("lua", langPtr(ts_lua.Language()))
	c.addLang("haskell", langPtr(ts_haskell.Language()))
	c.addLang("ocaml", langPtr(ts_ocaml.LanguageOCaml()))
	c.addLang("zig", langPtr(ts_zig.Language()))
	c.addLang("verilog", langPtr(ts_verilog.Language()))
	c.addLang("hcl", langPtr(ts_hcl.Language()))

	// Parse only; no symbols
	c.addLang("json", langPtr(ts_json.Language()))
	c.addLang("yaml", langPtr(ts_yaml.Language()))
	c.addLang("toml", langPtr(ts_toml.Language()))
	c.addLang("html", langPtr(ts_html.Language()))
	c.addLang("css", langPtr(ts_css.Language()))
	c.addLang("svelte", langPtr(ts_svelte.Language()))
}
