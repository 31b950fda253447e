// Package treesitter implements ports.LanguageSupport on top of tree-sitter
// grammars: one Language per grammar, each paired with a table of extraction
// rules that turn declaration nodes into normalized symbols.
//
// Grammars are compiled in via CGo by default. With -tags lean none are, and
// every grammar is loaded at runtime from a shared library via purego.
package treesitter

import (
	"fmt"
	"sort"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

// builtinVersions records the grammar module version compiled into the
// binary. It must agree with go.mod and with the capability table.
var builtinVersions = map[string]string{
	"go":         "0.25.0",
	"python":     "0.25.0",
	"javascript": "0.25.0",
	"typescript": "0.23.2",
	"tsx":        "0.23.2",
	"java":       "0.23.5",
	"rust":       "0.24.0",
	"c":          "0.24.1",
	"cpp":        "0.23.4",
	"cuda":       "0.21.1",
	"csharp":     "0.23.1",
	"ruby":       "0.23.1",
	"php":        "0.24.2",
	"bash":       "0.25.1",
	"sql":        "0.3.11",
	"kotlin":     "1.1.0",
	"scala":      "0.24.0",
	"lua":        "0.4.1",
	"haskell":    "0.23.1",
	"ocaml":      "0.24.2",
	"zig":        "1.1.2",
	"verilog":    "1.0.3",
	"hcl":        "1.2.0",
	"json":       "0.24.8",
	"yaml":       "0.7.2",
	"toml":       "0.7.0",
	"html":       "0.23.2",
	"css":        "0.25.0",
	"svelte":     "1.0.2",
}

// extensions maps each language to the file extensions it claims. Bare file
// names (Rakefile) are matched exactly.
var extensions = map[string][]string{
	"go":         {".go"},
	"python":     {".py", ".pyw", ".pyi"},
	"javascript": {".js", ".jsx", ".mjs", ".cjs"},
	"typescript": {".ts", ".mts", ".cts"},
	"tsx":        {".tsx"},
	"java":       {".java"},
	"rust":       {".rs"},
	"c":          {".c", ".h"},
	"cpp":        {".cpp", ".hpp", ".cc", ".cxx", ".hxx", ".hh"},
	"cuda":       {".cu", ".cuh"},
	"csharp":     {".cs"},
	"ruby":       {".rb", ".rake", "Rakefile", "Gemfile"},
	"php":        {".php", ".phtml"},
	"bash":       {".sh", ".bash", ".zsh"},
	"sql":        {".sql"},
	"kotlin":     {".kt", ".kts"},
	"scala":      {".scala", ".sc"},
	"lua":        {".lua"},
	"haskell":    {".hs", ".lhs"},
	"ocaml":      {".ml", ".mli"},
	"zig":        {".zig"},
	"verilog":    {".v", ".sv", ".svh"},
	"hcl":        {".tf", ".hcl", ".tfvars"},
	"json":       {".json", ".jsonc"},
	"yaml":       {".yaml", ".yml"},
	"toml":       {".toml"},
	"html":       {".html", ".htm"},
	"css":        {".css", ".scss"},
	"svelte":     {".svelte"},
}

// Catalog holds the languages available to the engine: compiled-in grammars
// plus any loaded from shared libraries.
type Catalog struct {
	mu     sync.RWMutex
	langs  map[string]*Language
	loader *DynamicLoader
}

// NewCatalog creates a catalog with all built-in grammars registered.
func NewCatalog() *Catalog {
	c := &Catalog{langs: make(map[string]*Language)}
	c.registerBuiltinLanguages()
	return c
}

// addLang registers a compiled-in grammar by name.
func (c *Catalog) addLang(name string, grammar *tree_sitter.Language) {
	if grammar == nil {
		return
	}
	c.langs[name] = newLanguage(name, builtinVersions[name], grammar)
}

func newLanguage(name, version string, grammar *tree_sitter.Language) *Language {
	return &Language{
		name:    name,
		version: version,
		exts:    extensions[name],
		grammar: grammar,
		spec:    specFor(name),
	}
}

// SetGrammarPaths enables loading grammars from shared libraries found in
// paths. Project-local paths should come first.
func (c *Catalog) SetGrammarPaths(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loader = NewDynamicLoader(paths)
}

// Loader returns the dynamic grammar loader, or nil if not configured.
func (c *Catalog) Loader() *DynamicLoader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loader
}

// LoadDynamic loads name from a shared library and registers it under
// version, replacing any compiled-in grammar of the same name. The version
// is what capability lookups are keyed on, so it must name the exact build
// of the library.
func (c *Catalog) LoadDynamic(name, version string) (ports.LanguageSupport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loader == nil {
		return nil, fmt.Errorf("grammar %q: no grammar paths configured", name)
	}
	if version == "" {
		return nil, fmt.Errorf("grammar %q: version is required", name)
	}
	grammar, err := c.loader.LoadGrammar(name)
	if err != nil {
		return nil, err
	}
	l := newLanguage(name, version, grammar)
	l.dynamic = true
	c.langs[name] = l
	return l, nil
}

// Get returns the language registered under name.
func (c *Catalog) Get(name string) (ports.LanguageSupport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.langs[name]
	if !ok {
		return nil, false
	}
	return l, true
}

// IsDynamic reports whether name was loaded from a shared library.
func (c *Catalog) IsDynamic(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.langs[name]
	return ok && l.dynamic
}

// Languages returns the sorted names of all registered languages.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.langs))
	for n := range c.langs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered languages.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.langs)
}
