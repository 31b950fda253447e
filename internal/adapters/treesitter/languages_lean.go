//go:build lean

package treesitter

// Lean builds compile no grammars in. Every language comes from a shared
// library through the DynamicLoader.
//
// Build with: go build -tags lean ./cmd/symdex/

func (c *Catalog) registerBuiltinLanguages() {}
