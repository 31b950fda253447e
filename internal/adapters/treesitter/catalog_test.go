//go:build !lean

package treesitter

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/symdex/internal/ports"
)

func TestCatalog_Builtins(t *testing.T) {
	c := NewCatalog()
	assert.Equal(t, len(builtinVersions), c.Len())
	assert.True(t, sort.StringsAreSorted(c.Languages()))

	l, ok := c.Get("go")
	require.True(t, ok)
	assert.Equal(t, "go", l.Name())
	assert.Equal(t, "0.25.0", l.GrammarVersion())
	assert.Equal(t, []string{".go"}, l.Extensions())

	_, ok = c.Get("klingon")
	assert.False(t, ok)
}

// Every compiled-in grammar must be described by the capability table at the
// exact version compiled in, and every construct a rule consults must have an
// answer there. Otherwise the grammar silently degrades to best-effort.
func TestCatalog_AgreesWithCapabilityTable(t *testing.T) {
	reg := registry(t)
	c := NewCatalog()

	for _, name := range c.Languages() {
		t.Run(name, func(t *testing.T) {
			l, _ := c.Get(name)
			require.True(t, reg.Known(name, l.GrammarVersion()), "no table entry for %s@%s", name, l.GrammarVersion())

			g, ok := reg.Grammar(name)
			require.True(t, ok)
			assert.ElementsMatch(t, g.Extensions, l.Extensions())

			spec := specFor(name)
			if spec == nil {
				return
			}
			for kind, r := range spec.rules {
				if r.construct == "" {
					continue
				}
				s := reg.Supports(name, l.GrammarVersion(), r.construct)
				assert.NotEqual(t, ports.Unknown, s.Status, "%s rule %s uses %s", name, kind, r.construct)
			}
		})
	}
}

func TestCatalog_SupportedKindsCoverRules(t *testing.T) {
	for _, name := range NewCatalog().Languages() {
		spec := specFor(name)
		if spec == nil {
			continue
		}
		declared := make(map[ports.SymbolKind]bool)
		for _, k := range spec.kinds {
			declared[k] = true
		}
		for kind, r := range spec.rules {
			if r.kind != "" && r.refine == nil {
				assert.True(t, declared[r.kind], "%s rule %s emits undeclared %s", name, kind, r.kind)
			}
		}
	}
}
