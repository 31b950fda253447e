package treesitter

import (
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

// maxContainerDepth bounds how far the walk descends through nodes that are
// not declarations before giving up. It resets at every scope.
const maxContainerDepth = 4

// nameDepth and paramDepth bound the breadth-first searches used to locate
// names and parameter lists inside a declaration.
const (
	nameDepth  = 4
	paramDepth = 3
)

// rule describes how one node kind becomes a symbol.
type rule struct {
	kind      ports.SymbolKind // empty: opens a scope but emits nothing
	construct string           // capability table construct governing this rule

	field string   // grammar field holding the name, used only with FieldAccess
	names []string // node kinds searched breadth-first for the name
	depth int      // search depth for names; nameDepth when zero
	via   string   // descend to the first node of this kind before naming

	params []string // node kinds whose text forms the signature
	sig    func(x *extraction, n *tree_sitter.Node, name string) string

	scope     bool // nested symbols carry this name in their qualified path
	classLike bool // functions declared directly inside become methods
	// body names the child kind holding nested declarations. A node without
	// one scopes its following siblings instead (PHP `namespace App;`).
	body string

	name   func(x *extraction, n *tree_sitter.Node) string
	path   func(x *extraction, n *tree_sitter.Node) []string
	refine func(x *extraction, n *tree_sitter.Node, name string) (ports.SymbolKind, bool)
}

// langSpec is the extraction recipe for one language.
type langSpec struct {
	kinds   []ports.SymbolKind
	rules   map[string]rule
	prepass func(x *extraction)
	// postpass runs after the walk with the tree's root.
	postpass func(x *extraction, root *tree_sitter.Node)
}

type scopeFrame struct {
	name      string
	classLike bool
}

type diagKey struct {
	construct string
	line      int
}

// extraction is the state of one Extract call.
type extraction struct {
	lang    *Language
	src     []byte
	caps    ports.CapabilityChecker
	support map[string]ports.Support
	symbols []ports.Symbol
	diags   []ports.Diagnostic
	seen    map[diagKey]bool
}

func newExtraction(l *Language, src []byte, caps ports.CapabilityChecker) *extraction {
	return &extraction{
		lang:    l,
		src:     src,
		caps:    caps,
		support: make(map[string]ports.Support),
		seen:    make(map[diagKey]bool),
	}
}

// check asks the capability table about construct, once per extraction.
func (x *extraction) check(construct string) ports.Support {
	if construct == "" {
		return ports.Support{Status: ports.Supported}
	}
	if s, ok := x.support[construct]; ok {
		return s
	}
	s := ports.Support{Status: ports.Unknown}
	if x.caps != nil {
		s = x.caps.Supports(x.lang.name, x.lang.version, construct)
	}
	x.support[construct] = s
	return s
}

// fieldAccess reports whether grammar field names can be trusted.
func (x *extraction) fieldAccess() bool {
	return x.check(ports.ConstructFieldAccess).Status == ports.Supported
}

func (x *extraction) diagnose(construct, note string, line int) {
	k := diagKey{construct, line}
	if x.seen[k] {
		return
	}
	x.seen[k] = true
	x.diags = append(x.diags, ports.Diagnostic{Construct: construct, Note: note, Line: line})
}

func (x *extraction) walk(n *tree_sitter.Node, scope []scopeFrame, depth int, recovered bool) {
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || c.IsMissing() {
			continue
		}
		if c.IsError() {
			x.walk(c, scope, depth, true)
			continue
		}
		r, ok := x.lang.spec.rules[c.Kind()]
		if !ok {
			if depth < maxContainerDepth && c.ChildCount() > 0 {
				x.walk(c, scope, depth+1, recovered)
			}
			continue
		}
		if next := x.apply(c, r, scope, recovered); next != nil {
			scope = next
		}
	}
}

// apply emits the symbol for n, if any, and walks into it when the rule opens
// a scope. It returns a non-nil scope when n scopes its following siblings.
func (x *extraction) apply(n *tree_sitter.Node, r rule, scope []scopeFrame, recovered bool) []scopeFrame {
	sup := x.check(r.construct)
	if sup.Status == ports.Unsupported {
		x.diagnose(r.construct, sup.Note, int(n.StartPosition().Row)+1)
		return nil
	}

	name := x.nameOf(n, r)
	if name == "" {
		if r.scope {
			x.walk(n, scope, 0, recovered)
		}
		return nil
	}

	kind := r.kind
	if r.refine != nil {
		k, ok := r.refine(x, n, name)
		if !ok {
			return nil
		}
		kind = k
	}

	if kind != "" {
		path := scopePath(scope)
		if r.path != nil {
			path = append(path, r.path(x, n)...)
		}
		if kind == ports.KindFunction && len(scope) > 0 && scope[len(scope)-1].classLike {
			kind = ports.KindMethod
		}
		conf := ports.ConfidenceExact
		if recovered || n.HasError() || sup.Status != ports.Supported {
			conf = ports.ConfidenceBestEffort
		}
		start, end := n.StartPosition(), n.EndPosition()
		x.symbols = append(x.symbols, ports.Symbol{
			Kind:          kind,
			Name:          name,
			QualifiedPath: path,
			Location: ports.Location{
				StartLine: int(start.Row) + 1,
				StartCol:  int(start.Column),
				EndLine:   int(end.Row) + 1,
				EndCol:    int(end.Column),
			},
			Signature:  x.signature(n, r, name),
			Confidence: conf,
		})
	}

	if !r.scope {
		return nil
	}
	next := append(scope[:len(scope):len(scope)], scopeFrame{name: name, classLike: r.classLike})
	if r.body != "" && childByKind(n, r.body) == nil {
		return next
	}
	x.walk(n, next, 0, recovered)
	return nil
}

func scopePath(scope []scopeFrame) []string {
	path := make([]string, len(scope))
	for i, f := range scope {
		path[i] = f.name
	}
	return path
}

func (x *extraction) nameOf(n *tree_sitter.Node, r rule) string {
	if r.name != nil {
		return cleanName(r.name(x, n))
	}
	target := n
	if r.via != "" {
		if target = findDescendant(n, nameDepth, r.via); target == nil {
			return ""
		}
	}
	if r.field != "" && x.fieldAccess() {
		if c := target.ChildByFieldName(r.field); c != nil {
			return cleanName(x.text(c))
		}
	}
	depth := r.depth
	if depth == 0 {
		depth = nameDepth
	}
	if d := findDescendant(target, depth, r.names...); d != nil {
		return cleanName(x.text(d))
	}
	return ""
}

func (x *extraction) signature(n *tree_sitter.Node, r rule, name string) string {
	if r.sig != nil {
		return r.sig(x, n, name)
	}
	if len(r.params) == 0 {
		return ""
	}
	p := findDescendant(n, paramDepth, r.params...)
	if p == nil {
		return ""
	}
	return name + squash(x.text(p))
}

// text returns the source text for a node.
func (x *extraction) text(n *tree_sitter.Node) string {
	start, end := n.StartByte(), n.EndByte()
	if int(start) >= len(x.src) || int(end) > len(x.src) || start > end {
		return ""
	}
	return string(x.src[start:end])
}

// sortByPosition restores source order after a pass appended symbols out of
// order. Equal starts keep their relative order so outer precedes inner.
func (x *extraction) sortByPosition() {
	sort.SliceStable(x.symbols, func(i, j int) bool {
		a, b := x.symbols[i].Location, x.symbols[j].Location
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartCol < b.StartCol
	})
}

// findDescendant does a breadth-first search below n, at most maxDepth levels
// deep, for the first node whose kind is one of kinds. ERROR subtrees are not
// searched.
func findDescendant(n *tree_sitter.Node, maxDepth int, kinds ...string) *tree_sitter.Node {
	if len(kinds) == 0 {
		return nil
	}
	level := []*tree_sitter.Node{n}
	for d := 0; d < maxDepth && len(level) > 0; d++ {
		var next []*tree_sitter.Node
		for _, p := range level {
			for i := uint(0); i < uint(p.ChildCount()); i++ {
				c := p.Child(i)
				if c == nil || c.IsError() {
					continue
				}
				for _, k := range kinds {
					if c.Kind() == k {
						return c
					}
				}
				next = append(next, c)
			}
		}
		level = next
	}
	return nil
}

// childByKind finds the first direct child with the given kind.
func childByKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// firstNamed returns n's first named child, or nil.
func firstNamed(n *tree_sitter.Node) *tree_sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanName strips quoting used by SQL dialects and HCL labels.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`',
			s[0] == '[' && s[len(s)-1] == ']',
			s[0] == '\'' && s[len(s)-1] == '\'':
			s = s[1 : len(s)-1]
		}
	}
	return s
}
