package treesitter

import (
	"errors"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

// ErrForeignTree is returned when Extract receives a tree produced by another
// adapter.
var ErrForeignTree = errors.New("syntax tree was not produced by this adapter")

// Tree is a tree-sitter syntax tree together with the source it was parsed
// from. Node text is sliced from source, so the two must stay paired.
type Tree struct {
	tree   *tree_sitter.Tree
	source []byte
}

// HasErrors reports whether the tree contains ERROR or MISSING nodes.
func (t *Tree) HasErrors() bool { return t.tree.RootNode().HasError() }

// Close releases the native tree.
func (t *Tree) Close() { t.tree.Close() }

// RootKind returns the kind of the root node. Mostly useful in tests.
func (t *Tree) RootKind() string { return t.tree.RootNode().Kind() }

// Language is one grammar paired with its symbol extraction rules.
// It implements ports.LanguageSupport.
type Language struct {
	name    string
	version string
	exts    []string
	grammar *tree_sitter.Language
	spec    *langSpec
	dynamic bool
}

func (l *Language) Name() string           { return l.name }
func (l *Language) GrammarVersion() string { return l.version }

func (l *Language) Extensions() []string {
	return append([]string(nil), l.exts...)
}

func (l *Language) SupportedKinds() []ports.SymbolKind {
	if l.spec == nil {
		return nil
	}
	return append([]ports.SymbolKind(nil), l.spec.kinds...)
}

// Parse builds a tree for content. Syntax errors become ERROR nodes; an error
// is returned only when the grammar cannot be used at all.
//
// For incremental parses previous is cloned and the clone is edited, so the
// cached tree other readers may be walking is left untouched.
func (l *Language) Parse(content []byte, previous ports.SyntaxTree, edit *ports.InputEdit) (ports.SyntaxTree, error) {
	if l.grammar == nil {
		return nil, fmt.Errorf("%s: no grammar loaded", l.name)
	}
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(l.grammar); err != nil {
		return nil, fmt.Errorf("%s@%s: %w", l.name, l.version, err)
	}

	src := append([]byte(nil), content...)

	var old *tree_sitter.Tree
	if prev, ok := previous.(*Tree); ok && prev != nil && edit != nil {
		old = prev.tree.Clone()
		defer old.Close()
		old.Edit(&tree_sitter.InputEdit{
			StartByte:      edit.StartByte,
			OldEndByte:     edit.OldEndByte,
			NewEndByte:     edit.NewEndByte,
			StartPosition:  point(edit.StartPoint),
			OldEndPosition: point(edit.OldEndPoint),
			NewEndPosition: point(edit.NewEndPoint),
		})
	}

	tree := parser.Parse(src, old)
	if tree == nil {
		return nil, fmt.Errorf("%s@%s: parser returned no tree", l.name, l.version)
	}
	return &Tree{tree: tree, source: src}, nil
}

func point(p ports.Point) tree_sitter.Point {
	return tree_sitter.Point{Row: p.Row, Column: p.Column}
}

// Extract walks tree and returns symbols in source order. The walk runs on a
// private clone, so concurrent extractions of one cached tree are safe.
func (l *Language) Extract(tree ports.SyntaxTree, caps ports.CapabilityChecker) (ports.Extraction, error) {
	t, ok := tree.(*Tree)
	if !ok || t == nil {
		return ports.Extraction{}, ErrForeignTree
	}
	if l.spec == nil || (len(l.spec.rules) == 0 && l.spec.prepass == nil && l.spec.postpass == nil) {
		return ports.Extraction{}, nil
	}

	clone := t.tree.Clone()
	defer clone.Close()

	x := newExtraction(l, t.source, caps)
	if l.spec.prepass != nil {
		l.spec.prepass(x)
	}
	root := clone.RootNode()
	x.walk(root, nil, 0, false)
	if l.spec.postpass != nil {
		l.spec.postpass(x, root)
	}
	return ports.Extraction{Symbols: x.symbols, Diagnostics: x.diags}, nil
}
