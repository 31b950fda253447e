// Package ports defines the contracts shared by the extraction engine and its
// adapters. Domain packages depend only on these types and interfaces, never on
// a concrete grammar runtime or storage backend.
package ports

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SymbolKind is the normalized category of an extracted program element.
type SymbolKind string

const (
	KindFunction      SymbolKind = "Function"
	KindMethod        SymbolKind = "Method"
	KindClass         SymbolKind = "Class"
	KindInterface     SymbolKind = "Interface"
	KindConstant      SymbolKind = "Constant"
	KindVariable      SymbolKind = "Variable"
	KindView          SymbolKind = "View"
	KindStoredRoutine SymbolKind = "StoredRoutine"
	KindModule        SymbolKind = "Module"
	KindOther         SymbolKind = "Other"
)

// AllKinds lists every SymbolKind in declaration order.
func AllKinds() []SymbolKind {
	return []SymbolKind{
		KindFunction, KindMethod, KindClass, KindInterface, KindConstant,
		KindVariable, KindView, KindStoredRoutine, KindModule, KindOther,
	}
}

// ParseSymbolKind resolves a kind name case-insensitively ("function",
// "StoredRoutine", "storedroutine").
func ParseSymbolKind(s string) (SymbolKind, error) {
	for _, k := range AllKinds() {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown symbol kind %q", s)
}

// Confidence marks how much a symbol can be trusted.
// BestEffort symbols came from error-recovered subtrees or from a construct the
// capability table does not mark as fully supported.
type Confidence string

const (
	ConfidenceExact      Confidence = "Exact"
	ConfidenceBestEffort Confidence = "BestEffort"
)

// Location is a source span. Lines are 1-based, columns are 0-based byte
// offsets, and the end position is exclusive.
type Location struct {
	FileID    string `json:"-"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Valid reports whether start <= end.
func (l Location) Valid() bool {
	if l.StartLine < 1 || l.StartCol < 0 {
		return false
	}
	if l.StartLine != l.EndLine {
		return l.StartLine < l.EndLine
	}
	return l.StartCol <= l.EndCol
}

// Symbol is a normalized fact about one named program element.
type Symbol struct {
	Kind          SymbolKind `json:"kind"`
	Name          string     `json:"name"`
	QualifiedPath []string   `json:"qualifiedPath"`
	Location
	Signature  string     `json:"signature,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// QualifiedName joins the enclosing scopes and the name with sep.
func (s Symbol) QualifiedName(sep string) string {
	if len(s.QualifiedPath) == 0 {
		return s.Name
	}
	return strings.Join(s.QualifiedPath, sep) + sep + s.Name
}

// Diagnostic explains why a file may under-report symbols.
type Diagnostic struct {
	Construct string `json:"construct"`
	Note      string `json:"note"`
	Line      int    `json:"line,omitempty"`
}

// SymbolBatch is the complete extraction result for one file.
type SymbolBatch struct {
	FileID               string       `json:"fileId"`
	Language             string       `json:"language"`
	GrammarVersion       string       `json:"grammarVersion"`
	ContentHash          string       `json:"contentHash"`
	Revision             uint64       `json:"revision"`
	Symbols              []Symbol     `json:"symbols"`
	HasParseErrors       bool         `json:"hasParseErrors"`
	Diagnostics          []Diagnostic `json:"diagnostics"`
	ExtractionDurationMs int64        `json:"extractionDurationMs"`
}

// UnmarshalJSON restores the per-symbol file ID, which is carried only once at
// the batch level on the wire.
func (b *SymbolBatch) UnmarshalJSON(data []byte) error {
	type wire SymbolBatch
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = SymbolBatch(w)
	for i := range b.Symbols {
		b.Symbols[i].FileID = b.FileID
	}
	return nil
}

// Clone returns a deep copy so callers can never mutate stored state.
func (b *SymbolBatch) Clone() *SymbolBatch {
	if b == nil {
		return nil
	}
	c := *b
	c.Symbols = CloneSymbols(b.Symbols)
	if b.Diagnostics != nil {
		c.Diagnostics = append([]Diagnostic(nil), b.Diagnostics...)
	}
	return &c
}

// CloneSymbols deep-copies a symbol slice.
func CloneSymbols(in []Symbol) []Symbol {
	if in == nil {
		return nil
	}
	out := make([]Symbol, len(in))
	for i, s := range in {
		out[i] = s
		if s.QualifiedPath != nil {
			out[i].QualifiedPath = append([]string(nil), s.QualifiedPath...)
		}
	}
	return out
}

// SourceFile is one unit of input supplied by workspace discovery.
type SourceFile struct {
	FileID   string
	Content  []byte
	Language string
}
