package ports

// SyntaxTree is a parsed file. Trees are read-only once built; the Document
// Manager owns them and hands extractors borrowed references.
type SyntaxTree interface {
	// HasErrors reports whether the tree contains error or missing nodes.
	HasErrors() bool

	// Close releases the native tree. Callers must not touch the tree after
	// Close returns.
	Close()
}

// Point is a row/column position, both 0-based.
type Point struct {
	Row    uint
	Column uint
}

// InputEdit describes a single text edit applied between two revisions of a
// file. It enables incremental reparsing; results are identical to a full
// reparse of the new content.
type InputEdit struct {
	StartByte   uint
	OldEndByte  uint
	NewEndByte  uint
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// SupportStatus is the governance answer for one (language, grammar version,
// construct) triple.
type SupportStatus string

const (
	Supported          SupportStatus = "supported"
	Unsupported        SupportStatus = "unsupported"
	PartiallySupported SupportStatus = "partial"
	// Unknown is returned for triples absent from the table. It never means
	// Supported.
	Unknown SupportStatus = "unknown"
)

// ConstructFieldAccess governs whether extractors may look nodes up by
// grammar field name. When it is not Supported extractors fall back to
// structural search.
const ConstructFieldAccess = "FieldAccess"

// Support pairs a status with its human-readable note.
type Support struct {
	Status SupportStatus
	Note   string
}

// CapabilityChecker answers capability questions. It is satisfied by the
// capability registry and by wrappers that observe its answers.
type CapabilityChecker interface {
	Supports(language, grammarVersion, construct string) Support
}

// Extraction is the raw output of a Symbol Extractor for one tree, in source
// order.
type Extraction struct {
	Symbols     []Symbol
	Diagnostics []Diagnostic
}

// LanguageSupport pairs a Grammar Adapter with its Symbol Extractor.
// There is one implementation per language, registered by language tag.
type LanguageSupport interface {
	// Name is the language tag, e.g. "go", "php", "sql".
	Name() string

	// GrammarVersion identifies the grammar build for capability lookups.
	GrammarVersion() string

	// Extensions lists the file extensions handled, with leading dots.
	Extensions() []string

	// SupportedKinds is the closed set of kinds Extract may produce.
	SupportedKinds() []SymbolKind

	// Parse builds a syntax tree. Syntax errors are represented inside the
	// tree and are never returned as errors; an error means the grammar
	// itself is unusable. When previous and edit are both non-nil the parse
	// may reuse previous incrementally. previous is never mutated.
	Parse(content []byte, previous SyntaxTree, edit *InputEdit) (SyntaxTree, error)

	// Extract walks tree in source order. It must consult caps before
	// relying on any construct-specific tree shape.
	Extract(tree SyntaxTree, caps CapabilityChecker) (Extraction, error)
}
