// Package capability is the governance layer: a versioned, human-reviewed table
// recording which constructs each grammar version can reliably parse.
//
// The table is loaded once and never mutated. Triples absent from the table
// answer ports.Unknown, so a new grammar version gets no Supported behaviour
// until someone adds an entry for it.
package capability

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/corey/symdex/internal/ports"
)

// TableVersion is the only table schema version this build understands.
const TableVersion = 1

// ErrMalformed wraps every table validation failure.
var ErrMalformed = errors.New("malformed capability table")

// Format is the encoding of a capability table.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

//go:embed capabilities.yaml
var defaultTable []byte

// Construct is one row of a grammar's construct list.
type Construct struct {
	Name   string `yaml:"name" toml:"name"`
	Status string `yaml:"status" toml:"status"`
	Note   string `yaml:"note,omitempty" toml:"note,omitempty"`
}

// Grammar is one (language, grammar version) entry.
type Grammar struct {
	Language   string      `yaml:"language" toml:"language"`
	Version    string      `yaml:"version" toml:"version"`
	Repo       string      `yaml:"repo,omitempty" toml:"repo,omitempty"`
	Extensions []string    `yaml:"extensions" toml:"extensions"`
	Constructs []Construct `yaml:"constructs" toml:"constructs"`
}

type table struct {
	Version  int       `yaml:"version" toml:"version"`
	Grammars []Grammar `yaml:"grammars" toml:"grammars"`
}

type key struct {
	language, version, construct string
}

// Registry is an immutable, validated capability table.
type Registry struct {
	version   int
	grammars  []Grammar
	byLang    map[string][]int // language -> indexes into grammars, table order
	entries   map[key]ports.Support
	extToLang map[string]string
}

// Load parses and validates a table.
func Load(data []byte, format Format) (*Registry, error) {
	var t table
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown keys %v", ErrMalformed, undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported capability table format %q", format)
	}
	return build(t)
}

// LoadFile reads a table from disk, picking the format from the extension.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability table: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Load(data, FormatYAML)
	case ".toml":
		return Load(data, FormatTOML)
	default:
		return nil, fmt.Errorf("capability table %s: unknown extension", path)
	}
}

func build(t table) (*Registry, error) {
	if t.Version != TableVersion {
		return nil, fmt.Errorf("%w: table version %d, want %d", ErrMalformed, t.Version, TableVersion)
	}
	r := &Registry{
		version:   t.Version,
		grammars:  t.Grammars,
		byLang:    make(map[string][]int),
		entries:   make(map[key]ports.Support),
		extToLang: make(map[string]string),
	}
	seen := make(map[[2]string]bool)
	for i, g := range t.Grammars {
		if g.Language == "" || g.Version == "" {
			return nil, fmt.Errorf("%w: grammar #%d needs language and version", ErrMalformed, i+1)
		}
		gk := [2]string{g.Language, g.Version}
		if seen[gk] {
			return nil, fmt.Errorf("%w: duplicate grammar %s@%s", ErrMalformed, g.Language, g.Version)
		}
		seen[gk] = true
		r.byLang[g.Language] = append(r.byLang[g.Language], i)

		for _, ext := range g.Extensions {
			if prev, ok := r.extToLang[ext]; ok && prev != g.Language {
				return nil, fmt.Errorf("%w: extension %s claimed by %s and %s", ErrMalformed, ext, prev, g.Language)
			}
			r.extToLang[ext] = g.Language
		}

		for _, c := range g.Constructs {
			status, err := parseStatus(c.Status)
			if err != nil {
				return nil, fmt.Errorf("%w: %s@%s %s: %v", ErrMalformed, g.Language, g.Version, c.Name, err)
			}
			if c.Name == "" {
				return nil, fmt.Errorf("%w: %s@%s has an unnamed construct", ErrMalformed, g.Language, g.Version)
			}
			if status == ports.PartiallySupported && c.Note == "" {
				return nil, fmt.Errorf("%w: %s@%s %s is partial without a note", ErrMalformed, g.Language, g.Version, c.Name)
			}
			k := key{g.Language, g.Version, c.Name}
			if _, dup := r.entries[k]; dup {
				return nil, fmt.Errorf("%w: duplicate construct %s for %s@%s", ErrMalformed, c.Name, g.Language, g.Version)
			}
			r.entries[k] = ports.Support{Status: status, Note: c.Note}
		}
	}
	return r, nil
}

func parseStatus(s string) (ports.SupportStatus, error) {
	switch ports.SupportStatus(strings.ToLower(s)) {
	case ports.Supported:
		return ports.Supported, nil
	case ports.Unsupported:
		return ports.Unsupported, nil
	case ports.PartiallySupported, "partially_supported":
		return ports.PartiallySupported, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Supports answers the governance question for one triple. Absent triples
// are Unknown.
func (r *Registry) Supports(language, grammarVersion, construct string) ports.Support {
	if s, ok := r.entries[key{language, grammarVersion, construct}]; ok {
		return s
	}
	return ports.Support{Status: ports.Unknown}
}

// Known reports whether the table has an entry for the grammar version.
func (r *Registry) Known(language, grammarVersion string) bool {
	for _, i := range r.byLang[language] {
		if r.grammars[i].Version == grammarVersion {
			return true
		}
	}
	return false
}

// Hints returns the notes of constructs the grammar version supports only
// partially or not at all, in table order. They are shown to users as
// remediation hints when a file fails.
func (r *Registry) Hints(language, grammarVersion string) []string {
	var out []string
	for _, i := range r.byLang[language] {
		g := r.grammars[i]
		if g.Version != grammarVersion {
			continue
		}
		for _, c := range g.Constructs {
			if s := r.entries[key{language, grammarVersion, c.Name}]; s.Status != ports.Supported && s.Note != "" {
				out = append(out, c.Name+": "+s.Note)
			}
		}
	}
	return out
}

// Grammar returns the first table entry for language.
func (r *Registry) Grammar(language string) (Grammar, bool) {
	idx := r.byLang[language]
	if len(idx) == 0 {
		return Grammar{}, false
	}
	return r.grammars[idx[0]], true
}

// Grammars returns all entries in table order.
func (r *Registry) Grammars() []Grammar {
	return append([]Grammar(nil), r.grammars...)
}

// Languages returns the sorted language tags present in the table.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.byLang))
	for l := range r.byLang {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// LanguageForPath infers a language from a file name. Exact base names
// (e.g. "Dockerfile") win over extensions. Returns "" when nothing matches.
func (r *Registry) LanguageForPath(path string) string {
	base := filepath.Base(path)
	if lang, ok := r.extToLang[base]; ok {
		return lang
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return ""
	}
	return r.extToLang[ext]
}

// Version is the table schema version.
func (r *Registry) Version() int { return r.version }

var (
	defaultMu  sync.Mutex
	defaultReg *Registry
	defaultErr error
	loaded     bool
)

// Default returns the process-wide registry built from the embedded table.
// It is loaded on first use and reused afterwards.
func Default() (*Registry, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if !loaded {
		defaultReg, defaultErr = Load(defaultTable, FormatYAML)
		loaded = true
	}
	return defaultReg, defaultErr
}

// ReloadDefault replaces the process-wide registry. It exists for tests and
// for operators pointing at an external table at startup; nothing else
// should call it.
func ReloadDefault(data []byte, format Format) (*Registry, error) {
	r, err := Load(data, format)
	if err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultReg, defaultErr, loaded = r, nil, true
	return r, nil
}

// DefaultTable returns a copy of the embedded table source.
func DefaultTable() []byte {
	return append([]byte(nil), defaultTable...)
}
