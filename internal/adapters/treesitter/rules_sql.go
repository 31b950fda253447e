package treesitter

import (
	"bytes"
	"regexp"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/symdex/internal/ports"
)

const (
	cCreateFunction  = "CreateFunction"
	cCreateProcedure = "CreateProcedure"
	cCreateTable     = "CreateTable"
	cCreateView      = "CreateView"
	cCreateSchema    = "CreateSchema"
	cCreateTrigger   = "CreateTrigger"
)

var sqlSpec = &langSpec{
	kinds: kinds(ports.KindStoredRoutine, ports.KindView, ports.KindModule, ports.KindOther),
	rules: map[string]rule{
		"create_function":          {kind: ports.KindStoredRoutine, construct: cCreateFunction, name: sqlObjectName, path: sqlObjectPath, params: []string{"function_arguments"}},
		"create_procedure":         {kind: ports.KindStoredRoutine, construct: cCreateProcedure, name: sqlObjectName, path: sqlObjectPath},
		"create_table":             {kind: ports.KindOther, construct: cCreateTable, name: sqlObjectName, path: sqlObjectPath},
		"create_view":              {kind: ports.KindView, construct: cCreateView, name: sqlObjectName, path: sqlObjectPath},
		"create_materialized_view": {kind: ports.KindView, construct: cCreateView, name: sqlObjectName, path: sqlObjectPath},
		"create_schema":            {kind: ports.KindModule, construct: cCreateSchema, names: []string{"identifier"}, depth: 2},
		"create_trigger":           {kind: ports.KindOther, construct: cCreateTrigger, name: sqlObjectName, path: sqlObjectPath},
	},
	prepass:  sqlUnsupportedRoutines,
	postpass: sqlRecoverFunctions,
}

// objectRef returns the identifiers of a statement's first object_reference:
// [database.][schema.]name.
func objectRef(n *tree_sitter.Node) []*tree_sitter.Node {
	ref := findDescendant(n, 2, "object_reference")
	if ref == nil {
		return nil
	}
	var ids []*tree_sitter.Node
	for i := uint(0); i < uint(ref.NamedChildCount()); i++ {
		if c := ref.NamedChild(i); c.Kind() == "identifier" {
			ids = append(ids, c)
		}
	}
	return ids
}

func sqlObjectName(x *extraction, n *tree_sitter.Node) string {
	ids := objectRef(n)
	if len(ids) == 0 {
		if id := findDescendant(n, 2, "identifier"); id != nil {
			return x.text(id)
		}
		return ""
	}
	return x.text(ids[len(ids)-1])
}

func sqlObjectPath(x *extraction, n *tree_sitter.Node) []string {
	ids := objectRef(n)
	if len(ids) < 2 {
		return nil
	}
	path := make([]string, 0, len(ids)-1)
	for _, id := range ids[:len(ids)-1] {
		path = append(path, cleanName(x.text(id)))
	}
	return path
}

var (
	procedureRe = regexp.MustCompile(`(?i)\bCREATE\s+(?:OR\s+REPLACE\s+)?PROCEDURE\b`)
	functionRe  = regexp.MustCompile(`(?i)\bCREATE\s+(?:OR\s+REPLACE\s+)?FUNCTION\s+((?:[\w"` + "`" + `\[\]]+\.)*[\w"` + "`" + `\[\]]+)`)
)

// sqlUnsupportedRoutines reports every CREATE PROCEDURE when the grammar
// cannot parse it. Such statements come out of the parser as ERROR nodes with
// no usable shape, so they are found in the raw text.
func sqlUnsupportedRoutines(x *extraction) {
	sup := x.check(cCreateProcedure)
	if sup.Status != ports.Unsupported {
		return
	}
	for _, m := range procedureRe.FindAllIndex(sqlCode(x.src), -1) {
		x.diagnose(cCreateProcedure, sup.Note, lineAt(x.src, m[0]))
	}
}

// sqlRecoverFunctions adds CREATE FUNCTION statements that error recovery
// swallowed whole. They are reported best-effort; statements the walk already
// found are left alone.
func sqlRecoverFunctions(x *extraction, root *tree_sitter.Node) {
	if !root.HasError() || x.check(cCreateFunction).Status == ports.Unsupported {
		return
	}
	found := make(map[int]bool)
	for _, s := range x.symbols {
		if s.Kind == ports.KindStoredRoutine {
			found[s.StartLine] = true
		}
	}
	code := sqlCode(x.src)
	added := false
	for _, m := range functionRe.FindAllSubmatchIndex(code, -1) {
		line := lineAt(x.src, m[0])
		if found[line] {
			continue
		}
		parts := splitQualified(string(code[m[2]:m[3]]))
		end := statementEnd(code, m[1])
		x.symbols = append(x.symbols, ports.Symbol{
			Kind:          ports.KindStoredRoutine,
			Name:          parts[len(parts)-1],
			QualifiedPath: parts[:len(parts)-1],
			Location: ports.Location{
				StartLine: line,
				StartCol:  columnAt(x.src, m[0]),
				EndLine:   lineAt(x.src, end),
				EndCol:    columnAt(x.src, end),
			},
			Confidence: ports.ConfidenceBestEffort,
		})
		added = true
	}
	if added {
		x.sortByPosition()
	}
}

func splitQualified(s string) []string {
	raw := bytes.Split([]byte(s), []byte("."))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, cleanName(string(p)))
	}
	return out
}

// statementEnd returns the offset just past the terminating semicolon, or the
// end of input. Dollar-quoted bodies are skipped.
func statementEnd(src []byte, from int) int {
	inDollar := false
	for i := from; i < len(src); i++ {
		switch {
		case src[i] == '$' && i+1 < len(src) && src[i+1] == '$':
			inDollar = !inDollar
			i++
		case src[i] == ';' && !inDollar:
			return i + 1
		}
	}
	return len(src)
}

// sqlCode returns a copy of src with comments and the contents of string
// literals and $$ bodies blanked out. Newlines survive, so offsets, lines and
// columns match the original.
func sqlCode(src []byte) []byte {
	out := append([]byte(nil), src...)
	blank := func(from, to int) {
		for i := from; i < to; i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
	}
	for i := 0; i < len(src); {
		switch {
		case src[i] == '-' && i+1 < len(src) && src[i+1] == '-':
			end := bytes.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			blank(i, i+end)
			i += end
		case src[i] == '/' && i+1 < len(src) && src[i+1] == '*':
			end := blockCommentEnd(src, i)
			blank(i, end)
			i = end
		case src[i] == '\'':
			end := i + 1
			for end < len(src) {
				if src[end] == '\'' {
					if end+1 < len(src) && src[end+1] == '\'' {
						end += 2
						continue
					}
					break
				}
				end++
			}
			blank(i+1, end)
			i = end + 1
		case src[i] == '$' && i+1 < len(src) && src[i+1] == '$':
			end := bytes.Index(src[i+2:], []byte("$$"))
			if end < 0 {
				blank(i+2, len(src))
				return out
			}
			blank(i+2, i+2+end)
			i += end + 4
		default:
			i++
		}
	}
	return out
}

// blockCommentEnd returns the offset just past the comment opened at start.
// Comments nest, as in PostgreSQL.
func blockCommentEnd(src []byte, start int) int {
	depth := 0
	for i := start; i+1 < len(src); i++ {
		switch {
		case src[i] == '/' && src[i+1] == '*':
			depth++
			i++
		case src[i] == '*' && src[i+1] == '/':
			depth--
			i++
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(src)
}

// lineAt is 1-based.
func lineAt(src []byte, off int) int {
	return bytes.Count(src[:off], []byte("\n")) + 1
}

func columnAt(src []byte, off int) int {
	return off - (bytes.LastIndexByte(src[:off], '\n') + 1)
}
