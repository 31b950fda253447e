package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/corey/symdex/internal/config"
	"github.com/corey/symdex/internal/logging"
	"github.com/corey/symdex/internal/ports"
)

// skipDirs lists directories never descended into (matches the fsnotify
// watcher).
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".venv":        true,
	"__pycache__":  true,
	"vendor":       true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
	".symdex":      true,
	".next":        true,
	"target":       true,
}

// LanguageFunc names the language a file would be extracted with, or ""
// when nothing can handle it.
type LanguageFunc func(fileID string) string

// Discovered is the outcome of a workspace walk.
type Discovered struct {
	Files    []ports.SourceFile
	Ignored  int // excluded by globs or .gitignore
	TooLarge int
	Unknown  int // no language could handle the file
}

// Discover walks root and reads every file a language can handle, honoring
// the include/exclude globs, .gitignore and the size cap. File IDs are
// root-relative slash paths, sorted.
func Discover(ctx context.Context, root string, opts config.ScanConfig, languageFor LanguageFunc) (*Discovered, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	m, err := newMatcher(absRoot, opts)
	if err != nil {
		return nil, err
	}

	out := &Discovered{}
	type candidate struct {
		path, id, lang string
	}
	var found []candidate

	err = filepath.WalkDir(absRoot, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if file == absRoot {
			return nil
		}
		rel, _ := filepath.Rel(absRoot, file)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || m.ignoredDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if m.ignored(rel) {
			out.Ignored++
			return nil
		}
		lang := languageFor(rel)
		if lang == "" {
			out.Unknown++
			return nil
		}
		if opts.MaxFileBytes > 0 {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > opts.MaxFileBytes {
				out.TooLarge++
				return nil
			}
		}
		found = append(found, candidate{path: file, id: rel, lang: lang})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].id < found[j].id })
	out.Files = make([]ports.SourceFile, 0, len(found))
	for _, c := range found {
		content, err := os.ReadFile(c.path)
		if err != nil {
			logging.Warn(ctx, "skipping unreadable file", logging.Fields{"file": c.id, "error": err.Error()})
			continue
		}
		out.Files = append(out.Files, ports.SourceFile{FileID: c.id, Content: content, Language: c.lang})
	}
	return out, nil
}

// ReadSource loads one file for extraction, applying the same filters as
// Discover. ok is false when the file should not be extracted.
func ReadSource(root, file string, opts config.ScanConfig, languageFor LanguageFunc) (src ports.SourceFile, ok bool, err error) {
	p := NewPaths(root)
	rel := p.Rel(file)
	m, err := newMatcher(p.Workspace, opts)
	if err != nil {
		return src, false, err
	}
	if m.ignored(rel) || m.underIgnoredDir(rel) {
		return src, false, nil
	}
	lang := languageFor(rel)
	if lang == "" {
		return src, false, nil
	}
	info, err := os.Stat(p.Abs(rel))
	if err != nil {
		return src, false, err
	}
	if !info.Mode().IsRegular() || opts.MaxFileBytes > 0 && info.Size() > opts.MaxFileBytes {
		return src, false, nil
	}
	content, err := os.ReadFile(p.Abs(rel))
	if err != nil {
		return src, false, err
	}
	return ports.SourceFile{FileID: rel, Content: content, Language: lang}, true, nil
}

type matcher struct {
	include   []string
	exclude   []string
	gitignore *ignore.GitIgnore
}

func newMatcher(root string, opts config.ScanConfig) (*matcher, error) {
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob %q", p)
		}
	}
	m := &matcher{include: opts.Include, exclude: opts.Exclude}
	if opts.RespectGitignore {
		gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
		switch {
		case err == nil:
			m.gitignore = gi
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read .gitignore: %w", err)
		}
	}
	return m, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (m *matcher) ignoredDir(rel string) bool {
	if matchAny(m.exclude, rel) || matchAny(m.exclude, rel+"/") {
		return true
	}
	return m.gitignore != nil && m.gitignore.MatchesPath(rel+"/")
}

func (m *matcher) ignored(rel string) bool {
	if len(m.include) > 0 && !matchAny(m.include, rel) {
		return true
	}
	if matchAny(m.exclude, rel) {
		return true
	}
	return m.gitignore != nil && m.gitignore.MatchesPath(rel)
}

// underIgnoredDir reports whether any parent of rel would have been pruned
// by a walk.
func (m *matcher) underIgnoredDir(rel string) bool {
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if skipDirs[path.Base(dir)] || m.ignoredDir(dir) {
			return true
		}
	}
	return false
}
