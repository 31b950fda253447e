package app

import (
	"os"
	"path/filepath"
	"strings"
)

// Paths holds the resolved filesystem paths for a workspace's .symdex/
// directory.
type Paths struct {
	Workspace string // absolute workspace root
	Root      string // .symdex/

	Config string // .symdex/config.yaml

	GrammarsDir string // .symdex/grammars/
}

// NewPaths constructs all resolved paths from a workspace root.
func NewPaths(workspace string) *Paths {
	if abs, err := filepath.Abs(workspace); err == nil {
		workspace = abs
	}
	root := filepath.Join(workspace, ".symdex")
	return &Paths{
		Workspace: workspace,
		Root:      root,

		Config: filepath.Join(root, "config.yaml"),

		GrammarsDir: filepath.Join(root, "grammars"),
	}
}

// EnsureDirs creates the .symdex/ tree. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.GrammarsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Rel returns path relative to the workspace in slash form, the shape used
// for file IDs. Paths outside the workspace are returned cleaned and
// unchanged.
func (p *Paths) Rel(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	rel, err := filepath.Rel(p.Workspace, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// Abs resolves a file ID back to an absolute path.
func (p *Paths) Abs(fileID string) string {
	path := filepath.FromSlash(fileID)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Workspace, path)
}
