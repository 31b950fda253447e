package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/symdex/internal/config"
)

// byExtension resolves .go, .py and .sql only.
func byExtension(fileID string) string {
	switch filepath.Ext(fileID) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".sql":
		return "sql"
	}
	return ""
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func ids(d *Discovered) []string {
	out := make([]string, len(d.Files))
	for i, f := range d.Files {
		out[i] = f.FileID
	}
	return out
}

func TestDiscover_WalksAndResolves(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":                 "package main",
		"pkg/util.py":             "def f(): pass",
		"db/schema.sql":           "CREATE TABLE t (id int);",
		"README.md":               "# readme",
		"node_modules/x/index.go": "package x",
		".git/config.go":          "package git",
		".symdex/cache.go":        "package cache",
	})

	d, err := Discover(context.Background(), root, config.ScanConfig{}, byExtension)
	require.NoError(t, err)

	assert.Equal(t, []string{"db/schema.sql", "main.go", "pkg/util.py"}, ids(d))
	assert.Equal(t, 1, d.Unknown)
	assert.Equal(t, "go", d.Files[1].Language)
	assert.Equal(t, "package main", string(d.Files[1].Content))
}

func TestDiscover_IncludeExclude(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.go":          "package a",
		"src/gen/a_gen.go":  "package gen",
		"src/b.py":          "x = 1",
		"scripts/run.py":    "x = 2",
		"src/a_test.go":     "package a",
		"migrations/1.sql":  "CREATE TABLE t (id int);",
	})

	opts := config.ScanConfig{
		Include: []string{"src/**"},
		Exclude: []string{"**/gen", "**/*_test.go"},
	}
	d, err := Discover(context.Background(), root, opts, byExtension)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/a.go", "src/b.py"}, ids(d))
	assert.Equal(t, 3, d.Ignored, "a_test.go, run.py, 1.sql")
}

func TestDiscover_Gitignore(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":     "generated/\n*.pb.go\n",
		"a.go":           "package a",
		"a.pb.go":        "package a",
		"generated/x.go": "package generated",
	})

	d, err := Discover(context.Background(), root, config.ScanConfig{RespectGitignore: true}, byExtension)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, ids(d))

	d, err = Discover(context.Background(), root, config.ScanConfig{}, byExtension)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "a.pb.go", "generated/x.go"}, ids(d))
}

func TestDiscover_MaxFileBytes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.go": "package small",
		"big.go":   "package big\n" + strings.Repeat("// padding\n", 200),
	})

	d, err := Discover(context.Background(), root, config.ScanConfig{MaxFileBytes: 100}, byExtension)
	require.NoError(t, err)
	assert.Equal(t, []string{"small.go"}, ids(d))
	assert.Equal(t, 1, d.TooLarge)
}

func TestDiscover_InvalidGlob(t *testing.T) {
	_, err := Discover(context.Background(), t.TempDir(), config.ScanConfig{Include: []string{"[unterminated"}}, byExtension)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid glob")
}

func TestDiscover_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, root, config.ScanConfig{}, byExtension)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadSource(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":       "out/\n",
		"a.go":             "package a",
		"notes.txt":        "hello",
		"out/b.go":         "package out",
		"vendor/v/v.go":    "package v",
		"src/deep/keep.go": "package keep",
	})
	opts := config.ScanConfig{RespectGitignore: true}

	src, ok, err := ReadSource(root, filepath.Join(root, "a.go"), opts, byExtension)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.go", src.FileID)
	assert.Equal(t, "go", src.Language)

	src, ok, err = ReadSource(root, filepath.Join(root, "src", "deep", "keep.go"), opts, byExtension)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "src/deep/keep.go", src.FileID)

	for _, skipped := range []string{"notes.txt", "out/b.go", "vendor/v/v.go"} {
		_, ok, err = ReadSource(root, filepath.Join(root, filepath.FromSlash(skipped)), opts, byExtension)
		require.NoError(t, err, skipped)
		assert.False(t, ok, skipped)
	}

	_, _, err = ReadSource(root, filepath.Join(root, "missing.go"), opts, byExtension)
	assert.Error(t, err)
}
