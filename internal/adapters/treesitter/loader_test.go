package treesitter

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// =============================================================================
// Symbol and file naming
// =============================================================================

func TestCSymbolName(t *testing.T) {
	tests := []struct {
		lang     string
		expected string
	}{
		{"python", "tree_sitter_python"},
		{"go", "tree_sitter_go"},
		{"tsx", "tree_sitter_tsx"},
		{"csharp", "tree_sitter_c_sharp"},
		{"ocaml", "tree_sitter_ocaml"},
		{"some-lang", "tree_sitter_some_lang"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.expected, CSymbolName(tt.lang))
		})
	}
}

func TestSOBaseName(t *testing.T) {
	assert.Equal(t, "python", SOBaseName("python"))
	assert.Equal(t, "tsx", SOBaseName("tsx"))
	assert.Equal(t, "c_sharp", SOBaseName("csharp"))
}

func TestLibExtension(t *testing.T) {
	if runtime.GOOS == "darwin" {
		assert.Equal(t, ".dylib", LibExtension())
	} else {
		assert.Equal(t, ".so", LibExtension())
	}
}

func TestDefaultGrammarPaths(t *testing.T) {
	paths := DefaultGrammarPaths("/project/root")
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join("/project/root", ".symdex", "grammars"), paths[0])

	if home, err := os.UserHomeDir(); err == nil {
		require.Len(t, paths, 2)
		assert.Equal(t, filepath.Join(home, ".symdex", "grammars"), paths[1])
		assert.Equal(t, []string{paths[1]}, DefaultGrammarPaths(""))
	}
}

func TestPlatformString(t *testing.T) {
	assert.Equal(t, runtime.GOOS+"-"+runtime.GOARCH, PlatformString())
}

// =============================================================================
// Search paths
// =============================================================================

func TestDynamicLoader_NotFound(t *testing.T) {
	dl := NewDynamicLoader([]string{"/nonexistent/path"})
	_, err := dl.LoadGrammar("python")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in search paths")
	assert.Equal(t, "", dl.GrammarPath("python"))
}

func TestDynamicLoader_FirstPathWins(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	ext := LibExtension()
	touch(t, filepath.Join(dir1, "python"+ext))
	touch(t, filepath.Join(dir2, "python"+ext))
	touch(t, filepath.Join(dir2, "lua"+ext))

	dl := NewDynamicLoader([]string{dir1, dir2})
	assert.Equal(t, filepath.Join(dir1, "python"+ext), dl.GrammarPath("python"))
	assert.Equal(t, filepath.Join(dir2, "lua"+ext), dl.GrammarPath("lua"))
	assert.Equal(t, []string{"python", "lua"}, dl.InstalledGrammars(), "deduplicated, path order")
	assert.Equal(t, []string{dir1, dir2}, dl.SearchPaths())
}

func TestDynamicLoader_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "README.md"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"+LibExtension()), 0o755))

	assert.Empty(t, NewDynamicLoader([]string{dir}).InstalledGrammars())
}

func TestDynamicLoader_CorruptLibrary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python"+LibExtension()), []byte("not a library"), 0o644))

	_, err := NewDynamicLoader([]string{dir}).LoadGrammar("python")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dlopen")
}

func TestDynamicLoader_Close(t *testing.T) {
	dl := NewDynamicLoader([]string{"/tmp"})
	dl.Close()
	assert.Empty(t, dl.loaded)
	assert.Nil(t, dl.handles)
}

// =============================================================================
// Catalog integration
// =============================================================================

func TestCatalog_SetGrammarPaths(t *testing.T) {
	c := NewCatalog()
	assert.Nil(t, c.Loader())

	_, err := c.LoadDynamic("brainfuck", "1.0.0")
	assert.ErrorContains(t, err, "no grammar paths configured")

	c.SetGrammarPaths([]string{"/tmp/grammars"})
	require.NotNil(t, c.Loader())
	assert.Equal(t, []string{"/tmp/grammars"}, c.Loader().SearchPaths())

	_, err = c.LoadDynamic("brainfuck", "")
	assert.ErrorContains(t, err, "version is required")
	_, err = c.LoadDynamic("brainfuck", "1.0.0")
	assert.ErrorContains(t, err, "not found")
	_, ok := c.Get("brainfuck")
	assert.False(t, ok, "failed loads register nothing")
	assert.False(t, c.IsDynamic("brainfuck"))
}
