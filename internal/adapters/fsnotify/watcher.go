// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It recursively watches a workspace, filters out VCS, dependency and build
// directories, and debounces rapid events per file (editors often trigger
// several writes per save). Each settled path is reported once, as changed if
// it still exists and as removed otherwise.
package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corey/symdex/internal/ports"
)

// DefaultDebounce is used when NewWatcher is given a non-positive interval.
const DefaultDebounce = 50 * time.Millisecond

// Directories to ignore when watching (matches workspace discovery).
var ignoreDirs = map[string]bool{
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

// File names and suffixes to ignore.
var ignoreFiles = map[string]bool{
	".DS_Store": true,
	".swp":      true,
	"~":         true,
	".pyc":      true,
	".o":        true,
	".so":       true,
	".dylib":    true,
}

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw       *fsnotify.Watcher
	root     string
	debounce time.Duration
	done     chan struct{}

	mu      sync.Mutex
	stopped bool
	pending map[string]*time.Timer

	// fire is held while a callback runs so Stop can wait for it.
	fire sync.Mutex
}

var _ ports.Watcher = (*Watcher)(nil)

// NewWatcher creates a new file system watcher.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fw:       fw,
		debounce: debounce,
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Watch starts monitoring root recursively. onChange must not call Stop.
func (w *Watcher) Watch(root string, onChange func(path string, removed bool)) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	// Walk and add all directories
	err = filepath.Walk(absPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if info.IsDir() {
			if shouldIgnoreDir(info.Name()) && path != absPath {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.root = absPath
	go w.loop(onChange)
	return nil
}

func (w *Watcher) loop(onChange func(string, bool)) {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			path := event.Name

			// For Create events, add new directories to the watch list
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !shouldIgnoreDir(info.Name()) {
						w.fw.Add(path)
					}
					continue
				}
			}

			if rel, err := filepath.Rel(w.root, path); err != nil || shouldIgnorePath(rel) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.schedule(path, onChange)
			}

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// Errors are swallowed — fsnotify recovers automatically

		case <-w.done:
			return
		}
	}
}

// schedule (re)arms the per-path timer. The callback fires once the path has
// been quiet for the debounce interval.
func (w *Watcher) schedule(path string, onChange func(string, bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.settle(path, onChange) })
}

func (w *Watcher) settle(path string, onChange func(string, bool)) {
	w.fire.Lock()
	defer w.fire.Unlock()

	w.mu.Lock()
	delete(w.pending, path)
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		onChange(path, true)
	case info.Mode().IsRegular():
		onChange(path, false)
	}
}

// Stop ends monitoring and releases all resources. It waits for a running
// callback to return. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	close(w.done)
	w.mu.Unlock()

	w.fire.Lock()
	defer w.fire.Unlock()
	return w.fw.Close()
}

// shouldIgnoreDir returns true if the directory name should be skipped.
func shouldIgnoreDir(name string) bool {
	return ignoreDirs[name]
}

// shouldIgnorePath returns true if the root-relative path should not trigger
// onChange.
func shouldIgnorePath(path string) bool {
	base := filepath.Base(path)

	if ignoreFiles[base] {
		return true
	}
	for ext := range ignoreFiles {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}

	// Check if any path component is an ignored directory
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if ignoreDirs[part] {
			return true
		}
	}

	return false
}
