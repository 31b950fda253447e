package ports

// Watcher monitors a workspace for file changes so that changed files can be
// re-extracted and removed files forgotten. The adapter (fsnotify) filters out
// VCS and dependency directories before invoking onChange.
type Watcher interface {
	// Watch starts monitoring root recursively. onChange receives the
	// absolute path of each changed file and whether it was removed. It may
	// be invoked from any goroutine.
	Watch(root string, onChange func(path string, removed bool)) error

	// Stop ends monitoring. After Stop returns no further callbacks fire.
	// Safe to call multiple times.
	Stop() error
}
