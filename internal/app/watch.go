package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/corey/symdex/internal/logging"
	"github.com/corey/symdex/internal/ports"
)

// ChangeFunc observes each change the watch loop handled. removed reports a
// forgotten file; res is nil when the file was filtered out.
type ChangeFunc func(fileID string, removed bool, res *FileChange)

// FileChange is the outcome of re-extracting one changed file.
type FileChange struct {
	Symbols int
	Err     error
}

// Watch re-extracts changed files and forgets removed ones until ctx is
// done. The watcher is stopped before Watch returns.
func (a *App) Watch(ctx context.Context, w ports.Watcher, observe ChangeFunc) error {
	ctx = logging.WithScanID(ctx, uuid.NewString())
	log := logging.WithComponent("watch")

	if err := w.Watch(a.Paths.Workspace, func(path string, removed bool) {
		a.onFileChanged(ctx, path, removed, observe)
	}); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	log.Info(ctx, "watching", logging.Fields{"root": a.Paths.Workspace})

	<-ctx.Done()
	if err := w.Stop(); err != nil {
		return fmt.Errorf("stop watcher: %w", err)
	}
	log.Info(ctx, "watch stopped", nil)
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// onFileChanged handles one debounced event. A file that can no longer be
// extracted (deleted, now ignored, grown past the size cap) is forgotten.
func (a *App) onFileChanged(ctx context.Context, path string, removed bool, observe ChangeFunc) {
	fileID := a.Paths.Rel(path)
	log := logging.WithComponent("watch")

	forget := func() {
		if _, tracked := a.Store.Batch(fileID); !tracked {
			return
		}
		if err := a.Engine.Forget(fileID); err != nil {
			log.ErrorWithError(ctx, err, "forget failed", logging.Fields{"file": fileID})
			return
		}
		log.Debug(ctx, "file forgotten", logging.Fields{"file": fileID})
		if observe != nil {
			observe(fileID, true, nil)
		}
	}

	if removed {
		forget()
		return
	}

	res, ok, err := a.ExtractPath(ctx, path)
	if err != nil {
		log.Warn(ctx, "cannot read changed file", logging.Fields{"file": fileID, "error": err.Error()})
		return
	}
	if !ok {
		forget()
		return
	}

	change := &FileChange{}
	switch {
	case res.Err != nil:
		change.Err = res.Err
	case res.StoreErr != nil:
		change.Err = res.StoreErr
		change.Symbols = len(res.Batch.Symbols)
	default:
		change.Symbols = len(res.Batch.Symbols)
	}
	log.Debug(ctx, "file re-extracted", logging.Fields{"file": fileID, "symbols": change.Symbols})
	if observe != nil {
		observe(fileID, false, change)
	}
}
