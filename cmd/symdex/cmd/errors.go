package cmd

import (
	"errors"

	"github.com/corey/symdex/internal/adapters/bbolt"
)

// isDBLockError reports whether err is a bbolt lock timeout.
func isDBLockError(err error) bool {
	return errors.Is(err, bbolt.ErrLocked)
}

// diagnoseDBLock returns actionable guidance when the symbol store is held
// by another process, usually a running `symdex watch`.
func diagnoseDBLock(root string) string {
	return "symbol store is locked by another process (is `symdex watch` running in " + root + "?)\n" +
		"  → stop it, or run with --store memory for a throwaway scan\n" +
		"  → find the process:  ps aux | grep 'symdex'"
}
