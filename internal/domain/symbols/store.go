// Package symbols is the queryable Symbol Store.
//
// Each file's symbols are held as one immutable snapshot. Upsert builds the new
// snapshot off-lock and swaps it in under a short write lock, so readers see
// either the old or the new set for a file, never a mix. Writes to the same
// file are serialized by a per-file mutex; writes to different files proceed
// concurrently and never hold up reads.
package symbols

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/corey/symdex/internal/ports"
)

var (
	// ErrStaleBatch is returned when a batch is older than what the store
	// already holds for the file.
	ErrStaleBatch = errors.New("stale symbol batch")
	// ErrInvalidBatch is returned for nil batches or batches without a file ID.
	ErrInvalidBatch = errors.New("invalid symbol batch")
)

// Stats summarizes store contents.
type Stats struct {
	Files   int
	Symbols int
	ByKind  map[ports.SymbolKind]int
}

// Store is the in-memory index, optionally backed by a persister.
type Store struct {
	persister ports.SymbolPersister

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu          sync.RWMutex
	files       map[string]*ports.SymbolBatch  // immutable snapshots
	byName      map[string]map[string]struct{} // name -> file IDs
	tombstones  map[string]uint64              // removed file -> revision at removal
	maxRevision uint64
}

// NewStore creates an empty store. persister may be nil.
func NewStore(persister ports.SymbolPersister) *Store {
	return &Store{
		persister:  persister,
		locks:      make(map[string]*sync.Mutex),
		files:      make(map[string]*ports.SymbolBatch),
		byName:     make(map[string]map[string]struct{}),
		tombstones: make(map[string]uint64),
	}
}

func (s *Store) fileLock(fileID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[fileID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[fileID] = l
	}
	return l
}

// Upsert replaces all symbols for batch.FileID in one step. A batch whose
// revision is lower than the stored one is rejected with ErrStaleBatch, so
// the newest submission wins regardless of completion order. Equal revisions
// replace (a re-push of the same result is idempotent).
//
// When a persister is configured the new snapshot is visible in memory
// before the write-through; a persister failure is returned but does not roll
// the swap back.
func (s *Store) Upsert(batch *ports.SymbolBatch) error {
	if batch == nil || batch.FileID == "" {
		return ErrInvalidBatch
	}
	l := s.fileLock(batch.FileID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	cur, ok := s.files[batch.FileID]
	tomb := s.tombstones[batch.FileID]
	s.mu.RUnlock()
	if ok && batch.Revision < cur.Revision {
		return fmt.Errorf("%w: %s revision %d < stored %d", ErrStaleBatch, batch.FileID, batch.Revision, cur.Revision)
	}
	if !ok && tomb > 0 && batch.Revision <= tomb {
		return fmt.Errorf("%w: %s revision %d predates removal", ErrStaleBatch, batch.FileID, batch.Revision)
	}

	snap := batch.Clone()
	for i := range snap.Symbols {
		snap.Symbols[i].FileID = snap.FileID
	}

	s.mu.Lock()
	if ok {
		s.unindexLocked(cur)
	}
	s.files[snap.FileID] = snap
	delete(s.tombstones, snap.FileID)
	s.indexLocked(snap)
	if snap.Revision > s.maxRevision {
		s.maxRevision = snap.Revision
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.SaveBatch(snap); err != nil {
			return fmt.Errorf("persist %s: %w", snap.FileID, err)
		}
	}
	return nil
}

// Remove drops all symbols for fileID. Batches computed before the removal
// are rejected afterwards. Removing an unknown file is not an error.
func (s *Store) Remove(fileID string) error {
	l := s.fileLock(fileID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	cur, ok := s.files[fileID]
	if ok {
		s.unindexLocked(cur)
		delete(s.files, fileID)
		s.tombstones[fileID] = cur.Revision
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteFile(fileID); err != nil {
			return fmt.Errorf("persist delete %s: %w", fileID, err)
		}
	}
	return nil
}

func (s *Store) indexLocked(b *ports.SymbolBatch) {
	for _, sym := range b.Symbols {
		set, ok := s.byName[sym.Name]
		if !ok {
			set = make(map[string]struct{})
			s.byName[sym.Name] = set
		}
		set[b.FileID] = struct{}{}
	}
}

func (s *Store) unindexLocked(b *ports.SymbolBatch) {
	for _, sym := range b.Symbols {
		if set, ok := s.byName[sym.Name]; ok {
			delete(set, b.FileID)
			if len(set) == 0 {
				delete(s.byName, sym.Name)
			}
		}
	}
}

// Batch returns a copy of the stored batch for fileID.
func (s *Store) Batch(fileID string) (*ports.SymbolBatch, bool) {
	s.mu.RLock()
	b, ok := s.files[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// FindByFile returns the symbols of one file in source order.
func (s *Store) FindByFile(fileID string) []ports.Symbol {
	s.mu.RLock()
	b, ok := s.files[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return ports.CloneSymbols(b.Symbols)
}

// FindByName returns symbols with exactly this name, optionally filtered by
// kind. Results are ordered by file ID, then source order.
func (s *Store) FindByName(name string, kinds ...ports.SymbolKind) []ports.Symbol {
	filter := kindFilter(kinds)

	s.mu.RLock()
	ids := make([]string, 0, len(s.byName[name]))
	for id := range s.byName[name] {
		ids = append(ids, id)
	}
	snaps := make([]*ports.SymbolBatch, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		snaps = append(snaps, s.files[id])
	}
	s.mu.RUnlock()

	var out []ports.Symbol
	for _, b := range snaps {
		for _, sym := range b.Symbols {
			if sym.Name == name && filter(sym.Kind) {
				out = append(out, sym)
			}
		}
	}
	return ports.CloneSymbols(out)
}

// FindAll returns every symbol, optionally filtered by kind, ordered by file
// ID then source order.
func (s *Store) FindAll(kinds ...ports.SymbolKind) []ports.Symbol {
	filter := kindFilter(kinds)
	snaps := s.snapshots()

	var out []ports.Symbol
	for _, b := range snaps {
		for _, sym := range b.Symbols {
			if filter(sym.Kind) {
				out = append(out, sym)
			}
		}
	}
	return ports.CloneSymbols(out)
}

// Files returns the sorted IDs of all stored files.
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats counts stored files and symbols.
func (s *Store) Stats() Stats {
	st := Stats{ByKind: make(map[ports.SymbolKind]int)}
	for _, b := range s.snapshots() {
		st.Files++
		st.Symbols += len(b.Symbols)
		for _, sym := range b.Symbols {
			st.ByKind[sym.Kind]++
		}
	}
	return st
}

// MaxRevision is the highest revision ever stored. Submitters seed their
// revision counters from it after a warm start.
func (s *Store) MaxRevision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxRevision
}

// Warm loads every batch from the persister into memory. It is meant to run
// once at startup, before any Upsert.
func (s *Store) Warm() (int, error) {
	if s.persister == nil {
		return 0, nil
	}
	batches, err := s.persister.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("load persisted symbols: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range batches {
		if b == nil || b.FileID == "" {
			continue
		}
		if cur, ok := s.files[b.FileID]; ok {
			if cur.Revision > b.Revision {
				continue
			}
			s.unindexLocked(cur)
		}
		for i := range b.Symbols {
			b.Symbols[i].FileID = b.FileID
		}
		s.files[b.FileID] = b
		s.indexLocked(b)
		if b.Revision > s.maxRevision {
			s.maxRevision = b.Revision
		}
	}
	return len(s.files), nil
}

func (s *Store) snapshots() []*ports.SymbolBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ports.SymbolBatch, 0, len(s.files))
	for _, b := range s.files {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	return out
}

func kindFilter(kinds []ports.SymbolKind) func(ports.SymbolKind) bool {
	if len(kinds) == 0 {
		return func(ports.SymbolKind) bool { return true }
	}
	set := make(map[ports.SymbolKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(k ports.SymbolKind) bool { return set[k] }
}
