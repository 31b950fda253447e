package symbols

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/symdex/internal/ports"
)

func batch(fileID string, rev uint64, names ...string) *ports.SymbolBatch {
	b := &ports.SymbolBatch{FileID: fileID, Language: "go", Revision: rev, ContentHash: fmt.Sprintf("h%d", rev)}
	for i, n := range names {
		b.Symbols = append(b.Symbols, ports.Symbol{
			Kind:       ports.KindFunction,
			Name:       n,
			Location:   ports.Location{StartLine: i + 1, EndLine: i + 1, EndCol: 5},
			Confidence: ports.ConfidenceExact,
		})
	}
	return b
}

// memPersister is an in-memory ports.SymbolPersister.
type memPersister struct {
	mu      sync.Mutex
	batches map[string]*ports.SymbolBatch
	failErr error
}

func newMemPersister() *memPersister {
	return &memPersister{batches: make(map[string]*ports.SymbolBatch)}
}

func (p *memPersister) SaveBatch(b *ports.SymbolBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.batches[b.FileID] = b.Clone()
	return nil
}

func (p *memPersister) DeleteFile(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.batches, id)
	return nil
}

func (p *memPersister) LoadAll() ([]*ports.SymbolBatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*ports.SymbolBatch
	for _, b := range p.batches {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (p *memPersister) Close() error { return nil }

// =============================================================================
// Upsert: total replace per file
// =============================================================================

func TestUpsert_ReplacesWholeFile(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Upsert(batch("a.go", 1, "Foo", "Bar")))
	require.NoError(t, s.Upsert(batch("a.go", 2, "Baz")))

	syms := s.FindByFile("a.go")
	require.Len(t, syms, 1)
	assert.Equal(t, "Baz", syms[0].Name)
	assert.Equal(t, "a.go", syms[0].FileID)
	assert.Empty(t, s.FindByName("Foo"), "name index drops replaced symbols")
}

func TestUpsert_Invalid(t *testing.T) {
	s := NewStore(nil)
	assert.ErrorIs(t, s.Upsert(nil), ErrInvalidBatch)
	assert.ErrorIs(t, s.Upsert(&ports.SymbolBatch{}), ErrInvalidBatch)
}

func TestUpsert_CallerMutationDoesNotLeak(t *testing.T) {
	s := NewStore(nil)
	b := batch("a.go", 1, "Foo")
	require.NoError(t, s.Upsert(b))
	b.Symbols[0].Name = "Mutated"

	got := s.FindByFile("a.go")
	got[0].Name = "AlsoMutated"
	assert.Equal(t, "Foo", s.FindByFile("a.go")[0].Name)
}

func TestUpsert_OutOfOrderNewerWins(t *testing.T) {
	s := NewStore(nil)
	newer := batch("a.go", 2, "FromH2")
	older := batch("a.go", 1, "FromH1")

	require.NoError(t, s.Upsert(newer))
	err := s.Upsert(older)
	assert.ErrorIs(t, err, ErrStaleBatch)

	syms := s.FindByFile("a.go")
	require.Len(t, syms, 1)
	assert.Equal(t, "FromH2", syms[0].Name)

	require.NoError(t, s.Upsert(batch("a.go", 2, "FromH2Again")), "equal revision re-push is accepted")
}

func TestUpsert_ConcurrentSameFileKeepsHighestRevision(t *testing.T) {
	s := NewStore(nil)
	const n = 50
	revs := rand.Perm(n)

	var wg sync.WaitGroup
	for _, r := range revs {
		wg.Add(1)
		go func(rev uint64) {
			defer wg.Done()
			err := s.Upsert(batch("a.go", rev, fmt.Sprintf("r%d", rev)))
			if err != nil {
				assert.ErrorIs(t, err, ErrStaleBatch)
			}
		}(uint64(r + 1))
	}
	wg.Wait()

	b, ok := s.Batch("a.go")
	require.True(t, ok)
	assert.Equal(t, uint64(n), b.Revision)
	assert.Equal(t, fmt.Sprintf("r%d", n), b.Symbols[0].Name)
}

func TestUpsert_ReadersNeverSeeMixedFile(t *testing.T) {
	s := NewStore(nil)
	names := func(rev int) []string {
		out := make([]string, 20)
		for i := range out {
			out[i] = fmt.Sprintf("v%d_%d", rev, i)
		}
		return out
	}
	require.NoError(t, s.Upsert(batch("a.go", 0, names(0)...)))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for rev := 1; rev <= 200; rev++ {
			_ = s.Upsert(batch("a.go", uint64(rev), names(rev)...))
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		syms := s.FindByFile("a.go")
		require.Len(t, syms, 20)
		var prefix string
		for _, sym := range syms {
			var rev, i int
			_, err := fmt.Sscanf(sym.Name, "v%d_%d", &rev, &i)
			require.NoError(t, err)
			p := fmt.Sprintf("v%d", rev)
			if prefix == "" {
				prefix = p
			}
			require.Equal(t, prefix, p, "symbols from two revisions visible at once")
		}
	}
}

// =============================================================================
// Queries
// =============================================================================

func TestFindByName_KindFilterAndOrder(t *testing.T) {
	s := NewStore(nil)
	b1 := batch("b.go", 1, "Run")
	b2 := batch("a.go", 1, "Run", "Other")
	b2.Symbols[0].Kind = ports.KindMethod
	require.NoError(t, s.Upsert(b1))
	require.NoError(t, s.Upsert(b2))

	all := s.FindByName("Run")
	require.Len(t, all, 2)
	assert.Equal(t, "a.go", all[0].FileID)
	assert.Equal(t, "b.go", all[1].FileID)

	methods := s.FindByName("Run", ports.KindMethod)
	require.Len(t, methods, 1)
	assert.Equal(t, "a.go", methods[0].FileID)

	assert.Empty(t, s.FindByName("Missing"))
}

func TestFindAll(t *testing.T) {
	s := NewStore(nil)
	b := batch("a.go", 1, "A", "B")
	b.Symbols[1].Kind = ports.KindConstant
	require.NoError(t, s.Upsert(b))
	require.NoError(t, s.Upsert(batch("b.go", 1, "C")))

	assert.Len(t, s.FindAll(), 3)
	consts := s.FindAll(ports.KindConstant)
	require.Len(t, consts, 1)
	assert.Equal(t, "B", consts[0].Name)
	assert.Equal(t, []string{"a.go", "b.go"}, s.Files())

	st := s.Stats()
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, 3, st.Symbols)
	assert.Equal(t, 2, st.ByKind[ports.KindFunction])
}

func TestRemove(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Upsert(batch("a.go", 5, "A")))
	require.NoError(t, s.Remove("a.go"))
	require.NoError(t, s.Remove("never.go"))

	assert.Empty(t, s.FindByFile("a.go"))
	assert.Empty(t, s.FindByName("A"))

	assert.ErrorIs(t, s.Upsert(batch("a.go", 4, "Late")), ErrStaleBatch, "in-flight batch must not resurrect a removed file")
	require.NoError(t, s.Upsert(batch("a.go", 6, "Fresh")))
	assert.Len(t, s.FindByFile("a.go"), 1)
}

// =============================================================================
// Persistence write-through and warm start
// =============================================================================

func TestPersister_WriteThroughAndWarm(t *testing.T) {
	p := newMemPersister()
	s := NewStore(p)
	require.NoError(t, s.Upsert(batch("a.go", 3, "A")))
	require.NoError(t, s.Upsert(batch("b.go", 7, "B")))
	require.NoError(t, s.Remove("b.go"))

	fresh := NewStore(p)
	n, err := fresh.Warm()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	syms := fresh.FindByFile("a.go")
	require.Len(t, syms, 1)
	assert.Equal(t, "a.go", syms[0].FileID)
	assert.Equal(t, uint64(3), fresh.MaxRevision())
}

func TestPersister_FailureKeepsMemory(t *testing.T) {
	p := newMemPersister()
	p.failErr = errors.New("disk full")
	s := NewStore(p)

	err := s.Upsert(batch("a.go", 1, "A"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, s.FindByFile("a.go"), 1, "in-memory swap is not rolled back")
}

func TestWarm_NoPersister(t *testing.T) {
	n, err := NewStore(nil).Warm()
	require.NoError(t, err)
	assert.Zero(t, n)
}
