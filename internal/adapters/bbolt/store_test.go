package bbolt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/corey/symdex/internal/domain/symbols"
	"github.com/corey/symdex/internal/ports"
)

// newTestPersister creates a temporary bbolt persister for testing.
func newTestPersister(t *testing.T) (*Persister, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "symbols.db")
	p, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, path
}

// makeBatch creates a realistic batch for fileID.
func makeBatch(fileID string, rev uint64) *ports.SymbolBatch {
	return &ports.SymbolBatch{
		FileID:         fileID,
		Language:       "sql",
		GrammarVersion: "0.3.11",
		ContentHash:    "abc123",
		Revision:       rev,
		Symbols: []ports.Symbol{
			{
				Kind:          ports.KindStoredRoutine,
				Name:          "f1",
				QualifiedPath: []string{"public"},
				Location:      ports.Location{FileID: fileID, StartLine: 1, StartCol: 0, EndLine: 3, EndCol: 12},
				Signature:     "f1()",
				Confidence:    ports.ConfidenceExact,
			},
			{
				Kind:       ports.KindView,
				Name:       "active_users",
				Location:   ports.Location{FileID: fileID, StartLine: 5, EndLine: 5, EndCol: 40},
				Confidence: ports.ConfidenceBestEffort,
			},
		},
		HasParseErrors:       true,
		Diagnostics:          []ports.Diagnostic{{Construct: "CreateProcedure", Note: "use CREATE FUNCTION", Line: 7}},
		ExtractionDurationMs: 3,
	}
}

// =============================================================================
// Save / load / delete
// =============================================================================

func TestPersister_SaveLoad(t *testing.T) {
	p, _ := newTestPersister(t)
	want := makeBatch("db/a.sql", 4)
	require.NoError(t, p.SaveBatch(want))

	got, err := p.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestPersister_SaveReplaces(t *testing.T) {
	p, _ := newTestPersister(t)
	require.NoError(t, p.SaveBatch(makeBatch("a.sql", 1)))

	next := makeBatch("a.sql", 2)
	next.Symbols = next.Symbols[:1]
	require.NoError(t, p.SaveBatch(next))

	got, err := p.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].Revision)
	assert.Len(t, got[0].Symbols, 1)
}

func TestPersister_RejectsInvalidBatch(t *testing.T) {
	p, _ := newTestPersister(t)
	assert.Error(t, p.SaveBatch(nil))
	assert.Error(t, p.SaveBatch(&ports.SymbolBatch{}))
}

func TestPersister_DeleteIsIdempotent(t *testing.T) {
	p, _ := newTestPersister(t)
	require.NoError(t, p.SaveBatch(makeBatch("a.sql", 1)))
	require.NoError(t, p.SaveBatch(makeBatch("b.sql", 1)))

	require.NoError(t, p.DeleteFile("a.sql"))
	require.NoError(t, p.DeleteFile("a.sql"))
	require.NoError(t, p.DeleteFile("never.sql"))

	got, err := p.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b.sql", got[0].FileID)
}

func TestPersister_SurvivesRestart(t *testing.T) {
	p, path := newTestPersister(t)
	original := makeBatch("a.sql", 9)
	require.NoError(t, p.SaveBatch(original))
	require.NoError(t, p.Close())

	_, err := os.Stat(path)
	require.NoError(t, err)

	p2, err := Open(path)
	require.NoError(t, err)
	defer p2.Close()

	got, err := p2.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, original, got[0])
}

func TestPersister_ConcurrentWrites(t *testing.T) {
	p, _ := newTestPersister(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, p.SaveBatch(makeBatch(fmt.Sprintf("f%02d.sql", i), uint64(i))))
		}(i)
	}
	wg.Wait()

	got, err := p.LoadAll()
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

// =============================================================================
// Corruption and format
// =============================================================================

func TestDecodeBatch_Corrupt(t *testing.T) {
	_, err := decodeBatch(nil)
	assert.ErrorContains(t, err, "too short")
	_, err = decodeBatch([]byte{9, 1, 2})
	assert.ErrorContains(t, err, "unknown batch format")
	_, err = decodeBatch([]byte{formatVersion, 0xff, 0x00, 0x13})
	assert.Error(t, err)
}

func TestPersister_CorruptValueFailsLoad(t *testing.T) {
	p, _ := newTestPersister(t)
	require.NoError(t, p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).Put([]byte("bad.sql"), []byte{formatVersion, 1})
	}))
	_, err := p.LoadAll()
	assert.ErrorContains(t, err, "decode batch")
}

func TestOpen_RejectsForeignFormat(t *testing.T) {
	p, path := newTestPersister(t)
	require.NoError(t, p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyFormat, []byte{99})
	}))
	require.NoError(t, p.Close())

	_, err := Open(path)
	assert.ErrorContains(t, err, "unsupported store format")
}

// =============================================================================
// Write-through behind the symbol store
// =============================================================================

func TestPersister_WarmsSymbolStore(t *testing.T) {
	p, path := newTestPersister(t)
	s := symbols.NewStore(p)
	require.NoError(t, s.Upsert(makeBatch("a.sql", 3)))
	require.NoError(t, s.Upsert(makeBatch("b.sql", 5)))
	require.NoError(t, s.Remove("a.sql"))
	require.NoError(t, p.Close())

	p2, err := Open(path)
	require.NoError(t, err)
	defer p2.Close()
	warm := symbols.NewStore(p2)
	n, err := warm.Warm()
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b.sql"}, warm.Files())
	assert.Equal(t, uint64(5), warm.MaxRevision())
	assert.Len(t, warm.FindByName("f1"), 1)
}

// =============================================================================
// Lock contention: the 1s timeout prevents hangs
// =============================================================================

func TestOpen_LockTimeout(t *testing.T) {
	_, path := newTestPersister(t)

	start := time.Now()
	p2, err := Open(path)
	elapsed := time.Since(start)

	require.Error(t, err, "second open should fail with lock timeout")
	assert.Nil(t, p2)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "bbolt open")
	assert.Less(t, elapsed, 3*time.Second, "should not hang")
}
