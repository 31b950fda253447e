// Package bbolt persists symbol batches in a bbolt database (embedded B+ tree).
// Each file's batch is one value in the "batches" bucket keyed by file ID.
// Writes are transactional, so a crash mid-write cannot leave a half-written
// file or corrupt previously committed data.
package bbolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corey/symdex/internal/ports"
)

// Bucket keys
var (
	bucketBatches = []byte("batches")
	bucketMeta    = []byte("meta")
	keyFormat     = []byte("format")
)

// ErrLocked is returned by Open when another process holds the database.
var ErrLocked = errors.New("symbol store is locked by another process")

// Persister implements ports.SymbolPersister backed by bbolt.
type Persister struct {
	db *bolt.DB
}

var _ ports.SymbolPersister = (*Persister)(nil)

// Open opens (or creates) a bbolt database at path, creating parent
// directories as needed. A database written by an incompatible format is
// rejected.
func Open(path string) (*Persister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bbolt mkdir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("bbolt open %s: %w", path, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	p := &Persister{db: db}
	if err := p.init(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Persister) init() error {
	return p.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBatches); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		v := meta.Get(keyFormat)
		if v == nil {
			return meta.Put(keyFormat, []byte{formatVersion})
		}
		if len(v) != 1 || v[0] != formatVersion {
			return fmt.Errorf("bbolt: unsupported store format %v (want %d)", v, formatVersion)
		}
		return nil
	})
}

// Close closes the underlying bbolt database.
func (p *Persister) Close() error {
	return p.db.Close()
}

// SaveBatch replaces the stored batch for batch.FileID.
func (p *Persister) SaveBatch(batch *ports.SymbolBatch) error {
	if batch == nil || batch.FileID == "" {
		return errors.New("nil batch or empty file id")
	}
	data, err := encodeBatch(batch)
	if err != nil {
		return fmt.Errorf("encode %s: %w", batch.FileID, err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).Put([]byte(batch.FileID), data)
	})
}

// DeleteFile removes a file's batch.
// Idempotent: deleting an unknown file is not an error.
func (p *Persister) DeleteFile(fileID string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).Delete([]byte(fileID))
	})
}

// LoadAll decodes every stored batch in key order.
func (p *Persister) LoadAll() ([]*ports.SymbolBatch, error) {
	var raw [][]byte
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).ForEach(func(_, v []byte) error {
			// Copy bytes out of the transaction (bbolt slices are only valid within tx)
			buf := make([]byte, len(v))
			copy(buf, v)
			raw = append(raw, buf)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]*ports.SymbolBatch, 0, len(raw))
	for i, data := range raw {
		b, err := decodeBatch(data)
		if err != nil {
			return nil, fmt.Errorf("decode batch #%d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
