package ports

// SymbolPersister is durable write-through storage behind the in-memory
// Symbol Store. Implementations live in internal/adapters (bbolt, sqlite).
//
// Crash safety: SaveBatch must replace the file's prior batch in a single
// transaction. A crash mid-write must not leave a half-written file.
type SymbolPersister interface {
	// SaveBatch stores batch, replacing any prior batch for batch.FileID.
	SaveBatch(batch *SymbolBatch) error

	// DeleteFile removes a file's batch. Idempotent.
	DeleteFile(fileID string) error

	// LoadAll returns every persisted batch. Order is unspecified.
	LoadAll() ([]*SymbolBatch, error)

	// Close releases the underlying database.
	Close() error
}
