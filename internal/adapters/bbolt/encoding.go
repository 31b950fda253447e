// Binary encoding for stored symbol batches.
//
// Format v1 (one value per file):
//
//	version: byte (formatVersion)
//	body:    gob-encoded ports.SymbolBatch
//
// Gob keeps values compact without a custom schema; the version byte lets a
// future format be detected before decoding.
package bbolt

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/corey/symdex/internal/ports"
)

const formatVersion byte = 1

// encodeBatch writes the version byte then the gob body.
func encodeBatch(b *ports.SymbolBatch) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(formatVersion)
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeBatch reverses encodeBatch. Corrupt data yields an error, never a
// panic.
func decodeBatch(data []byte) (*ports.SymbolBatch, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("batch too short: %d bytes", len(data))
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("unknown batch format %d", data[0])
	}
	var b ports.SymbolBatch
	if err := gob.NewDecoder(bytes.NewReader(data[1:])).Decode(&b); err != nil {
		return nil, err
	}
	for i := range b.Symbols {
		b.Symbols[i].FileID = b.FileID
	}
	return &b, nil
}
