// Package ledger holds the ordered chunk metadata that runs parallel to the
// vector index: the record at position i describes the vector at position i.
//
// A Ledger is not safe for concurrent use on its own. store.Store owns the
// only mutable instance and guards it with the same lock as the index.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/54b3r/docqa-go/internal/rag"
)

// Ledger is an append-only sequence of chunk records.
type Ledger struct {
	records []rag.ChunkRecord
}

// New returns a ledger holding a copy of records.
func New(records ...rag.ChunkRecord) *Ledger {
	return &Ledger{records: slices.Clone(records)}
}

// Append adds records at the end, in order.
func (l *Ledger) Append(records ...rag.ChunkRecord) {
	l.records = append(l.records, records...)
}

// Get returns the record at pos, or an error wrapping rag.ErrOutOfRange.
func (l *Ledger) Get(pos int) (rag.ChunkRecord, error) {
	if pos < 0 || pos >= len(l.records) {
		return rag.ChunkRecord{}, fmt.Errorf("ledger: position %d with length %d: %w", pos, len(l.records), rag.ErrOutOfRange)
	}
	return l.records[pos], nil
}

// Len returns the number of records.
func (l *Ledger) Len() int { return len(l.records) }

// Records returns a copy of every record in position order.
func (l *Ledger) Records() []rag.ChunkRecord { return slices.Clone(l.records) }

// Truncate keeps only the first n records.
func (l *Ledger) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(l.records) {
		l.records = l.records[:n]
	}
}

// Reset drops every record.
func (l *Ledger) Reset() { l.records = nil }

// MarshalJSON encodes the ledger as a JSON array of records. An empty ledger
// encodes as [] rather than null. Chunk text is written literally: <, > and
// & are not escaped.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	if l.records == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(l.records); err != nil {
		return nil, fmt.Errorf("ledger: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON replaces the ledger contents with a decoded JSON array.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var records []rag.ChunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("ledger: decode: %w", err)
	}
	l.records = records
	return nil
}
