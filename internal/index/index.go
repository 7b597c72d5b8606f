// Package index defines the nearest-neighbour capability behind the vector
// store and provides two exact implementations: an in-process brute-force
// Flat index and a Qdrant-backed index that runs every search in exact mode.
//
// Positions are assigned in insertion order starting at zero and never
// change; the only way to remove vectors is Reset.
package index

import (
	"context"
	"encoding"
	"fmt"

	"github.com/54b3r/docqa-go/internal/rag"
)

// Neighbor is one search result: an index position and its squared L2
// distance to the query.
type Neighbor struct {
	Position int
	Distance float32
}

// Index is an append-only exact nearest-neighbour index over fixed-width
// float32 vectors. Implementations must be safe for concurrent readers;
// callers serialise writers (see store.Store).
type Index interface {
	// Dim returns the vector width every Add and Search must match.
	Dim() int
	// Len returns the number of stored vectors.
	Len() int
	// Add appends vectors in order; the first gets position Len().
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k neighbours by ascending distance, ties broken by
	// lower position. An empty index yields an empty result, not an error.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Reset discards every stored vector.
	Reset(ctx context.Context) error
	// Close releases any resources held by the index.
	Close() error
}

// Snapshotter is implemented by indexes whose contents can be serialised to
// a local artifact.
type Snapshotter interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// checkDim rejects vectors whose width differs from dim.
func checkDim(field string, v []float32, dim int) error {
	if len(v) != dim {
		return &rag.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("dimension %d does not match index dimension %d", len(v), dim),
		}
	}
	return nil
}

// checkK rejects non-positive result counts.
func checkK(k int) error {
	if k <= 0 {
		return &rag.ValidationError{Field: "k", Reason: fmt.Sprintf("must be positive, got %d", k)}
	}
	return nil
}
