// Package store owns the vector index and the metadata ledger as a single
// object with an explicit lifecycle: Open loads the last snapshot, Append
// and Reset mutate both halves under one lock, Search reads both halves
// under one lock, and Close writes the snapshot back.
//
// Invariant: after every successful call, the index and the ledger hold the
// same number of entries and position i in one describes position i in the
// other.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/54b3r/docqa-go/internal/index"
	"github.com/54b3r/docqa-go/internal/ledger"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/snapshot"
)

// Config holds the dependencies of a Store.
type Config struct {
	// Index is the nearest-neighbour backend. Required.
	Index index.Index
	// Paths locates the snapshot artifacts. A zero value disables persistence.
	Paths snapshot.Paths
	// Policy resolves snapshot length mismatches on Open. Defaults to truncate.
	Policy snapshot.Policy
	// Logger receives store events. If nil, [logging.New] is used.
	Logger *slog.Logger
}

// Store is the owned pairing of an index and its ledger.
// It is safe for concurrent use: searches run in parallel with each other
// but never with an append, reset, or load.
type Store struct {
	// mu serialises writers and excludes readers during writes.
	mu     sync.RWMutex
	idx    index.Index
	led    *ledger.Ledger
	paths  snapshot.Paths
	policy snapshot.Policy
	log    *slog.Logger
	closed bool
	// stale is set when the on-disk metadata no longer describes a prefix
	// of the in-memory ledger: after a reset, or after a load that had to
	// repair a mismatch.
	stale atomic.Bool
}

// Open constructs a Store and restores the snapshot at cfg.Paths, if any.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || cfg.Index == nil {
		return nil, fmt.Errorf("store: index must not be nil")
	}
	if cfg.Policy == "" {
		cfg.Policy = snapshot.PolicyTruncate
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	s := &Store{
		idx:    cfg.Index,
		led:    ledger.New(),
		paths:  cfg.Paths,
		policy: cfg.Policy,
		log:    cfg.Logger,
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory state with the on-disk snapshot. With
// persistence disabled it is a no-op.
func (s *Store) Load(ctx context.Context) error {
	if !s.paths.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	led, rep, err := snapshot.Load(logging.WithLogger(ctx, s.log), s.idx, s.paths, s.policy)
	if err != nil {
		return fmt.Errorf("store: load: %w", err)
	}
	s.led = led
	s.stale.Store(rep.Inconsistent)
	s.log.Info("store: snapshot loaded",
		slog.Int("vectors", s.idx.Len()),
		slog.Int("records", s.led.Len()),
		slog.Bool("recovered", rep.Inconsistent),
	)
	return nil
}

// Dim returns the vector width accepted by Append and Search.
func (s *Store) Dim() int { return s.idx.Dim() }

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.Len()
}

// Stats reports both halves' sizes; they differ only if the invariant broke.
func (s *Store) Stats() rag.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rag.Stats{VectorCount: s.idx.Len(), MetadataCount: s.led.Len()}
}

// Records returns a copy of the ledger in position order.
func (s *Store) Records() []rag.ChunkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.led.Records()
}

// Append adds vectors[i] with metadata records[i] for every i, as one step.
// Mismatched lengths or widths are rejected before anything changes.
func (s *Store) Append(ctx context.Context, records []rag.ChunkRecord, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return &rag.ValidationError{
			Field:  "vectors",
			Reason: fmt.Sprintf("got %d vectors for %d records", len(vectors), len(records)),
		}
	}
	if len(records) == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != s.idx.Dim() {
			return &rag.ValidationError{
				Field:  fmt.Sprintf("vectors[%d]", i),
				Reason: fmt.Sprintf("dimension %d does not match store dimension %d", len(v), s.idx.Dim()),
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.Add(ctx, vectors); err != nil {
		return fmt.Errorf("store: add vectors: %w", err)
	}
	s.led.Append(records...)

	s.log.Debug("store: appended",
		slog.Int("count", len(records)),
		slog.Int("total", s.led.Len()),
	)
	return nil
}

// Search returns up to k hits for query, closest first. Neighbours whose
// position has no ledger record are dropped and logged. It returns
// rag.ErrEmptyIndex when nothing has been stored.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]rag.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.idx.Len() == 0 {
		return nil, rag.ErrEmptyIndex
	}

	neighbors, err := s.idx.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	hits := make([]rag.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		rec, err := s.led.Get(n.Position)
		if err != nil {
			if errors.Is(err, rag.ErrOutOfRange) {
				s.log.Error("store: index returned a position with no metadata record",
					slog.Int("position", n.Position),
					slog.Int("vectors", s.idx.Len()),
					slog.Int("records", s.led.Len()),
				)
				continue
			}
			return nil, fmt.Errorf("store: ledger lookup: %w", err)
		}
		hits = append(hits, rag.Hit{Record: rec, Position: n.Position, Distance: n.Distance})
	}
	return hits, nil
}

// Reset discards every vector and record. With deleteFiles the snapshot
// artifacts are removed as well, ignoring removal errors. Calling Reset on
// an empty store is a no-op.
func (s *Store) Reset(ctx context.Context, deleteFiles bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.Reset(ctx); err != nil {
		return fmt.Errorf("store: reset index: %w", err)
	}
	s.led.Reset()
	s.stale.Store(true)
	if deleteFiles {
		snapshot.Remove(logging.WithLogger(ctx, s.log), s.paths)
	}

	s.log.Info("store: reset", slog.Bool("delete_files", deleteFiles))
	return nil
}

// Save writes the snapshot. With persistence disabled it is a no-op.
func (s *Store) Save(ctx context.Context) error {
	if !s.paths.Enabled() {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.discardStale(); err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	if err := snapshot.Save(logging.WithLogger(ctx, s.log), s.idx, s.led, s.paths); err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	s.stale.Store(false)
	return nil
}

// discardStale removes the metadata artifact when it cannot be trusted as a
// prefix of the ledger about to be written. It stays set until the next
// save completes.
func (s *Store) discardStale() error {
	if !s.stale.Load() {
		return nil
	}
	return snapshot.DiscardMetadata(s.paths)
}

// Close saves the snapshot and releases the index. Later calls are no-ops.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	saveErr := s.Save(ctx)
	if err := s.idx.Close(); err != nil {
		return errors.Join(saveErr, fmt.Errorf("store: close index: %w", err))
	}
	return saveErr
}
