package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/54b3r/docqa-go/internal/index"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/snapshot"
)

// quietLogger discards all output.
func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// openTestStore opens a Store over a 2-d Flat index. An empty dir disables
// persistence.
func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	idx, err := index.NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	cfg := &Config{Index: idx, Logger: quietLogger()}
	if dir != "" {
		cfg.Paths = snapshot.DefaultPaths(dir)
	}
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func records(texts ...string) []rag.ChunkRecord {
	out := make([]rag.ChunkRecord, len(texts))
	for i, txt := range texts {
		out[i] = rag.ChunkRecord{Text: txt, Source: "doc.pdf", Page: 1, ChunkID: i}
	}
	return out
}

func Test_Store_AlignmentRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, "")

	vecs := [][]float32{{0, 0}, {5, 5}, {-3, 2}}
	if err := s.Append(ctx, records("zero", "five", "minus"), vecs); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if st := s.Stats(); st.VectorCount != 3 || st.MetadataCount != 3 {
		t.Fatalf("want 3/3, got %+v", st)
	}

	for pos, v := range vecs {
		hits, err := s.Search(ctx, v, 1)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(hits) != 1 || hits[0].Position != pos || hits[0].Distance != 0 {
			t.Fatalf("vector %d: want exact match at its own position, got %+v", pos, hits)
		}
		if hits[0].Record.ChunkID != pos {
			t.Errorf("vector %d: ledger misaligned, got record %+v", pos, hits[0].Record)
		}
	}
}

func Test_Store_AppendRejectsMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, "")

	tests := []struct {
		name string
		recs []rag.ChunkRecord
		vecs [][]float32
	}{
		{"count mismatch", records("a", "b"), [][]float32{{1, 1}}},
		{"dimension mismatch", records("a", "b"), [][]float32{{1, 1}, {1, 1, 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Append(ctx, tc.recs, tc.vecs)
			if !rag.IsValidation(err) {
				t.Errorf("want ValidationError, got %v", err)
			}
		})
	}
	if st := s.Stats(); st.VectorCount != 0 || st.MetadataCount != 0 {
		t.Errorf("rejected appends mutated the store: %+v", st)
	}
}

func Test_Store_EmptyAppendIsNoop(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "")

	if err := s.Append(context.Background(), nil, nil); err != nil {
		t.Fatalf("Append(nil): %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("want empty store, got %d", s.Len())
	}
}

func Test_Store_SearchEmpty(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "")

	_, err := s.Search(context.Background(), []float32{0, 0}, 3)
	if !errors.Is(err, rag.ErrEmptyIndex) {
		t.Errorf("want ErrEmptyIndex, got %v", err)
	}
}

// skewedIndex reports neighbours beyond the ledger to simulate a broken
// invariant.
type skewedIndex struct {
	*index.Flat
}

func (s skewedIndex) Search(ctx context.Context, q []float32, k int) ([]index.Neighbor, error) {
	n, err := s.Flat.Search(ctx, q, k)
	return append([]index.Neighbor{{Position: 99, Distance: 0}, {Position: -1, Distance: 0}}, n...), err
}

func Test_Store_SearchDropsOutOfRangePositions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flat, _ := index.NewFlat(2)
	s, err := Open(ctx, &Config{Index: skewedIndex{flat}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Append(ctx, records("only"), [][]float32{{1, 1}}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	hits, err := s.Search(ctx, []float32{1, 1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Position != 0 {
		t.Errorf("want only the valid hit, got %+v", hits)
	}
}

func Test_Store_ResetIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := openTestStore(t, dir)

	// Clean state, no files on disk: must not error.
	if err := s.Reset(ctx, true); err != nil {
		t.Fatalf("Reset on clean state: %v", err)
	}

	if err := s.Append(ctx, records("a"), [][]float32{{1, 2}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for i := range 2 {
		if err := s.Reset(ctx, true); err != nil {
			t.Fatalf("Reset #%d: %v", i, err)
		}
		if st := s.Stats(); st.VectorCount != 0 || st.MetadataCount != 0 {
			t.Fatalf("Reset #%d: want empty, got %+v", i, st)
		}
	}
	paths := snapshot.DefaultPaths(dir)
	for _, p := range []string{paths.Index, paths.Metadata} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be deleted", p)
		}
	}
}

func Test_Store_CloseSavesAndOpenRestores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestStore(t, dir)
	if err := s.Append(ctx, records("a", "b"), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	before, err := s.Search(ctx, []float32{0.2, 0.9}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	reopened := openTestStore(t, dir)
	after, err := reopened.Search(ctx, []float32{0.2, 0.9}, 2)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("want %d hits, got %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("hit[%d]: before %+v, after %+v", i, before[i], after[i])
		}
	}
}

func Test_Store_ConcurrentAppendAndSearchStayAligned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t, "")
	if err := s.Append(ctx, records("seed"), [][]float32{{0, 0}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 25 {
				rec := rag.ChunkRecord{Text: fmt.Sprintf("w%d-%d", w, i), Source: "c.pdf", Page: 1, ChunkID: i}
				if err := s.Append(ctx, []rag.ChunkRecord{rec}, [][]float32{{float32(w), float32(i)}}); err != nil {
					t.Errorf("Append: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 25 {
				if _, err := s.Search(ctx, []float32{1, 1}, 3); err != nil {
					t.Errorf("Search: %v", err)
					return
				}
				if st := s.Stats(); st.VectorCount != st.MetadataCount {
					t.Errorf("misaligned during concurrent use: %+v", st)
					return
				}
			}
		}()
	}
	wg.Wait()

	if st := s.Stats(); st.VectorCount != 101 || st.MetadataCount != 101 {
		t.Errorf("want 101/101, got %+v", st)
	}
}

func TestOpen_RequiresIndex(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), &Config{}); err == nil {
		t.Error("want error for nil index")
	}
}

func Test_Store_SaveAfterResetNeverPairsStaleRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	paths := snapshot.DefaultPaths(dir)

	s := openTestStore(t, dir)
	if err := s.Append(ctx, records("old-0", "old-1", "old-2"), [][]float32{{1, 0}, {0, 1}, {1, 1}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Reset(ctx, false); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Append(ctx, records("new-0"), [][]float32{{9, 9}}); err != nil {
		t.Fatalf("Append after reset: %v", err)
	}

	// Die between the index rename and the metadata rename of the next save.
	if err := s.discardStale(); err != nil {
		t.Fatalf("discardStale: %v", err)
	}
	data, err := s.idx.(*index.Flat).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if err := os.WriteFile(paths.Index, data, 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}

	reopened := openTestStore(t, dir)
	for _, r := range reopened.Records() {
		if r.Text != "new-0" {
			t.Fatalf("stale record %q restored next to a post-reset vector", r.Text)
		}
	}
	if st := reopened.Stats(); st.VectorCount != st.MetadataCount {
		t.Fatalf("misaligned after recovery: %+v", st)
	}
}

func Test_Store_ResetWithoutSaveKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestStore(t, dir)
	if err := s.Append(ctx, records("a", "b"), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Reset(ctx, false); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := openTestStore(t, dir).Len(); got != 2 {
		t.Errorf("files kept by reset: reopened store has %d records, want 2", got)
	}

	if err := s.Append(ctx, records("c"), [][]float32{{5, 5}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save after reset: %v", err)
	}
	got := openTestStore(t, dir).Records()
	if len(got) != 1 || got[0].Text != "c" {
		t.Errorf("after a full save: want only [c], got %+v", got)
	}
	if s.stale.Load() {
		t.Error("a completed save must clear the stale marker")
	}
}
