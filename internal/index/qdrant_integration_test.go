//go:build integration

package index

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// TestQdrant_Integration exercises the Qdrant index against a running server
// and checks that it ranks exactly like the Flat index.
//
// Prerequisites:
//
//	docker run -p 6334:6334 qdrant/qdrant
//
// Run with:
//
//	go test -tags=integration -run TestQdrant_Integration ./internal/index/
func TestQdrant_Integration(t *testing.T) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		host = "localhost"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	q, err := NewQdrant(ctx, &QdrantConfig{
		Host:       host,
		Collection: fmt.Sprintf("docqa-it-%d", time.Now().UnixNano()),
		Dim:        3,
	})
	if err != nil {
		t.Fatalf("NewQdrant: %v\n\nEnsure Qdrant is reachable on %s:6334", err, host)
	}
	t.Cleanup(func() {
		_ = q.Client().DeleteCollection(context.Background(), q.cfg.Collection)
		_ = q.Close()
	})

	vecs := [][]float32{{3, 0, 0}, {1, 0, 0}, {2, 0, 0}}
	if err := q.Add(ctx, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if q.Len() != 3 {
		t.Fatalf("want 3 points, got %d", q.Len())
	}

	flat, _ := NewFlat(3)
	_ = flat.Add(ctx, vecs)

	query := []float32{0, 0, 0}
	want, _ := flat.Search(ctx, query, 3)
	got, err := q.Search(ctx, query, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("want %d neighbours, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Position != want[i].Position {
			t.Errorf("neighbour[%d]: want position %d, got %d", i, want[i].Position, got[i].Position)
		}
	}

	if err := q.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("want empty collection after reset, got %d", q.Len())
	}
}
