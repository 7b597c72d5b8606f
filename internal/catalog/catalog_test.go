package catalog

import (
	"context"
	"testing"
)

// openTestCatalog opens an in-memory Catalog for use in tests.
func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory catalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func Test_Catalog_RecordAndList(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	first, err := c.RecordDocument(ctx, "a.pdf", 3, 12)
	if err != nil {
		t.Fatalf("record a: %v", err)
	}
	if _, err := c.RecordDocument(ctx, "b.pdf", 1, 2); err != nil {
		t.Fatalf("record b: %v", err)
	}
	if first.ID == "" {
		t.Error("want generated document ID")
	}

	docs, err := c.Documents(ctx)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 documents, got %d", len(docs))
	}
	if docs[0].Source != "a.pdf" || docs[0].Pages != 3 || docs[0].Chunks != 12 {
		t.Errorf("doc[0]: unexpected %+v", docs[0])
	}
	if docs[0].ID != first.ID {
		t.Errorf("doc[0]: want id %s, got %s", first.ID, docs[0].ID)
	}
	if docs[1].Source != "b.pdf" {
		t.Errorf("doc[1]: want b.pdf, got %s", docs[1].Source)
	}
}

func Test_Catalog_ClearDocuments(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if _, err := c.RecordDocument(ctx, "a.pdf", 1, 1); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := c.StoreEmbeddings(ctx, map[string][]float32{"k": {1}}); err != nil {
		t.Fatalf("store embeddings: %v", err)
	}
	if err := c.ClearDocuments(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	docs, err := c.Documents(ctx)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("want 0 documents after clear, got %d", len(docs))
	}
	cached, err := c.LookupEmbeddings(ctx, []string{"k"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(cached) != 1 {
		t.Error("embedding cache should survive ClearDocuments")
	}
}

func Test_Catalog_EmbeddingCache(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	in := map[string][]float32{
		"k1": {0.25, -1, 3.5},
		"k2": {0, 0, 1},
	}
	if err := c.StoreEmbeddings(ctx, in); err != nil {
		t.Fatalf("store: %v", err)
	}
	// Overwrite k2 to exercise the upsert path.
	if err := c.StoreEmbeddings(ctx, map[string][]float32{"k2": {9, 9, 9}}); err != nil {
		t.Fatalf("store overwrite: %v", err)
	}

	got, err := c.LookupEmbeddings(ctx, []string{"k1", "k2", "missing"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 hits, got %d", len(got))
	}
	if v := got["k1"]; len(v) != 3 || v[0] != 0.25 || v[1] != -1 || v[2] != 3.5 {
		t.Errorf("k1: unexpected vector %v", v)
	}
	if v := got["k2"]; v[0] != 9 {
		t.Errorf("k2: want overwritten vector, got %v", v)
	}
}

func Test_Catalog_LookupNoKeys(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)

	got, err := c.LookupEmbeddings(context.Background(), nil)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty map, got %v", got)
	}
}
