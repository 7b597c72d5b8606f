package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/docqa-go/internal/rag"
)

// Checked wraps an Embedder and rejects responses whose length or vector
// width does not match the request. Backends that silently return the wrong
// model's dimension are caught here instead of inside the index.
type Checked struct {
	next rag.Embedder
	dim  int
}

// NewChecked wraps next, requiring every vector to have width dim.
func NewChecked(next rag.Embedder, dim int) *Checked {
	return &Checked{next: next, dim: dim}
}

// Embed delegates to the wrapped embedder and validates the result.
func (c *Checked) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := c.next.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != c.dim {
			return nil, fmt.Errorf("embedder: embedding %d has dimension %d, want %d (check EMBEDDING_MODEL and EMBEDDING_DIMENSIONS)", i, len(v), c.dim)
		}
	}
	return vecs, nil
}
