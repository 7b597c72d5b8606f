package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection holding the vectors.
	Collection string

	// Dim is the vector width of the collection.
	Dim int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant implements Index on a Qdrant collection. Point IDs are the index
// positions, the collection uses Euclidean distance, and every query is sent
// with exact search enabled so results match the Flat index.
type Qdrant struct {
	client *qdrant.Client
	cfg    *QdrantConfig

	// mu guards count, the cached number of points.
	mu    sync.RWMutex
	count int
}

var _ Index = (*Qdrant)(nil)

// NewQdrant connects to Qdrant, ensures the collection exists with the
// configured dimension, and primes the point count.
func NewQdrant(ctx context.Context, cfg *QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "docqa-chunks"
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("qdrant: dimension must be positive, got %d", cfg.Dim)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	q := &Qdrant{client: client, cfg: cfg}
	if err := q.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant: count points: %w", err)
	}
	q.count = int(n) //nolint:gosec // point count fits in int
	return q, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (q *Qdrant) Client() *qdrant.Client { return q.client }

// ensureCollection creates the collection if it does not already exist.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.cfg.Dim), //nolint:gosec // dim validated positive
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}
	return nil
}

// Dim returns the collection's vector width.
func (q *Qdrant) Dim() int { return q.cfg.Dim }

// Len returns the number of points written through this index.
func (q *Qdrant) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.count
}

// Add upserts vectors with IDs continuing from the current count and waits
// for the write to be applied.
func (q *Qdrant) Add(ctx context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if err := checkDim(fmt.Sprintf("vectors[%d]", i), v, q.cfg.Dim); err != nil {
			return err
		}
	}
	if len(vectors) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for i, v := range vectors {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(q.count + i)), //nolint:gosec // positions are non-negative
			Vectors: qdrant.NewVectors(v...),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	q.count += len(vectors)
	return nil
}

// Search runs an exact Euclidean query and converts scores to squared
// distances.
func (q *Qdrant) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := checkDim("query", query, q.cfg.Dim); err != nil {
		return nil, err
	}
	if q.Len() == 0 {
		return []Neighbor{}, nil
	}

	limit := uint64(k) //nolint:gosec // k validated positive
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	out := make([]Neighbor, 0, len(results))
	for _, r := range results {
		d := r.GetScore()
		out = append(out, Neighbor{
			Position: int(r.GetId().GetNum()), //nolint:gosec // IDs are positions
			Distance: d * d,
		})
	}
	// Qdrant does not promise an order among equal scores.
	slices.SortStableFunc(out, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return out, nil
}

// Reset drops and recreates the collection.
func (q *Qdrant) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.client.DeleteCollection(ctx, q.cfg.Collection); err != nil {
		return fmt.Errorf("qdrant: delete collection %q: %w", q.cfg.Collection, err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		return err
	}
	q.count = 0
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
