// Package catalog provides a SQLite-backed registry of ingested documents and
// a persistent cache of text embeddings. It sits beside the vector snapshot:
// the snapshot is the source of truth for retrieval, the catalog answers
// "what has been ingested" and saves repeated embedding calls across runs.
package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Document is one ingested file.
type Document struct {
	// ID is a random UUID assigned at ingestion.
	ID string `json:"id"`
	// Source is the document name stored in every chunk record.
	Source string `json:"source"`
	// Pages is the number of pages extracted.
	Pages int `json:"pages"`
	// Chunks is the number of chunk records appended to the store.
	Chunks int `json:"chunks"`
	// IngestedAt is when the ingestion finished.
	IngestedAt time.Time `json:"ingested_at"`
}

// Catalog is backed by a local SQLite database. It is safe for concurrent use.
type Catalog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDataDir returns ~/.docqa, creating it if needed.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return dir, nil
}

// DefaultDBPath returns the default catalog database path, ~/.docqa/catalog.db.
func DefaultDBPath() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) the catalog at path and runs the schema migration.
// Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Catalog, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// One connection: keeps ":memory:" databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *Catalog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    source       TEXT    NOT NULL,
    pages        INTEGER NOT NULL,
    chunks       INTEGER NOT NULL,
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_documents_ingested
    ON documents (ingested_at);
CREATE TABLE IF NOT EXISTS embedding_cache (
    key          TEXT    PRIMARY KEY,  -- sha256(model, text), hex
    dim          INTEGER NOT NULL,
    vector       BLOB    NOT NULL      -- little-endian float32
);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// RecordDocument registers a finished ingestion and returns the stored row.
func (c *Catalog) RecordDocument(ctx context.Context, source string, pages, chunks int) (Document, error) {
	doc := Document{
		ID:         uuid.NewString(),
		Source:     source,
		Pages:      pages,
		Chunks:     chunks,
		IngestedAt: time.Now().UTC().Truncate(time.Second),
	}
	const q = `INSERT INTO documents (id, source, pages, chunks, ingested_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := c.db.ExecContext(ctx, q, doc.ID, doc.Source, doc.Pages, doc.Chunks, doc.IngestedAt.Unix()); err != nil {
		return Document{}, fmt.Errorf("catalog: record document: %w", err)
	}
	return doc, nil
}

// Documents returns every registered document, oldest first.
func (c *Catalog) Documents(ctx context.Context) ([]Document, error) {
	const q = `SELECT id, source, pages, chunks, ingested_at FROM documents ORDER BY ingested_at ASC, rowid ASC`

	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var ts int64
		if err := rows.Scan(&d.ID, &d.Source, &d.Pages, &d.Chunks, &ts); err != nil {
			return nil, fmt.Errorf("catalog: documents scan: %w", err)
		}
		d.IngestedAt = time.Unix(ts, 0).UTC()
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: documents rows: %w", err)
	}
	return docs, nil
}

// ClearDocuments removes every document row. The embedding cache is kept:
// embeddings stay valid across a store reset.
func (c *Catalog) ClearDocuments(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("catalog: clear documents: %w", err)
	}
	return nil
}

// LookupEmbeddings returns the cached vectors for whichever keys are present.
func (c *Catalog) LookupEmbeddings(ctx context.Context, keys []string) (map[string][]float32, error) {
	found := make(map[string][]float32, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	q := `SELECT key, vector FROM embedding_cache WHERE key IN (` + placeholders + `)`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: lookup embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, fmt.Errorf("catalog: lookup embeddings scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("catalog: cached vector %s: %w", key, err)
		}
		found[key] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: lookup embeddings rows: %w", err)
	}
	return found, nil
}

// StoreEmbeddings upserts vectors keyed by cache key in one transaction.
func (c *Catalog) StoreEmbeddings(ctx context.Context, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: store embeddings: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO embedding_cache (key, dim, vector) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET dim = excluded.dim, vector = excluded.vector`
	for key, vec := range entries {
		if _, err := tx.ExecContext(ctx, q, key, len(vec), encodeVector(vec)); err != nil {
			return fmt.Errorf("catalog: store embedding %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: store embeddings commit: %w", err)
	}
	return nil
}

// Ping checks the database connection. Used by the readiness probe.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the database connection pool.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}

// encodeVector packs vec as little-endian IEEE 754 float32 values.
func encodeVector(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

// decodeVector reverses encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid blob length %d (not a multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
