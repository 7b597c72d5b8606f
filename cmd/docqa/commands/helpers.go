package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/54b3r/docqa-go/internal/catalog"
	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/index"
	"github.com/54b3r/docqa-go/internal/pdf"
	"github.com/54b3r/docqa-go/internal/pipeline"
	"github.com/54b3r/docqa-go/internal/qa"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/snapshot"
	"github.com/54b3r/docqa-go/internal/store"
)

// app bundles the long-lived components every command works with.
type app struct {
	log       *slog.Logger
	store     *store.Store
	catalog   *catalog.Catalog
	pipeline  *pipeline.Pipeline
	extractor *pdf.Extractor
	pingers   []server.Pinger
}

// openApp opens storage and attaches the embedder and answerer configured
// in the environment. Close must be called to save the store and release
// the catalog.
func openApp(ctx context.Context, log *slog.Logger) (*app, error) {
	if err := embedder.ValidateConfig(log); err != nil {
		return nil, err
	}
	a, err := openStorage(ctx, log)
	if err != nil {
		return nil, err
	}

	var emb rag.Embedder
	if a.catalog != nil {
		emb, err = embedder.NewFromEnvWithCache(a.catalog)
	} else {
		emb, err = embedder.NewFromEnv()
	}
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if embedder.Backend() == "ollama" {
		a.pingers = append(a.pingers, server.NewHTTPPinger("ollama-embedder", ollamaHost("EMBEDDING_ENDPOINT"), "/api/tags"))
	}
	log.Info("embedder initialised", slog.String("model", embedder.ModelID()))

	ans, err := qa.NewFromEnv(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if qa.Backend() == "llm" && getEnvOrDefault("MODEL_PROVIDER", "ollama") == "ollama" {
		a.pingers = append(a.pingers, server.NewHTTPPinger("ollama-qa", ollamaHost(""), "/api/tags"))
	}
	log.Info("answerer initialised", slog.String("backend", qa.Backend()))

	p, err := pipeline.New(a.store, emb, ans, pipeline.ConfigFromEnv())
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

// openStorage restores the store from the data directory and opens the
// catalog. Commands that never embed (stats, reset, documents) stop here.
func openStorage(ctx context.Context, log *slog.Logger) (*app, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	policy, err := snapshot.ParsePolicy(os.Getenv("DOCQA_SNAPSHOT_POLICY"))
	if err != nil {
		return nil, err
	}

	a := &app{log: log, extractor: pdf.NewExtractor("")}

	idx, err := buildIndex(ctx, log)
	if err != nil {
		return nil, err
	}
	if q, ok := idx.(*index.Qdrant); ok {
		a.pingers = append(a.pingers, server.NewQdrantPinger(q.Client()))
	}

	st, err := store.Open(ctx, &store.Config{
		Index:  idx,
		Paths:  snapshot.DefaultPaths(dataDir),
		Policy: policy,
		Logger: log,
	})
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	a.store = st
	log.Info("store ready",
		slog.String("data_dir", dataDir),
		slog.Int("records", st.Len()),
		slog.Int("dim", st.Dim()),
	)

	a.catalog = openCatalog(dataDir, log)
	if a.catalog != nil {
		a.pingers = append(a.pingers, server.NewFuncPinger("catalog", a.catalog.Ping))
	}
	return a, nil
}

// Close saves the store and closes the catalog. Errors are logged.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.log.Error("store: close failed", slog.Any("error", err))
		}
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.log.Warn("catalog: close failed", slog.Any("error", err))
		}
	}
}

// resolveDataDir returns DOCQA_DATA_DIR (created if missing) or ~/.docqa.
func resolveDataDir() (string, error) {
	dir := os.Getenv("DOCQA_DATA_DIR")
	if dir == "" {
		return catalog.DefaultDataDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("data dir: %w", err)
	}
	return dir, nil
}

// buildIndex returns the index selected by DOCQA_INDEX_BACKEND.
//
//	DOCQA_INDEX_BACKEND = flat | qdrant (default: flat)
func buildIndex(ctx context.Context, log *slog.Logger) (index.Index, error) {
	dim := embedder.Dimensions()
	switch backend := getEnvOrDefault("DOCQA_INDEX_BACKEND", "flat"); backend {
	case "flat":
		return index.NewFlat(dim)
	case "qdrant":
		cfg := &index.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: os.Getenv("QDRANT_COLLECTION"),
			Dim:        dim,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}
		q, err := index.NewQdrant(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		log.Info("qdrant index ready",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("collection", cfg.Collection),
		)
		return q, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q (valid: flat, qdrant)", backend)
	}
}

// openCatalog opens the document catalog. DOCQA_CATALOG_DB overrides the
// default path (<data dir>/catalog.db); "disabled" turns it off. Failures
// disable the catalog rather than abort, since retrieval does not need it.
func openCatalog(dataDir string, log *slog.Logger) *catalog.Catalog {
	path := os.Getenv("DOCQA_CATALOG_DB")
	if path == "disabled" {
		log.Info("catalog: disabled via DOCQA_CATALOG_DB=disabled")
		return nil
	}
	if path == "" {
		path = filepath.Join(dataDir, "catalog.db")
	}
	c, err := catalog.Open(path)
	if err != nil {
		log.Warn("catalog: failed to open, disabling", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	log.Info("catalog: opened", slog.String("path", path))
	return c
}

// ollamaHost resolves the Ollama base URL, preferring override when set.
func ollamaHost(override string) string {
	if override != "" {
		if v := os.Getenv(override); v != "" {
			return v
		}
	}
	return getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// readRecordsFile decodes a JSON array of chunk records; "-" reads stdin.
func readRecordsFile(path string, stdin io.Reader, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: no records", path)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
