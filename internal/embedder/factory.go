package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/docqa-go/internal/rag"
)

// Default embedding models per backend. Each one can emit 384-dimensional
// vectors, the store's default width.
const (
	defaultOllamaModel = "all-minilm"
	defaultOpenAIModel = "text-embedding-3-small"
)

// Dimensions returns the configured embedding width: EMBEDDING_DIMENSIONS
// when set, otherwise rag.DefaultDimension.
func Dimensions() int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	return rag.DefaultDimension
}

// Backend returns the configured embedding backend (default: hash).
func Backend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", "hash")
}

// ModelID returns a stable "backend:model:width" label for the configured
// embedder. It keys the embedding cache, so vectors from different models or
// widths never mix.
func ModelID() string {
	backend := Backend()
	switch backend {
	case "ollama":
		return backend + ":" + getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel) + ":" + strconv.Itoa(Dimensions())
	case "openai", "azure":
		return backend + ":" + getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel) + ":" + strconv.Itoa(Dimensions())
	default:
		return backend + ":" + strconv.Itoa(Dimensions())
	}
}

// NewFromEnv constructs a rag.Embedder from environment variables. The
// result is wrapped in a Checked embedder enforcing Dimensions().
// It is NewFromEnvWithCache without a cache.
func NewFromEnv() (rag.Embedder, error) {
	return NewFromEnvWithCache(nil)
}

// NewFromEnvWithCache constructs the configured embedder behind a Cached
// layer keyed by ModelID(), when cache is non-nil. The width check wraps the
// cache, so cached vectors are held to Dimensions() as well.
//
// Resolution:
//
//  1. EMBEDDING_PROVIDER: hash | ollama | openai | azure (default: hash)
//  2. EMBEDDING_MODEL overrides the per-backend default model
//  3. EMBEDDING_API_KEY overrides OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//  4. EMBEDDING_ENDPOINT overrides OLLAMA_HOST / AZURE_OPENAI_ENDPOINT
//  5. EMBEDDING_DIMENSIONS overrides the width (default: 384)
func NewFromEnvWithCache(cache Cache) (rag.Embedder, error) {
	dims := Dimensions()
	backend := Backend()

	var emb rag.Embedder
	switch backend {
	case "hash":
		emb = NewHashEmbedder(dims)

	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		emb = NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		})

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		emb = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnvOrDefault("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
		})

	case "azure":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		emb = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid: hash, ollama, openai, azure)", backend)
	}

	if cache != nil {
		emb = NewCached(emb, cache, ModelID())
	}
	return NewChecked(emb, dims), nil
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
