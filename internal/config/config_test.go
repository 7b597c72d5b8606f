package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unsetAll clears keys for the duration of the test.
func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  data_dir: /var/lib/docqa
  backend: qdrant
  snapshot_policy: refuse
qdrant:
  host: qdrant.internal
  port: 6334
  collection: contracts
pipeline:
  top_k: 8
  chunk_chars: 600
  embed_timeout: 90s
embedding:
  provider: ollama
  model: all-minilm
qa:
  provider: llm
  prompt_tokens: 2000
  model:
    provider: azure
    max_tokens: 256
    temperature: 0.3
    azure:
      endpoint: https://my-resource.openai.azure.com
      deployment: gpt-4o-mini
      api_version: "2024-02-01"
server:
  port: 9000
  max_upload_mb: 20
  rate_limit: 2.5
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"DOCQA_DATA_DIR":           "/var/lib/docqa",
		"DOCQA_INDEX_BACKEND":      "qdrant",
		"DOCQA_SNAPSHOT_POLICY":    "refuse",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION":        "contracts",
		"DOCQA_TOP_K":              "8",
		"DOCQA_CHUNK_CHARS":        "600",
		"DOCQA_EMBED_TIMEOUT":      "1m30s",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "all-minilm",
		"QA_PROVIDER":              "llm",
		"QA_PROMPT_TOKENS":         "2000",
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "256",
		"MODEL_TEMPERATURE":        "0.3",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o-mini",
		"AZURE_OPENAI_API_VERSION": "2024-02-01",
		"DOCQA_PORT":               "9000",
		"DOCQA_MAX_UPLOAD_MB":      "20",
		"DOCQA_RATE_LIMIT":         "2.5",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	unsetAll(t, keys...)

	loaded, err := Load(cfgPath, quietLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
	if d, err := time.ParseDuration(os.Getenv("DOCQA_EMBED_TIMEOUT")); err != nil || d != 90*time.Second {
		t.Errorf("DOCQA_EMBED_TIMEOUT must round-trip through time.ParseDuration, got %v (%v)", d, err)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
qa:
  provider: llm
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QA_PROVIDER", "lexical")

	if _, err := Load(cfgPath, quietLogger()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("QA_PROVIDER"); got != "lexical" {
		t.Errorf("QA_PROVIDER: expected env override %q, got %q", "lexical", got)
	}
}

func TestLoad_DocqaConfigEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "elsewhere.yaml")
	if err := os.WriteFile(cfgPath, []byte("store:\n  backend: flat\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCQA_CONFIG", cfgPath)
	unsetAll(t, "DOCQA_INDEX_BACKEND")

	loaded, err := Load("", quietLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("DOCQA_INDEX_BACKEND"); got != "flat" {
		t.Errorf("DOCQA_INDEX_BACKEND: got %q, want flat", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, quietLogger()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "DOCQA_TEST_FROM_DOTENV=dotenv\nDOCQA_TEST_ALREADY_SET=dotenv\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	unsetAll(t, "DOCQA_TEST_FROM_DOTENV")
	t.Setenv("DOCQA_TEST_ALREADY_SET", "process")

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DOCQA_TEST_FROM_DOTENV"); got != "dotenv" {
		t.Errorf("DOCQA_TEST_FROM_DOTENV: got %q, want dotenv", got)
	}
	if got := os.Getenv("DOCQA_TEST_ALREADY_SET"); got != "process" {
		t.Errorf("DOCQA_TEST_ALREADY_SET: process env must win, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env must not be an error, got %v", err)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDurationStr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, ""},
		{30 * time.Second, "30s"},
		{2 * time.Minute, "2m0s"},
	}
	for _, tt := range tests {
		if got := durationStr(tt.in); got != tt.want {
			t.Errorf("durationStr(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
