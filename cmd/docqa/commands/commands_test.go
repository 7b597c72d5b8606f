package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/docqa-go/internal/catalog"
	"github.com/54b3r/docqa-go/internal/rag"
)

// isolate points every command at a fresh data directory with the offline
// hash embedder and lexical answerer.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DOCQA_CONFIG", "")
	t.Setenv("DOCQA_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DOCQA_INDEX_BACKEND", "flat")
	t.Setenv("DOCQA_CATALOG_DB", "")
	t.Setenv("DOCQA_SNAPSHOT_POLICY", "")
	t.Setenv("EMBEDDING_PROVIDER", "hash")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	t.Setenv("QA_PROVIDER", "lexical")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const sampleRecords = `[
  {"text": "The lease term is twelve months starting in March.", "source": "lease.pdf", "page": 1, "chunk_id": 0},
  {"text": "Rent is due on the first day of every month.", "source": "lease.pdf", "page": 2, "chunk_id": 1},
  {"text": "Pets are not allowed in the building.", "source": "rules.pdf", "page": 1, "chunk_id": 0}
]`

func mustStats(t *testing.T) rag.Stats {
	t.Helper()
	out, err := run(t, "", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var st rag.Stats
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("stats output %q: %v", out, err)
	}
	return st
}

func TestCLI_IngestSearchQueryReset(t *testing.T) {
	isolate(t)

	out, err := run(t, sampleRecords, "ingest", "--records", "-")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "3 chunks") {
		t.Errorf("ingest output = %q, want 3 chunks", out)
	}

	// A new process restores the snapshot written by the previous one.
	if st := mustStats(t); st.VectorCount != 3 || st.MetadataCount != 3 {
		t.Fatalf("stats after ingest = %+v, want 3/3", st)
	}

	out, err = run(t, "", "search", "--top-k", "2", "Pets are not allowed in the building.")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var sources []rag.Source
	if err := json.Unmarshal([]byte(out), &sources); err != nil {
		t.Fatalf("search output %q: %v", out, err)
	}
	if len(sources) != 2 {
		t.Fatalf("search returned %d sources, want 2", len(sources))
	}
	if sources[0].Source != "rules.pdf" || sources[0].Score != 0 {
		t.Errorf("closest source = %+v, want rules.pdf at distance 0", sources[0])
	}

	out, err = run(t, "", "query", "Rent is due on the first day of every month.")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var resp rag.QueryResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("query output %q: %v", out, err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Page != 2 {
		t.Errorf("query sources = %+v, want the page 2 chunk only", resp.Sources)
	}
	if resp.Answer == "" {
		t.Error("query answer must not be empty")
	}

	if _, err := run(t, "", "reset", "--delete-files"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if st := mustStats(t); st.VectorCount != 0 || st.MetadataCount != 0 {
		t.Errorf("stats after reset = %+v, want 0/0", st)
	}

	_, err = run(t, "", "query", "anything")
	if err == nil || !strings.Contains(err.Error(), "no documents have been ingested") {
		t.Errorf("query on empty index: got %v", err)
	}
}

func TestCLI_IngestRejectsInvalidRecordsAtomically(t *testing.T) {
	isolate(t)

	bad := `[
  {"text": "valid", "source": "a.pdf", "page": 1, "chunk_id": 0},
  {"text": "", "source": "a.pdf", "page": 1, "chunk_id": 1}
]`
	if _, err := run(t, bad, "ingest", "--records", "-"); err == nil {
		t.Fatal("expected validation error")
	}
	if st := mustStats(t); st.VectorCount != 0 {
		t.Errorf("a rejected batch must not be appended, got %+v", st)
	}
}

func TestCLI_IngestArgumentErrors(t *testing.T) {
	dir := isolate(t)

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"ingest"}, "at least one PDF"},
		{"not a pdf", []string{"ingest", txt}, "only PDF files"},
		{"missing records file", []string{"ingest", "--records", filepath.Join(dir, "missing.json")}, "missing.json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, "", tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestCLI_DocumentsEmpty(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "documents")
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	var docs []catalog.Document
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("documents output %q: %v", out, err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("documents = %#v, want empty list", docs)
	}
}

func TestCLI_UnknownIndexBackend(t *testing.T) {
	isolate(t)
	t.Setenv("DOCQA_INDEX_BACKEND", "faiss")

	_, err := run(t, "", "stats")
	if err == nil || !strings.Contains(err.Error(), "unknown index backend") {
		t.Errorf("got %v, want unknown index backend error", err)
	}
}

func TestCLI_Version(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "docqa ") {
		t.Errorf("version output = %q", out)
	}
}
