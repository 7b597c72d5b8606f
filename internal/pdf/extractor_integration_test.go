//go:build integration

package pdf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
)

// writeFixture renders one page per entry of pages with fpdf.
func writeFixture(t *testing.T, pages []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pdf")

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	for _, text := range pages {
		doc.AddPage()
		doc.SetFont("Arial", "", 12)
		if text != "" {
			doc.Cell(40, 10, text)
		}
	}
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// TestExtractor_Pages_Integration round-trips generated PDFs through pdfcpu.
//
// Run with:
//
//	go test -tags=integration -run TestExtractor ./internal/pdf/
func TestExtractor_Pages_Integration(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, []string{
		"The warranty period is two years.",
		"",
		"Refunds are issued within 14 days.",
	})

	pages, err := NewExtractor(t.TempDir()).Pages(context.Background(), path)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("want 3 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Number != i+1 {
			t.Errorf("page %d numbered %d", i, p.Number)
		}
	}
	if !strings.Contains(pages[0].Text, "warranty period") {
		t.Errorf("page 1 text missing, got %q", pages[0].Text)
	}
	if strings.TrimSpace(pages[1].Text) != "" {
		t.Errorf("blank page should have no text, got %q", pages[1].Text)
	}
	if !strings.Contains(pages[2].Text, "14 days") {
		t.Errorf("page 3 text missing, got %q", pages[2].Text)
	}
}

func TestExtractor_NotAPDF_Integration(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewExtractor("").Pages(context.Background(), path); err == nil {
		t.Error("want error for a non-PDF file")
	}
}
