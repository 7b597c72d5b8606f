// Package pdf extracts per-page text from PDF files with pdfcpu.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/logging"
)

// contentFile matches the page number in pdfcpu's extracted content file
// names, e.g. "report_Content_page_3.txt".
var contentFile = regexp.MustCompile(`Content_page_(\d+)`)

// Extractor reads page text from PDF files. It is safe for concurrent use;
// every call works in its own temporary directory.
type Extractor struct {
	tempDir string
}

// NewExtractor returns an Extractor that stages pdfcpu output under
// tempDir. An empty tempDir uses os.TempDir().
func NewExtractor(tempDir string) *Extractor {
	return &Extractor{tempDir: tempDir}
}

// Pages returns one entry per page of the PDF at path, numbered from 1.
// Pages without extractable text have empty Text.
func (e *Extractor) Pages(ctx context.Context, path string) ([]chunker.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx)

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("pdf: read %s: %w", filepath.Base(path), err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.tempDir, "docqa-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("pdf: create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	if err := api.ExtractContentFile(path, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("pdf: extract content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("pdf: read staging dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	texts := make(map[int]string, pageCount)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := contentFile.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		page, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			log.Warn("pdf: skipping unreadable content file", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		text := decodeContent(raw)
		if prev := texts[page]; prev != "" && text != "" {
			text = prev + "\n" + text
		} else if prev != "" {
			text = prev
		}
		texts[page] = text
	}

	pages := make([]chunker.Page, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pages = append(pages, chunker.Page{Number: n, Text: texts[n]})
	}
	log.Debug("pdf: extracted pages",
		slog.String("file", filepath.Base(path)),
		slog.Int("pages", pageCount),
		slog.Int("with_text", len(texts)),
	)
	return pages, nil
}
