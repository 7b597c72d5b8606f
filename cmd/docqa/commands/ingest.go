package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// NewIngestCmd constructs the `docqa ingest` command, which chunks, embeds
// and indexes PDF files or a JSON file of pre-chunked records.
func NewIngestCmd() *cobra.Command {
	var recordsPath string

	cmd := &cobra.Command{
		Use:   "ingest [file.pdf ...]",
		Short: "Index PDF documents or pre-chunked records",
		Long: `Extract the text of each PDF page, split it into chunks, embed the chunks
and append them to the index. The snapshot is saved when the command ends.

With --records, a JSON array of {"text","source","page","chunk_id"} objects
is ingested as-is ("-" reads stdin). The whole batch is validated before
anything is embedded.

Examples:
  docqa ingest handbook.pdf
  docqa ingest reports/*.pdf
  docqa ingest --records chunks.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)
			out := cmd.OutOrStdout()

			if len(args) == 0 && recordsPath == "" {
				return fmt.Errorf("ingest: at least one PDF or --records is required")
			}

			a, err := openApp(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer a.Close(ctx)

			if recordsPath != "" {
				var records []rag.ChunkRecord
				if err := readRecordsFile(recordsPath, cmd.InOrStdin(), &records); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				n, err := a.pipeline.Ingest(ctx, records)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				fmt.Fprintf(out, "%s: %d chunks\n", recordsPath, n)
			}

			for _, path := range args {
				if !strings.EqualFold(filepath.Ext(path), ".pdf") {
					return fmt.Errorf("ingest: %s: only PDF files are supported", path)
				}
				name := filepath.Base(path)

				pages, err := a.extractor.Pages(ctx, path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				n, err := a.pipeline.IngestPages(ctx, pages, name)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", name, err)
				}
				if n == 0 {
					fmt.Fprintf(out, "%s: no text found\n", name)
					continue
				}
				if a.catalog != nil {
					if _, err := a.catalog.RecordDocument(ctx, name, len(pages), n); err != nil {
						log.Warn("catalog: record failed", slog.String("source", name), slog.Any("error", err))
					}
				}
				fmt.Fprintf(out, "%s: %d pages, %d chunks\n", name, len(pages), n)
			}

			stats := a.pipeline.Stats()
			log.Info("ingestion complete", slog.Int("vectors", stats.VectorCount), slog.Int("records", stats.MetadataCount))
			return nil
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "", `JSON file of chunk records to ingest ("-" for stdin)`)

	return cmd
}
