package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// saveTimeout bounds the snapshot save after the server has stopped.
const saveTimeout = 30 * time.Second

// NewServeCmd constructs the `docqa serve` command, which restores the index
// and serves the JSON API until interrupted.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP API",
		Long: `Start the docqa HTTP API.

The persisted index is restored before the listener opens and saved again on
SIGINT/SIGTERM.

Endpoints:
  POST /api/upload      multipart PDF upload (field "file")
  POST /api/ingest      pre-chunked records
  POST /api/search      nearest chunks for a query
  POST /api/query       answer with source and citation
  GET  /api/stats       vector and metadata counts
  POST /api/reset       clear the index
  GET  /api/documents   ingested documents
  GET  /api/health, /api/ready, /metrics

Examples:
  docqa serve
  docqa serve --port 9090
  DOCQA_API_KEY=secret QA_PROVIDER=llm docqa serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			if host == "" {
				host = getEnvOrDefault("DOCQA_HOST", "127.0.0.1")
			}
			if port == 0 {
				port = getEnvInt("DOCQA_PORT", 8000)
			}

			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			a, err := openApp(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
				defer cancel()
				a.Close(saveCtx)
			}()

			cfg := &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        a.pingers,
				APIKey:         os.Getenv("DOCQA_API_KEY"),
				RateLimit:      getEnvFloat("DOCQA_RATE_LIMIT", 0),
				RateBurst:      getEnvInt("DOCQA_RATE_BURST", 0),
				Extractor:      a.extractor,
				MaxUploadBytes: int64(getEnvInt("DOCQA_MAX_UPLOAD_MB", 0)) << 20,
			}
			if a.catalog != nil {
				cfg.Catalog = a.catalog
			}

			srv, err := server.New(a.pipeline, cfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: DOCQA_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: DOCQA_PORT or 8000)")

	return cmd
}
