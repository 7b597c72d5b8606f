package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docqa-go/internal/catalog"
	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request, upload
	// bodies included.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover embedding a whole uploaded document.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Extractor turns an uploaded PDF into page texts. Required for
	// POST /api/upload; without it the route answers 501.
	Extractor Extractor
	// Catalog records uploaded documents. Optional.
	Catalog Registry
	// UploadDir is where uploads are spooled while they are processed.
	// Defaults to os.TempDir().
	UploadDir string
	// MaxUploadBytes caps the size of one upload. Defaults to 50 MiB.
	MaxUploadBytes int64
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// engine is the slice of *pipeline.Pipeline the handlers call.
// Tests inject a fake.
type engine interface {
	Ingest(ctx context.Context, records []rag.ChunkRecord) (int, error)
	IngestPages(ctx context.Context, pages []chunker.Page, source string) (int, error)
	Search(ctx context.Context, question string, topK int) ([]rag.Hit, error)
	Query(ctx context.Context, question string, topK int) (*rag.QueryResponse, error)
	Reset(ctx context.Context, deleteFiles bool) error
	Stats() rag.Stats
}

// Extractor returns the text of every page of the PDF at path.
// *pdf.Extractor satisfies it.
type Extractor interface {
	Pages(ctx context.Context, path string) ([]chunker.Page, error)
}

// Registry is the document registry behind GET /api/documents.
// *catalog.Catalog satisfies it.
type Registry interface {
	RecordDocument(ctx context.Context, source string, pages, chunks int) (catalog.Document, error)
	Documents(ctx context.Context) ([]catalog.Document, error)
	ClearDocuments(ctx context.Context) error
}

// Server is the HTTP surface over the retrieval pipeline.
type Server struct {
	// engine runs ingestion and queries.
	engine engine
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// uploadResponse is the JSON response for POST /api/upload.
type uploadResponse struct {
	Filename  string `json:"filename"`
	NumChunks int    `json:"num_chunks"`
	Message   string `json:"message"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	Records []rag.ChunkRecord `json:"records"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	NumChunks int `json:"num_chunks"`
}

// queryRequest is the JSON body for POST /api/query and POST /api/search.
type queryRequest struct {
	// Query is the natural language question.
	Query string `json:"query"`
	// TopK is the number of neighbours to retrieve. Absent means 5.
	TopK *int `json:"top_k,omitempty"`
	// SourceFilter is accepted for compatibility and ignored.
	SourceFilter *string `json:"source_filter,omitempty"`
}

// resetRequest is the optional JSON body for POST /api/reset.
type resetRequest struct {
	DeleteFiles bool `json:"delete_files"`
}
