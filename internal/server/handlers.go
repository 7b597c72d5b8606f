package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/catalog"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/pipeline"
	"github.com/54b3r/docqa-go/internal/rag"
)

// defaultMaxUploadBytes bounds one uploaded PDF.
const defaultMaxUploadBytes = 50 << 20

// Upload messages returned to the caller.
const (
	msgNotPDF      = "Only PDF files are accepted."
	msgNoText      = "No text found in PDF."
	msgUploadDone  = "PDF processed and embeddings stored with metadata."
	uploadFormFile = "file"
)

// handleUpload handles POST /api/upload. The PDF is spooled to a temporary
// file, split into pages, chunked and ingested under its base filename. The
// temporary file is removed whatever the outcome.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	if s.cfg.Extractor == nil {
		writeJSON(ctx, w, http.StatusNotImplemented, errorResponse{Error: "upload_disabled", Detail: "no PDF extractor configured"})
		return
	}

	if r.ContentLength > s.cfg.MaxUploadBytes {
		s.tooLarge(ctx, w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile(uploadFormFile)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.tooLarge(ctx, w)
			return
		}
		badRequest(ctx, w, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		badRequest(ctx, w, msgNotPDF)
		return
	}

	path, err := s.spool(file)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		writeError(ctx, w, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Warn("server: remove spooled upload", slog.String("path", path), slog.Any("error", err))
		}
	}()

	pages, err := s.cfg.Extractor.Pages(ctx, path)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		log.Warn("server: unreadable upload", slog.String("filename", name), slog.Any("error", err))
		writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{Error: "unreadable_pdf", Detail: err.Error()})
		return
	}

	n, err := s.engine.IngestPages(ctx, pages, name)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		writeError(ctx, w, err)
		return
	}
	s.metrics.ingestedChunksTotal.Add(float64(n))

	if n == 0 {
		s.metrics.uploadsTotal.WithLabelValues("empty").Inc()
		writeJSON(ctx, w, http.StatusOK, uploadResponse{Filename: name, NumChunks: 0, Message: msgNoText})
		return
	}

	if s.cfg.Catalog != nil {
		if _, err := s.cfg.Catalog.RecordDocument(ctx, name, len(pages), n); err != nil {
			log.Warn("server: catalog record failed", slog.String("filename", name), slog.Any("error", err))
		}
	}

	s.metrics.uploadsTotal.WithLabelValues("ok").Inc()
	log.Info("server: upload ingested",
		slog.String("filename", name),
		slog.Int("pages", len(pages)),
		slog.Int("chunks", n),
	)
	writeJSON(ctx, w, http.StatusOK, uploadResponse{Filename: name, NumChunks: n, Message: msgUploadDone})
}

// tooLarge rejects an upload over MaxUploadBytes.
func (s *Server) tooLarge(ctx context.Context, w http.ResponseWriter) {
	s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
	writeJSON(ctx, w, http.StatusRequestEntityTooLarge, errorResponse{
		Error:  "too_large",
		Detail: fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes),
	})
}

// spool copies src to a new file under UploadDir and returns its path.
func (s *Server) spool(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.cfg.UploadDir, "docqa-upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("server: create spool file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("server: spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("server: close spool file: %w", err)
	}
	return tmp.Name(), nil
}

// handleIngest handles POST /api/ingest with pre-chunked records.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, "invalid request body")
		return
	}

	n, err := s.engine.Ingest(ctx, req.Records)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	s.metrics.ingestedChunksTotal.Add(float64(n))
	writeJSON(ctx, w, http.StatusOK, ingestResponse{NumChunks: n})
}

// handleSearch handles POST /api/search and returns the nearest chunks,
// closest first.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeQuery(ctx, w, r)
	if !ok {
		return
	}

	hits, err := s.engine.Search(ctx, req.Query, topKOf(req))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	out := make([]rag.Source, len(hits))
	for i, h := range hits {
		out[i] = rag.SourceFromHit(h)
	}
	writeJSON(ctx, w, http.StatusOK, out)
}

// handleQuery handles POST /api/query. A failing QA step still answers 200;
// its message is carried in the answer text.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeQuery(ctx, w, r)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.engine.Query(ctx, req.Query, topKOf(req))
	s.metrics.observeQuery(queryOutcome(resp, err), time.Since(start))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.engine.Stats())
}

// handleReset handles POST /api/reset. The body is optional; without it the
// snapshot files are kept.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(ctx, w, "invalid request body")
		return
	}

	if err := s.engine.Reset(ctx, req.DeleteFiles); err != nil {
		writeError(ctx, w, err)
		return
	}
	if s.cfg.Catalog != nil {
		if err := s.cfg.Catalog.ClearDocuments(ctx); err != nil {
			logging.FromContext(ctx).Warn("server: catalog clear failed", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDocuments handles GET /api/documents.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs := []catalog.Document{}
	if s.cfg.Catalog != nil {
		found, err := s.cfg.Catalog.Documents(ctx)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if found != nil {
			docs = found
		}
	}
	writeJSON(ctx, w, http.StatusOK, docs)
}

// decodeQuery reads a queryRequest and rejects a non-positive top_k.
// It writes the 400 itself and reports false on failure.
func decodeQuery(ctx context.Context, w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, "invalid request body")
		return req, false
	}
	if req.TopK != nil && *req.TopK < 1 {
		badRequest(ctx, w, "top_k must be at least 1")
		return req, false
	}
	if req.SourceFilter != nil {
		logging.FromContext(ctx).Debug("server: source_filter ignored", slog.String("source_filter", *req.SourceFilter))
	}
	return req, true
}

// topKOf returns the requested neighbour count, or 0 for the pipeline default.
func topKOf(req queryRequest) int {
	if req.TopK == nil {
		return 0
	}
	return *req.TopK
}

// queryOutcome classifies a finished query for the outcome counter.
func queryOutcome(resp *rag.QueryResponse, err error) string {
	switch {
	case errors.Is(err, rag.ErrEmptyIndex):
		return "empty_index"
	case err != nil:
		return "error"
	case resp.Confidence == nil && strings.HasPrefix(resp.Answer, pipeline.QAErrorPrefix):
		return "qa_error"
	case resp.Answer == rag.UnknownAnswer:
		return "unknown"
	default:
		return "answered"
	}
}
