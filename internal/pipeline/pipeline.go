// Package pipeline orchestrates the two paths through the system. Ingest
// runs chunk → embed → store. Query runs embed → search → top-1 context →
// extractive QA → citation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/store"
)

// QAErrorPrefix starts the answer text of a response whose QA step failed.
const QAErrorPrefix = "QA error: "

// Config holds pipeline tuning.
type Config struct {
	// TopK is the number of neighbours retrieved when the caller passes a
	// non-positive value. Defaults to 5.
	TopK int
	// MaxChars bounds chunk length for IngestPages. Defaults to
	// chunker.DefaultMaxChars.
	MaxChars int
	// EmbedTimeout bounds each embedding call. Defaults to 60s.
	EmbedTimeout time.Duration
	// AnswerTimeout bounds each QA call. Defaults to 60s.
	AnswerTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.MaxChars <= 0 {
		out.MaxChars = chunker.DefaultMaxChars
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 60 * time.Second
	}
	if out.AnswerTimeout <= 0 {
		out.AnswerTimeout = 60 * time.Second
	}
	return out
}

// Pipeline wires the store to its embedding and QA collaborators. It is safe
// for concurrent use; serialisation of writes is the store's job.
type Pipeline struct {
	store    *store.Store
	embedder rag.Embedder
	answerer rag.Answerer
	validate *validator.Validate
	cfg      Config
}

// New constructs a Pipeline. cfg may be nil.
func New(st *store.Store, emb rag.Embedder, ans rag.Answerer, cfg *Config) (*Pipeline, error) {
	if st == nil {
		return nil, fmt.Errorf("pipeline: store must not be nil")
	}
	if emb == nil {
		return nil, fmt.Errorf("pipeline: embedder must not be nil")
	}
	if ans == nil {
		return nil, fmt.Errorf("pipeline: answerer must not be nil")
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Pipeline{
		store:    st,
		embedder: emb,
		answerer: ans,
		validate: v,
		cfg:      cfg.withDefaults(),
	}, nil
}

// Stats reports the store sizes.
func (p *Pipeline) Stats() rag.Stats { return p.store.Stats() }

// Reset empties the store. With deleteFiles the snapshot artifacts are
// removed too.
func (p *Pipeline) Reset(ctx context.Context, deleteFiles bool) error {
	return p.store.Reset(ctx, deleteFiles)
}

// MaxChars returns the chunk length bound in effect.
func (p *Pipeline) MaxChars() int { return p.cfg.MaxChars }

// IngestPages chunks the pages of one document and ingests the result.
// It returns the number of chunks stored, which is zero for a document
// without text.
func (p *Pipeline) IngestPages(ctx context.Context, pages []chunker.Page, source string) (int, error) {
	return p.Ingest(ctx, chunker.ExtractChunks(pages, source, p.cfg.MaxChars))
}

// Ingest embeds every record's text in one call and appends vectors and
// records to the store as one step. Invalid records are rejected with a
// *rag.ValidationError before any collaborator call. An embedding failure
// aborts the whole batch with a *rag.CollaboratorError and stores nothing.
func (p *Pipeline) Ingest(ctx context.Context, records []rag.ChunkRecord) (int, error) {
	for i := range records {
		if err := p.validateRecord(i, &records[i]); err != nil {
			return 0, err
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	if err := p.store.Append(ctx, records, vectors); err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info("pipeline: ingested",
		slog.Int("chunks", len(records)),
		slog.String("source", records[0].Source),
	)
	return len(records), nil
}

// Search embeds question and returns up to topK hits, closest first.
// It returns rag.ErrEmptyIndex without calling the embedder when nothing has
// been ingested.
func (p *Pipeline) Search(ctx context.Context, question string, topK int) ([]rag.Hit, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &rag.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if p.store.Len() == 0 {
		return nil, rag.ErrEmptyIndex
	}
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	vectors, err := p.embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	return p.store.Search(ctx, vectors[0], topK)
}

// Query answers question from the single closest chunk.
//
// With no hits the answer is rag.UnknownAnswer and no QA call is made. A QA
// failure never surfaces as an error: the answer carries "QA error: <msg>",
// the source is kept and confidence is absent. Blank answers become
// rag.UnknownAnswer. A citation is attached only when the answer occurs
// verbatim in the context chunk.
func (p *Pipeline) Query(ctx context.Context, question string, topK int) (*rag.QueryResponse, error) {
	log := logging.FromContext(ctx)

	hits, err := p.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &rag.QueryResponse{Answer: rag.UnknownAnswer, Sources: []rag.Source{}}, nil
	}

	top := hits[0]
	passage := top.Record.Text
	resp := &rag.QueryResponse{Sources: []rag.Source{rag.SourceFromHit(top)}}

	actx, cancel := context.WithTimeout(ctx, p.cfg.AnswerTimeout)
	defer cancel()

	switch out := rag.Ask(actx, p.answerer, question, passage).(type) {
	case rag.AnswerFailed:
		log.Warn("pipeline: QA step failed", slog.Any("error", out.Err))
		resp.Answer = QAErrorPrefix + out.Err.Error()
		return resp, nil

	case rag.Answered:
		score := out.Score
		resp.Confidence = &score

		text := strings.TrimSpace(out.Text)
		if text == "" {
			resp.Answer = rag.UnknownAnswer
			return resp, nil
		}
		resp.Answer = text

		if start, end, ok := rag.Locate(passage, text); ok {
			resp.Citation = &rag.Citation{
				Source:  top.Record.Source,
				Page:    top.Record.Page,
				ChunkID: top.Record.ChunkID,
				Start:   start,
				End:     end,
			}
		}
	}
	return resp, nil
}

// embed calls the embedder under the configured timeout and checks the
// shape of its output against the store.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
	defer cancel()

	vectors, err := p.embedder.Embed(ectx, texts)
	if err != nil {
		return nil, &rag.CollaboratorError{Op: "embed", Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &rag.CollaboratorError{
			Op:  "embed",
			Err: fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts)),
		}
	}
	for i, v := range vectors {
		if len(v) != p.store.Dim() {
			return nil, &rag.CollaboratorError{
				Op:  "embed",
				Err: fmt.Errorf("embedding %d has dimension %d, store expects %d", i, len(v), p.store.Dim()),
			}
		}
	}
	return vectors, nil
}

// validateRecord checks one record against its struct tags.
func (p *Pipeline) validateRecord(i int, r *rag.ChunkRecord) error {
	err := p.validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &rag.ValidationError{
			Field:  fmt.Sprintf("records[%d].%s", i, fe.Field()),
			Reason: reason,
		}
	}
	return &rag.ValidationError{Field: fmt.Sprintf("records[%d]", i), Reason: err.Error()}
}
