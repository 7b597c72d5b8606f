// Package rag defines the domain types and collaborator interfaces shared by
// the retrieval pipeline: chunk records, search hits, query responses, and the
// embedding and question-answering contracts.
// Concrete implementations (hash/Ollama/OpenAI embedders, lexical/LLM
// answerers) satisfy these interfaces so the pipeline never depends on a
// specific backend.
package rag

import (
	"context"
	"strconv"
)

// DefaultDimension is the embedding width used when none is configured.
// It matches the all-MiniLM-L6-v2 family of sentence encoders.
const DefaultDimension = 384

// UnknownAnswer is returned as the answer text whenever no usable answer
// could be produced from the retrieved context.
const UnknownAnswer = "I don’t know."

// ChunkRecord is the metadata stored for one indexed text chunk. The record
// at ledger position i describes the vector at index position i.
type ChunkRecord struct {
	// Text is the chunk content handed to the QA collaborator as context.
	Text string `json:"text" validate:"required"`
	// Source is the originating document name, usually the uploaded filename.
	Source string `json:"source" validate:"required"`
	// Page is the 1-based page number the chunk was cut from.
	Page int `json:"page" validate:"gte=1"`
	// ChunkID is the 0-based sequence number of the chunk within its document.
	ChunkID int `json:"chunk_id" validate:"gte=0"`
}

// Key returns the logical identity of the chunk across documents.
// chunk_id alone is only unique within a single ingestion call.
func (r ChunkRecord) Key() string {
	return r.Source + "#" + strconv.Itoa(r.ChunkID)
}

// Hit is a resolved search result: the ledger record for a neighbour plus
// its index position and squared L2 distance to the query.
type Hit struct {
	// Record is the metadata for the matched vector.
	Record ChunkRecord
	// Position is the index/ledger position of the match.
	Position int
	// Distance is the squared Euclidean distance; smaller is closer.
	Distance float32
}

// Source is the wire form of a retrieved chunk in search and query responses.
type Source struct {
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Page    int     `json:"page"`
	ChunkID int     `json:"chunk_id"`
	Score   float32 `json:"score"`
}

// SourceFromHit converts a Hit into its response form.
func SourceFromHit(h Hit) Source {
	return Source{
		Text:    h.Record.Text,
		Source:  h.Record.Source,
		Page:    h.Record.Page,
		ChunkID: h.Record.ChunkID,
		Score:   h.Distance,
	}
}

// Citation locates the answer inside the context chunk it came from.
// Start and End are half-open offsets counted in Unicode code points.
type Citation struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	ChunkID int    `json:"chunk_id"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// QueryResponse is the result of answering a question.
type QueryResponse struct {
	// Answer is the extracted answer, UnknownAnswer, or a "QA error: ..." message.
	Answer string `json:"answer"`
	// Sources holds the single hit used as context, or nothing.
	Sources []Source `json:"sources"`
	// Confidence is the QA score; absent when the QA step failed.
	Confidence *float64 `json:"confidence,omitempty"`
	// Citation is present only when the answer occurs verbatim in the context.
	Citation *Citation `json:"citation,omitempty"`
}

// Stats reports the sizes of the two halves of the store. They are equal
// whenever the store is consistent.
type Stats struct {
	VectorCount   int `json:"vector_count"`
	MetadataCount int `json:"metadata_count"`
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Answer is the raw output of an extractive QA model.
type Answer struct {
	// Text is a span of the context, or empty when the model found nothing.
	Text string
	// Score is the model's confidence, nominally in [0, 1].
	Score float64
}

// Answerer extracts an answer span for question from passage.
// Implementations must be safe to call from multiple goroutines.
type Answerer interface {
	Answer(ctx context.Context, question, passage string) (Answer, error)
}
