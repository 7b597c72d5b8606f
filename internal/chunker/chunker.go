// Package chunker splits extracted page text into bounded-length chunks and
// tags each chunk with its source document, page, and per-document sequence
// number. Lengths and offsets are measured in Unicode code points.
package chunker

import (
	"strings"
	"unicode"

	"github.com/54b3r/docqa-go/internal/rag"
)

// DefaultMaxChars is the chunk length bound used when the caller passes a
// non-positive value.
const DefaultMaxChars = 800

// Page is the text of one PDF page as returned by the extraction collaborator.
type Page struct {
	// Number is the 1-based page number.
	Number int
	// Text is the raw extracted text; may be empty.
	Text string
}

// Chunk splits text into pieces of at most maxChars code points.
//
// Each window [start, start+maxChars) that does not reach the end of the text
// is cut after the last newline inside the window, or failing that the last
// space. When neither exists, or the only candidate is the window's first
// character, the window is hard-cut at its full width. Pieces are trimmed and
// empty pieces are dropped; the next window starts at the cut point.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	runes := []rune(text)
	n := len(runes)
	var chunks []string

	for start := 0; start < n; {
		end := start + maxChars
		split := n
		if end < n {
			split = lastIndex(runes, '\n', start, end)
			if split < 0 {
				split = lastIndex(runes, ' ', start, end)
			}
			if split <= start {
				split = end
			}
		}

		piece := strings.TrimFunc(string(runes[start:split]), unicode.IsSpace)
		if piece != "" {
			chunks = append(chunks, piece)
		}
		start = split
	}

	return chunks
}

// lastIndex returns the position of the last r in runes[from:to], or -1.
func lastIndex(runes []rune, r rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// ExtractChunks chunks every page of one document and returns the records in
// page order. chunk_id counts from 0 across the whole document; pages whose
// text is empty or whitespace contribute nothing.
func ExtractChunks(pages []Page, source string, maxChars int) []rag.ChunkRecord {
	var records []rag.ChunkRecord
	chunkID := 0
	for _, p := range pages {
		for _, text := range Chunk(p.Text, maxChars) {
			records = append(records, rag.ChunkRecord{
				Text:    text,
				Source:  source,
				Page:    p.Number,
				ChunkID: chunkID,
			})
			chunkID++
		}
	}
	return records
}
