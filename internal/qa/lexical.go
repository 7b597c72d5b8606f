// Package qa provides extractive question-answering backends for the
// pipeline. Every backend returns a span copied from the passage it is given
// together with a confidence in [0,1].
package qa

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/54b3r/docqa-go/internal/rag"
)

// stopwords are ignored when scoring overlap.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {},
	"i": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "this": {}, "that": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// Lexical answers by picking the passage sentence that shares the most
// content words with the question. It needs no model and is deterministic.
type Lexical struct{}

// NewLexical returns a Lexical answerer.
func NewLexical() *Lexical { return &Lexical{} }

// Answer returns the best-matching sentence of passage verbatim. The score
// is the Ochiai coefficient between the question's and the sentence's
// content words. No overlap yields an empty answer with score 0.
func (l *Lexical) Answer(ctx context.Context, question, passage string) (rag.Answer, error) {
	if err := ctx.Err(); err != nil {
		return rag.Answer{}, err
	}
	q := contentWords(question)
	if len(q) == 0 {
		return rag.Answer{}, nil
	}

	var best rag.Answer
	for _, sent := range sentences(passage) {
		s := contentWords(sent)
		if len(s) == 0 {
			continue
		}
		shared := 0
		for w := range q {
			if _, ok := s[w]; ok {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		score := float64(shared) / math.Sqrt(float64(len(q)*len(s)))
		if score > best.Score {
			best = rag.Answer{Text: sent, Score: score}
		}
	}
	return best, nil
}

// contentWords returns the lower-cased non-stopword tokens of s.
func contentWords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), isSeparator) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// sentences splits text after '.', '!', '?' and at line breaks. Each
// sentence is trimmed and is a substring of text.
func sentences(text string) []string {
	var out []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range text {
		switch r {
		case '\n':
			flush(i)
		case '.', '!', '?':
			next := i + 1
			if next == len(text) || text[next] == ' ' || text[next] == '\n' || text[next] == '\t' {
				flush(next)
			}
		}
	}
	flush(len(text))
	return out
}
