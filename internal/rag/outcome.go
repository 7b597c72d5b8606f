package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Outcome is the result of one QA invocation. It is either Answered or
// AnswerFailed; callers type-switch on it instead of catching errors.
type Outcome interface {
	outcome()
}

// Answered carries a successful model answer.
type Answered struct {
	Text  string
	Score float64
}

// AnswerFailed carries the reason the QA step produced nothing usable.
type AnswerFailed struct {
	Err error
}

func (Answered) outcome()     {}
func (AnswerFailed) outcome() {}

// Ask invokes a with the question and passage and folds every failure mode,
// including a panic inside the backend, into an AnswerFailed.
func Ask(ctx context.Context, a Answerer, question, passage string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = AnswerFailed{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	ans, err := a.Answer(ctx, question, passage)
	if err != nil {
		return AnswerFailed{Err: err}
	}
	return Answered{Text: ans.Text, Score: ans.Score}
}

// Locate finds the first literal occurrence of answer in text and returns
// its half-open code point offsets. ok is false for an empty answer or when
// the answer does not occur in text.
func Locate(text, answer string) (start, end int, ok bool) {
	if answer == "" {
		return 0, 0, false
	}
	i := strings.Index(text, answer)
	if i < 0 {
		return 0, 0, false
	}
	start = utf8.RuneCountInString(text[:i])
	return start, start + utf8.RuneCountInString(answer), true
}
