package rag

import (
	"context"
	"errors"
	"testing"
)

// answerFunc adapts a function to the Answerer interface.
type answerFunc func(ctx context.Context, q, c string) (Answer, error)

func (f answerFunc) Answer(ctx context.Context, q, c string) (Answer, error) { return f(ctx, q, c) }

func TestLocate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		answer    string
		wantStart int
		wantEnd   int
		wantOK    bool
	}{
		{"middle span", "The quick brown fox", "quick brown", 4, 15, true},
		{"absent", "The quick brown fox", "zebra", 0, 0, false},
		{"empty answer", "The quick brown fox", "", 0, 0, false},
		{"first occurrence wins", "ab ab ab", "ab", 0, 2, true},
		{"code point offsets", "café au lait", "au", 5, 7, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			start, end, ok := Locate(tc.text, tc.answer)
			if ok != tc.wantOK || start != tc.wantStart || end != tc.wantEnd {
				t.Errorf("Locate(%q, %q) = (%d, %d, %v), want (%d, %d, %v)",
					tc.text, tc.answer, start, end, ok, tc.wantStart, tc.wantEnd, tc.wantOK)
			}
		})
	}
}

func TestAsk_Answered(t *testing.T) {
	t.Parallel()
	a := answerFunc(func(_ context.Context, _, _ string) (Answer, error) {
		return Answer{Text: "fox", Score: 0.9}, nil
	})

	out := Ask(context.Background(), a, "q", "c")
	got, ok := out.(Answered)
	if !ok {
		t.Fatalf("want Answered, got %T", out)
	}
	if got.Text != "fox" || got.Score != 0.9 {
		t.Errorf("unexpected answer: %+v", got)
	}
}

func TestAsk_ErrorBecomesFailed(t *testing.T) {
	t.Parallel()
	boom := errors.New("model offline")
	a := answerFunc(func(_ context.Context, _, _ string) (Answer, error) {
		return Answer{}, boom
	})

	out := Ask(context.Background(), a, "q", "c")
	failed, ok := out.(AnswerFailed)
	if !ok {
		t.Fatalf("want AnswerFailed, got %T", out)
	}
	if !errors.Is(failed.Err, boom) {
		t.Errorf("want wrapped %v, got %v", boom, failed.Err)
	}
}

func TestAsk_PanicBecomesFailed(t *testing.T) {
	t.Parallel()
	a := answerFunc(func(_ context.Context, _, _ string) (Answer, error) {
		panic("tokenizer exploded")
	})

	out := Ask(context.Background(), a, "q", "c")
	if _, ok := out.(AnswerFailed); !ok {
		t.Fatalf("want AnswerFailed after panic, got %T", out)
	}
}

func TestChunkRecord_Key(t *testing.T) {
	t.Parallel()
	r := ChunkRecord{Source: "manual.pdf", ChunkID: 7}
	if got := r.Key(); got != "manual.pdf#7" {
		t.Errorf("Key() = %q, want %q", got, "manual.pdf#7")
	}
}
