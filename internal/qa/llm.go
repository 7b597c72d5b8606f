package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/budget"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// systemPrompt instructs the model to behave as an extractive reader.
const systemPrompt = `You are an extractive question-answering engine.

You receive a PASSAGE and a QUESTION. Answer with the shortest span of the
PASSAGE that answers the QUESTION, copied exactly character for character.
Never paraphrase, never add words, never answer from outside knowledge.

Respond with ONLY a JSON object in this exact shape, no markdown fencing:

{"answer": "<verbatim span from the passage, or empty string>", "score": <confidence between 0 and 1>}

If the passage does not contain the answer, return {"answer": "", "score": 0}.`

// LLMConfig holds the settings for an LLM answerer.
type LLMConfig struct {
	// MaxPromptTokens is the estimated input budget. The question is
	// shortened to fit. Defaults to budget.DefaultMaxPromptTokens if zero.
	MaxPromptTokens int
}

// LLM answers with a chat model prompted for a verbatim span. Spans that do
// not occur in the passage are discarded so every answer stays extractive.
type LLM struct {
	model           model.BaseChatModel
	maxPromptTokens int
}

// NewLLM constructs an LLM answerer around cm.
func NewLLM(cm model.BaseChatModel, cfg *LLMConfig) (*LLM, error) {
	if cm == nil {
		return nil, fmt.Errorf("qa: chat model must not be nil")
	}
	limit := budget.DefaultMaxPromptTokens
	if cfg != nil && cfg.MaxPromptTokens > 0 {
		limit = cfg.MaxPromptTokens
	}
	return &LLM{model: cm, maxPromptTokens: limit}, nil
}

// Answer prompts the model and validates its span against passage.
func (a *LLM) Answer(ctx context.Context, question, passage string) (rag.Answer, error) {
	log := logging.FromContext(ctx)

	fixed := a.buildMessages(passage, "")
	remaining := budget.Remaining(fixed, a.maxPromptTokens)
	if remaining <= 0 {
		return rag.Answer{}, fmt.Errorf("qa: passage alone exceeds the %d token prompt budget", a.maxPromptTokens)
	}
	q := budget.Clamp(question, remaining)
	if q != question {
		log.Warn("qa: question shortened to fit prompt budget",
			slog.Int("max_tokens", a.maxPromptTokens),
		)
	}

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "docqa-answer",
		Type:      "extractive",
		Component: components.ComponentOfChatModel,
	})
	msg, err := a.model.Generate(ctx, a.buildMessages(passage, q))
	if err != nil {
		return rag.Answer{}, fmt.Errorf("qa: generate failed: %w", err)
	}
	if msg == nil {
		return rag.Answer{}, fmt.Errorf("qa: model returned no message")
	}

	parsed, err := parseAnswer(msg.Content)
	if err != nil {
		return rag.Answer{}, err
	}

	span := strings.TrimSpace(parsed.Answer)
	if span == "" {
		return rag.Answer{}, nil
	}
	if !strings.Contains(passage, span) {
		log.Debug("qa: discarding non-verbatim answer", slog.String("answer", span))
		return rag.Answer{}, nil
	}
	return rag.Answer{Text: span, Score: clamp01(parsed.Score)}, nil
}

// buildMessages renders the prompt for one question.
func (a *LLM) buildMessages(passage, question string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("PASSAGE:\n" + passage + "\n\nQUESTION: " + question),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
