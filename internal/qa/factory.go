package qa

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/docqa-go/internal/provider"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Backend returns the configured QA backend: QA_PROVIDER, default lexical.
func Backend() string {
	if v := os.Getenv("QA_PROVIDER"); v != "" {
		return v
	}
	return "lexical"
}

// NewFromEnv constructs the Answerer selected by QA_PROVIDER.
//
//	QA_PROVIDER       = lexical | llm (default: lexical)
//	QA_PROMPT_TOKENS  = prompt budget for llm (default: 3000)
//
// The llm backend reads its chat model settings through provider.ConfigFromEnv.
func NewFromEnv(ctx context.Context) (rag.Answerer, error) {
	switch b := Backend(); b {
	case "lexical":
		return NewLexical(), nil
	case "llm":
		cm, err := provider.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("qa: %w", err)
		}
		maxTokens, _ := strconv.Atoi(os.Getenv("QA_PROMPT_TOKENS"))
		return NewLLM(cm, &LLMConfig{MaxPromptTokens: maxTokens})
	default:
		return nil, fmt.Errorf("qa: unknown backend %q (valid: lexical, llm)", b)
	}
}
