// Package budget estimates prompt size for the LLM answerer. Backends use
// different tokenizers, so it relies on a conservative character heuristic:
// 1 token ≈ 4 characters.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead is the per-message framing cost in most chat APIs.
	messageOverhead = 4

	// DefaultMaxPromptTokens is the default input budget for one QA prompt.
	// It fits 4k-context models with room left for the answer.
	DefaultMaxPromptTokens = 3000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := utf8.RuneCountInString(s) / charsPerToken
	if n == 0 && s != "" {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated token count for msgs, summing role
// and content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Clamp shortens s to at most maxTokens estimated tokens, cutting on a
// code point boundary. A non-positive budget yields "".
func Clamp(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * charsPerToken
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// Remaining returns how many tokens are left in maxTokens after fixed.
func Remaining(fixed []*schema.Message, maxTokens int) int {
	return maxTokens - EstimateMessages(fixed)
}
