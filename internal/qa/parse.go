package qa

import (
	"encoding/json"
	"fmt"
	"strings"
)

// llmAnswer is the JSON envelope the model is asked to return.
type llmAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// parseAnswer extracts the JSON envelope from model output. Markdown code
// fences and prose around the object are tolerated.
func parseAnswer(output string) (*llmAnswer, error) {
	s := strings.TrimSpace(output)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	open := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if open < 0 || end < open {
		return nil, fmt.Errorf("qa::parseAnswer: no JSON object in model output")
	}

	out := &llmAnswer{}
	if err := json.Unmarshal([]byte(s[open:end+1]), out); err != nil {
		return nil, fmt.Errorf("qa::parseAnswer: failed to unmarshal model output: %w", err)
	}
	return out, nil
}
