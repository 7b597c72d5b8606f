package pipeline

import (
	"os"
	"strconv"
	"time"
)

// ConfigFromEnv resolves pipeline tuning from environment variables.
//
//	DOCQA_TOP_K           = default neighbours per search (default: 5)
//	DOCQA_CHUNK_CHARS     = chunk length bound in code points (default: 800)
//	DOCQA_EMBED_TIMEOUT   = Go duration per embedding call (default: 60s)
//	DOCQA_ANSWER_TIMEOUT  = Go duration per QA call (default: 60s)
func ConfigFromEnv() *Config {
	cfg := &Config{
		TopK:          getEnvInt("DOCQA_TOP_K", 5),
		MaxChars:      getEnvInt("DOCQA_CHUNK_CHARS", 800),
		EmbedTimeout:  getEnvDuration("DOCQA_EMBED_TIMEOUT", 60*time.Second),
		AnswerTimeout: getEnvDuration("DOCQA_ANSWER_TIMEOUT", 60*time.Second),
	}
	out := cfg.withDefaults()
	return &out
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of the named environment
// variable, or fallback if the variable is unset, empty, or not parseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
