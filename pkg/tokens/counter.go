// Package tokens provides tiktoken-based token counting for prompt sizing.
package tokens

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Counter provides token counting for different models.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a token counter for the specified model. Non-OpenAI
// models approximate with the GPT-4 encoding, which is close enough for
// prompt-size checks.
func NewCounter(model string) (*Counter, error) {
	var tikModel tokenizer.Model
	switch {
	case strings.HasPrefix(model, "gpt-4"):
		tikModel = tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-3.5"):
		tikModel = tokenizer.GPT35Turbo
	default:
		tikModel = tokenizer.GPT4
	}

	codec, err := tokenizer.ForModel(tikModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}

	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in the given text.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return Approximate(text)
	}

	count, err := c.codec.Count(text)
	if err != nil {
		return Approximate(text)
	}

	return count
}

// WithinLimit reports whether text fits in the given token limit.
func (c *Counter) WithinLimit(text string, limit int) bool {
	return c.Count(text) <= limit
}

// Approximate estimates token count without a tokenizer (4 chars per token).
func Approximate(text string) int {
	return len(text) / 4
}
