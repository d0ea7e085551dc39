// internal/generator/prompt.go
package generator

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/auticonnect/internal/types"
)

// PromptBuilder assembles token-budgeted transcripts for classifier and
// generation prompts.
type PromptBuilder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// NewPromptBuilder creates a prompt builder for the given model.
// maxTokens is the model's context window size; reserve is the number of
// tokens kept free for the model's response.
func NewPromptBuilder(model string, maxTokens, reserve int) (*PromptBuilder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &PromptBuilder{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

// countTokens returns the token count for a string.
func (b *PromptBuilder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// budget returns the token budget available for the transcript after the
// system prompt is accounted for.
func (b *PromptBuilder) budget(systemPrompt string) int {
	remaining := b.maxTokens - b.reserve - b.countTokens(systemPrompt)
	// 70% of the remaining window goes to the transcript, the rest is
	// safety margin for the user message and formatting.
	return int(float64(remaining) * 0.7)
}

// Transcript renders the most recent turns that fit the budget, oldest first,
// one "speaker: text" line per turn.
func (b *PromptBuilder) Transcript(turns []*types.Turn, budget int) string {
	if budget <= 0 || len(turns) == 0 {
		return ""
	}

	// Walk backwards from the newest turn so the freshest context survives
	// truncation, then restore chronological order.
	var lines []string
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%s: %s", turns[i].Speaker, turns[i].Text)
		cost := b.countTokens(line)
		if used+cost > budget {
			break
		}
		lines = append(lines, line)
		used += cost
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}
