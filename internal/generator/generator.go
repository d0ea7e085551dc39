// internal/generator/generator.go
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/auticonnect/internal/types"
	"github.com/user/auticonnect/pkg/llm"
)

// Classification is the scoring oracle's verdict on a single message.
type Classification struct {
	Sentiment string  `json:"sentiment"`
	Distress  float64 `json:"distress"` // 0-100
	OnTopic   bool    `json:"on_topic"`
}

// ChatContext carries the conversational context a classification or reply
// is conditioned on.
type ChatContext struct {
	Topic      string
	Structured bool
	Turns      []*types.Turn
}

// Generator adapts an LLM provider into the two operations the mediation
// core consumes: message classification and reply generation. Both are
// fallible; callers degrade gracefully when they fail.
type Generator struct {
	provider llm.Provider
	prompts  *PromptBuilder
}

// New creates a Generator over the given provider.
func New(provider llm.Provider, prompts *PromptBuilder) *Generator {
	return &Generator{provider: provider, prompts: prompts}
}

const classifySystem = `You classify messages from a support-group chat for autistic people.
Given the group topic, the recent conversation and one new message, respond
with a single JSON object and nothing else:
{"sentiment": "positive"|"neutral"|"negative", "distress": <0-100>, "on_topic": true|false}
"distress" measures signs of anxiety, overwhelm or crisis in the new message.
"on_topic" is whether the new message relates to the group topic.`

// Classify scores a message for distress, sentiment and topic drift.
func (g *Generator) Classify(ctx context.Context, text string, cc ChatContext) (*Classification, error) {
	sys := classifySystem
	transcript := g.prompts.Transcript(cc.Turns, g.prompts.budget(sys))

	var user strings.Builder
	fmt.Fprintf(&user, "Group topic: %s\n", cc.Topic)
	if transcript != "" {
		fmt.Fprintf(&user, "Recent conversation:\n%s\n", transcript)
	}
	fmt.Fprintf(&user, "New message: %s", text)

	resp, err := g.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: user.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	cls, err := parseClassification(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return cls, nil
}

// parseClassification extracts the JSON object from the model output. Models
// occasionally wrap the JSON in prose or code fences.
func parseClassification(content string) (*Classification, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %q", content)
	}

	var cls Classification
	if err := json.Unmarshal([]byte(content[start:end+1]), &cls); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if cls.Distress < 0 {
		cls.Distress = 0
	}
	if cls.Distress > 100 {
		cls.Distress = 100
	}
	return &cls, nil
}

const mediatorSystem = `Você é o mediador de IA do AutiConnect, um espaço seguro para
pessoas autistas conversarem em grupos temáticos. Escreva em português, de forma
curta, calma e direta. Nunca mencione pontuações, monitoramento ou decisões internas.`

// Generate produces a mediator reply following the given instruction,
// conditioned on the group topic and recent conversation.
func (g *Generator) Generate(ctx context.Context, instruction string, cc ChatContext) (string, error) {
	sys := mediatorSystem
	transcript := g.prompts.Transcript(cc.Turns, g.prompts.budget(sys))

	var user strings.Builder
	fmt.Fprintf(&user, "Tema do grupo: %s\n", cc.Topic)
	if transcript != "" {
		fmt.Fprintf(&user, "Conversa recente:\n%s\n", transcript)
	}
	fmt.Fprintf(&user, "Instrução: %s", instruction)

	resp, err := g.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: user.String()},
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("generate: empty response")
	}
	return strings.TrimSpace(resp.Content), nil
}
