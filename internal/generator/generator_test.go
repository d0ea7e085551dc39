// internal/generator/generator_test.go
package generator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/user/auticonnect/pkg/llm"
)

type fakeProvider struct {
	content  string
	err      error
	lastMsgs []llm.Message
}

func (f *fakeProvider) Complete(_ context.Context, messages []llm.Message) (*llm.Response, error) {
	f.lastMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func newTestGenerator(t *testing.T, provider llm.Provider) *Generator {
	t.Helper()
	prompts, err := NewPromptBuilder("gpt-4o-mini", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	return New(provider, prompts)
}

func TestParseClassification(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		distress float64
		onTopic  bool
		wantErr  bool
	}{
		{"plain", `{"sentiment":"negative","distress":80,"on_topic":false}`, 80, false, false},
		{"fenced", "```json\n{\"sentiment\":\"neutral\",\"distress\":10,\"on_topic\":true}\n```", 10, true, false},
		{"wrapped in prose", `Here is my analysis: {"sentiment":"neutral","distress":5,"on_topic":true} hope it helps`, 5, true, false},
		{"clamped high", `{"distress":150,"on_topic":true}`, 100, true, false},
		{"clamped low", `{"distress":-3,"on_topic":true}`, 0, true, false},
		{"no json", `I cannot answer that`, 0, false, true},
		{"broken json", `{"distress": }`, 0, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cls, err := parseClassification(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if cls.Distress != tc.distress {
				t.Errorf("distress = %v, want %v", cls.Distress, tc.distress)
			}
			if cls.OnTopic != tc.onTopic {
				t.Errorf("on_topic = %v, want %v", cls.OnTopic, tc.onTopic)
			}
		})
	}
}

func TestClassifyBuildsPrompt(t *testing.T) {
	provider := &fakeProvider{content: `{"sentiment":"negative","distress":70,"on_topic":true}`}
	g := newTestGenerator(t, provider)

	cls, err := g.Classify(context.Background(), "estou mal", ChatContext{Topic: "videogames"})
	if err != nil {
		t.Fatal(err)
	}
	if cls.Distress != 70 {
		t.Errorf("distress = %v, want 70", cls.Distress)
	}

	if len(provider.lastMsgs) != 2 || provider.lastMsgs[0].Role != "system" {
		t.Fatalf("unexpected prompt shape: %+v", provider.lastMsgs)
	}
	if !strings.Contains(provider.lastMsgs[1].Content, "videogames") {
		t.Error("group topic missing from prompt")
	}
	if !strings.Contains(provider.lastMsgs[1].Content, "estou mal") {
		t.Error("new message missing from prompt")
	}
}

func TestClassifyPropagatesProviderError(t *testing.T) {
	g := newTestGenerator(t, &fakeProvider{err: fmt.Errorf("timeout")})

	if _, err := g.Classify(context.Background(), "oi", ChatContext{}); err == nil {
		t.Fatal("expected error from failed provider")
	}
}

func TestGenerateRejectsEmptyReply(t *testing.T) {
	g := newTestGenerator(t, &fakeProvider{content: "   \n"})

	if _, err := g.Generate(context.Background(), "responda", ChatContext{}); err == nil {
		t.Fatal("expected error for empty reply")
	}
}

func TestGenerateTrimsReply(t *testing.T) {
	g := newTestGenerator(t, &fakeProvider{content: "  Vamos conversar!  \n"})

	reply, err := g.Generate(context.Background(), "responda", ChatContext{})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Vamos conversar!" {
		t.Errorf("reply = %q", reply)
	}
}
