package signal

import (
	"context"
	"fmt"
	"testing"

	"github.com/user/auticonnect/internal/generator"
	"github.com/user/auticonnect/internal/types"
)

type stubClassifier struct {
	cls *generator.Classification
	err error
}

func (s *stubClassifier) Classify(ctx context.Context, text string, cc generator.ChatContext) (*generator.Classification, error) {
	return s.cls, s.err
}

func profile(triggers ...string) *types.Participant {
	return &types.Participant{ID: "p1", Name: "Ana", AnxietyTriggers: triggers}
}

func TestExtractBlendsClassifierAndTrigger(t *testing.T) {
	e := New(&stubClassifier{cls: &generator.Classification{Distress: 80, OnTopic: true}})

	sig := e.Extract(context.Background(), "hoje falaram de barulho alto", profile("barulho alto"), generator.ChatContext{})

	if sig.Degraded {
		t.Fatal("signal should not be degraded when the classifier answers")
	}
	// 0.65*80 + 0.25*100 = 77
	if sig.AnxietyScore < 76 || sig.AnxietyScore > 78 {
		t.Errorf("expected blended score near 77, got %v", sig.AnxietyScore)
	}
}

func TestExtractDegradedFallback(t *testing.T) {
	e := New(&stubClassifier{err: fmt.Errorf("provider down")})

	sig := e.Extract(context.Background(), "estou em pânico, socorro!!", profile(), generator.ChatContext{})

	if !sig.Degraded {
		t.Fatal("expected degraded signal when classifier fails")
	}
	if sig.AnxietyScore <= 0 {
		t.Error("expected heuristics to produce a nonzero score")
	}
	if sig.TopicDrift {
		t.Error("degraded signal cannot report topic drift")
	}
}

func TestExtractTopicDrift(t *testing.T) {
	e := New(&stubClassifier{cls: &generator.Classification{Distress: 0, OnTopic: false}})

	sig := e.Extract(context.Background(), "mudando de assunto", profile(), generator.ChatContext{})
	if !sig.TopicDrift {
		t.Error("expected topic drift when classifier reports off-topic")
	}
}

func TestTriggerScore(t *testing.T) {
	p := profile("Multidões", "barulho")

	if got := triggerScore("odeio multidões", p); got != 100 {
		t.Errorf("expected case-insensitive trigger match, got %v", got)
	}
	if got := triggerScore("tudo tranquilo", p); got != 0 {
		t.Errorf("expected no trigger match, got %v", got)
	}
}

func TestHeuristicScoreComponents(t *testing.T) {
	if got := heuristicScore("tudo bem", nil); got != 0 {
		t.Errorf("neutral text scored %v", got)
	}

	withLexicon := heuristicScore("estou com muito medo", nil)
	if withLexicon != 25 {
		t.Errorf("expected 25 for one lexicon hit, got %v", withLexicon)
	}

	shouting := heuristicScore("PAREM COM ISSO AGORA", nil)
	if shouting != 20 {
		t.Errorf("expected 20 for shouting, got %v", shouting)
	}

	punctuated := heuristicScore("por que ninguém responde??", nil)
	if punctuated != 15 {
		t.Errorf("expected 15 for repeated punctuation, got %v", punctuated)
	}
}

func TestEngagementDelta(t *testing.T) {
	window := func(speakers ...string) []*types.Turn {
		turns := make([]*types.Turn, len(speakers))
		for i, s := range speakers {
			turns[i] = &types.Turn{Speaker: types.ParticipantID(s)}
		}
		return turns
	}

	if got := engagementDelta("p1", nil); got != 0 {
		t.Errorf("empty window: expected 0, got %d", got)
	}

	// Responding shortly after another participant.
	if got := engagementDelta("p1", window("p2", "p3")); got != 1 {
		t.Errorf("respond case: expected +1, got %d", got)
	}

	// Speaker absent from the last absenceSpan turns.
	absent := window("p2", "p2", "p3", "p2", "p3", "p2", "p3", "p2", "p3", "p2")
	if got := engagementDelta("p1", absent); got != -1 {
		t.Errorf("absence case: expected -1, got %d", got)
	}

	// Speaker present recently, only own turns in the recency window.
	if got := engagementDelta("p1", window("p1", "p1", "p1")); got != 0 {
		t.Errorf("monologue case: expected 0, got %d", got)
	}
}

func TestExtractClampsScore(t *testing.T) {
	e := New(&stubClassifier{cls: &generator.Classification{Distress: 100, OnTopic: true}})

	sig := e.Extract(context.Background(), "SOCORRO ME AJUDA, pânico, medo, desespero!!", profile("pânico"), generator.ChatContext{})
	if sig.AnxietyScore > 100 {
		t.Errorf("score exceeds 100: %v", sig.AnxietyScore)
	}
}
