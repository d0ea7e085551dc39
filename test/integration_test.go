//go:build integration

package test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/auticonnect/internal/escalation"
	"github.com/user/auticonnect/internal/generator"
	"github.com/user/auticonnect/internal/mediator"
	"github.com/user/auticonnect/internal/notify"
	"github.com/user/auticonnect/internal/policy"
	sig "github.com/user/auticonnect/internal/signal"
	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/tracker"
	"github.com/user/auticonnect/internal/types"
	"github.com/user/auticonnect/pkg/llm"
)

// scriptedProvider answers classification prompts with a configurable
// distress score and mediator prompts with a fixed reply.
type scriptedProvider struct {
	mu       sync.Mutex
	distress float64
	fail     bool
}

func (p *scriptedProvider) Complete(_ context.Context, messages []llm.Message) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, fmt.Errorf("provider unavailable")
	}
	if strings.Contains(messages[0].Content, "classify") {
		return &llm.Response{Content: fmt.Sprintf(
			`{"sentiment":"negative","distress":%.0f,"on_topic":true}`, p.distress)}, nil
	}
	return &llm.Response{Content: "Estou aqui com vocês."}, nil
}

func (p *scriptedProvider) set(distress float64, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.distress = distress
	p.fail = fail
}

type memTransport struct {
	mu      sync.Mutex
	group   []string
	private []string
}

func (m *memTransport) SendGroupMessage(_ context.Context, _ types.GroupID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.group = append(m.group, text)
	return nil
}

func (m *memTransport) SendPrivateMessage(_ context.Context, _ types.ParticipantID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.private = append(m.private, text)
	return nil
}

func TestMediationEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	participants := state.NewParticipantStore(dir)
	groups := state.NewGroupStore(dir)
	activities := state.NewActivityStore(dir)
	turns := state.NewTurnLog(dir)
	alerts := state.NewAlertStore(dir)

	if err := groups.Put(ctx, &types.Group{ID: "g1", Name: "Jogos", Theme: "videogames", MediatorEnabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := participants.Put(ctx, &types.Participant{ID: "p1", Name: "Ana", Role: types.RoleAutista}); err != nil {
		t.Fatal(err)
	}

	provider := &scriptedProvider{}
	prompts, err := generator.NewPromptBuilder("gpt-4o-mini", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	gen := generator.New(provider, prompts)

	registry := notify.NewRegistry()
	var deliveredMu sync.Mutex
	var delivered []*types.AlertRecord
	registry.Register("test", func(_ context.Context, a *types.AlertRecord) error {
		deliveredMu.Lock()
		defer deliveredMu.Unlock()
		delivered = append(delivered, a)
		return nil
	})

	transport := &memTransport{}
	trk := tracker.New(30*time.Minute, 50)
	pipeline := escalation.New(alerts, registry, 10*time.Minute)

	engine := mediator.NewEngine(mediator.Deps{
		Extractor:    sig.New(gen),
		Replier:      gen,
		Tracker:      trk,
		Policy:       policy.New(70, 10*time.Minute),
		Escalator:    pipeline,
		Transport:    transport,
		Participants: participants,
		Groups:       groups,
		Activities:   activities,
		Turns:        turns,
	})

	queue := mediator.NewQueue(2)
	queue.SetProcessor(engine.Process)
	queue.Start(ctx)
	defer queue.Stop()

	send := func(text string) {
		t.Helper()
		err := queue.Enqueue(&mediator.Job{Msg: &types.InboundMessage{
			Source: "test", GroupID: "g1", Sender: "p1", Text: text, At: time.Now(),
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	// Sustained high distress crosses the threshold on the second message.
	provider.set(100, false)
	send("não aguento mais")
	send("socorro, preciso de ajuda")
	if !queue.WaitIdle(5 * time.Second) {
		t.Fatal("queue did not go idle")
	}
	time.Sleep(100 * time.Millisecond) // alert dispatch is async

	stored, err := alerts.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(stored))
	}

	deliveredMu.Lock()
	if len(delivered) != 1 {
		t.Fatalf("expected 1 delivered alert, got %d", len(delivered))
	}
	deliveredMu.Unlock()

	// A third distressed message within the cooldown is deduplicated.
	send("ainda estou mal")
	if !queue.WaitIdle(5 * time.Second) {
		t.Fatal("queue did not go idle")
	}
	stored, _ = alerts.List(ctx)
	if len(stored) != 1 {
		t.Errorf("cooldown violated: %d alerts", len(stored))
	}

	// The durable turn trail recorded every message.
	count, err := turns.Count(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 logged turns, got %d", count)
	}

	// The supervisor acknowledges through the pipeline.
	if err := pipeline.HandleStatus(ctx, stored[0].ID, types.AlertAcknowledged, "at-1"); err != nil {
		t.Fatal(err)
	}
	got, _ := alerts.Get(ctx, stored[0].ID)
	if got.Status != types.AlertAcknowledged {
		t.Errorf("alert status = %s", got.Status)
	}
}

func TestDegradedModeDiscountsRisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	participants := state.NewParticipantStore(dir)
	groups := state.NewGroupStore(dir)
	if err := groups.Put(ctx, &types.Group{ID: "g1", Name: "Jogos", MediatorEnabled: true}); err != nil {
		t.Fatal(err)
	}

	provider := &scriptedProvider{}
	provider.set(0, true) // classifier down

	prompts, err := generator.NewPromptBuilder("gpt-4o-mini", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}
	gen := generator.New(provider, prompts)

	transport := &memTransport{}
	trk := tracker.New(30*time.Minute, 50)
	alerts := state.NewAlertStore(dir)
	registry := notify.NewRegistry()
	registry.Register("test", func(context.Context, *types.AlertRecord) error { return nil })

	engine := mediator.NewEngine(mediator.Deps{
		Extractor:    sig.New(gen),
		Replier:      gen,
		Tracker:      trk,
		Policy:       policy.New(70, 10*time.Minute),
		Escalator:    escalation.New(alerts, registry, 10*time.Minute),
		Transport:    transport,
		Participants: participants,
		Groups:       groups,
		Activities:   state.NewActivityStore(dir),
		Turns:        state.NewTurnLog(dir),
	})

	queue := mediator.NewQueue(1)
	queue.SetProcessor(engine.Process)
	queue.Start(ctx)
	defer queue.Stop()

	err = queue.Enqueue(&mediator.Job{Msg: &types.InboundMessage{
		Source: "test", GroupID: "g1", Sender: "p1",
		Text: "socorro, estou em pânico, não aguento!!", At: time.Now(),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !queue.WaitIdle(5 * time.Second) {
		t.Fatal("queue did not go idle")
	}

	// The heuristic score is discounted, so one degraded message must not
	// reach the alert threshold.
	stored, err := alerts.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("degraded signal escalated prematurely: %d alerts", len(stored))
	}

	risk := trk.Risk("g1", "p1")
	if risk.CumulativeScore <= 0 {
		t.Error("expected nonzero risk from heuristics")
	}
	if risk.CumulativeScore >= 70 {
		t.Errorf("degraded risk too high: %v", risk.CumulativeScore)
	}
}
