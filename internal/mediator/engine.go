// internal/mediator/engine.go
package mediator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/auticonnect/internal/escalation"
	"github.com/user/auticonnect/internal/generator"
	"github.com/user/auticonnect/internal/policy"
	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/tracker"
	"github.com/user/auticonnect/internal/types"
)

// Extractor computes a per-turn signal. Never fails; degrades instead.
type Extractor interface {
	Extract(ctx context.Context, text string, profile *types.Participant, cc generator.ChatContext) types.Signal
}

// Replier generates mediator replies from an instruction plus context.
type Replier interface {
	Generate(ctx context.Context, instruction string, cc generator.ChatContext) (string, error)
}

// Escalator hands high-risk situations to the human-supervisor pipeline.
type Escalator interface {
	Escalate(ctx context.Context, groupID types.GroupID, participantID types.ParticipantID, triggering []types.TurnID, score float64) (*types.AlertRecord, error)
}

// Mediator instruction prompts and their canned fallbacks. The fallback is
// sent verbatim when the generator is unavailable so an intervention decision
// never goes unacted.
const (
	facilitateInstruction = "A conversa está desequilibrada. Convide, com gentileza, os participantes mais quietos a compartilhar, sem pressionar ninguém."
	redirectInstruction   = "A conversa saiu do tema da atividade em andamento. Redirecione com gentileza para o tema do grupo, valorizando o que já foi dito."
	outreachInstruction   = "Escreva uma mensagem privada curta e acolhedora para %s, perguntando como a pessoa está e oferecendo apoio."
	supportInstruction    = "Responda com empatia e acolhimento à mensagem privada, oferecendo escuta e apoio prático."

	fallbackFacilitate = "Que conversa interessante! Alguém mais gostaria de compartilhar sua experiência?"
	fallbackRedirect   = "Vamos voltar ao tema da nossa atividade? Alguém quer continuar de onde paramos?"
	fallbackOutreach   = "Oi! Percebi que a conversa pode ter ficado intensa. Estou aqui se quiser conversar."
	fallbackSupport    = "Estou aqui para te ouvir. Quer me contar mais sobre o que está acontecendo?"

	holdingMessage = "Obrigado por compartilhar como você está se sentindo. Um Auxiliar Terapêutico já foi avisado e vai falar com você em breve. Você não está sozinho."
)

// privateTopic labels the synthetic session used for one-on-one support
// conversations.
const privateTopic = "apoio individual"

// triggeringLimit caps how many of the participant's recent turns are
// attached to an alert as evidence.
const triggeringLimit = 3

// Deps are the collaborators an Engine is wired with.
type Deps struct {
	Extractor    Extractor
	Replier      Replier
	Tracker      *tracker.Tracker
	Policy       *policy.Policy
	Escalator    Escalator
	Transport    types.Transport
	Participants types.ParticipantStore
	Groups       types.GroupStore
	Activities   types.ActivityStore
	Turns        types.TurnLog
}

// Engine runs the mediation pipeline for one message at a time: extract a
// signal, update tracked risk, decide an action, act. The queue guarantees
// that messages for the same group never run concurrently, so the engine
// holds no locks of its own.
type Engine struct {
	deps Deps
	now  func() time.Time
}

// NewEngine creates an Engine over the given collaborators.
func NewEngine(deps Deps) *Engine {
	return &Engine{deps: deps, now: time.Now}
}

// PrivateGroupID derives the synthetic session key for a participant's
// private support conversation. Private chats flow through the same tracker
// and policy as groups.
func PrivateGroupID(p types.ParticipantID) types.GroupID {
	return types.GroupID("dm:" + string(p))
}

// Process handles one inbound message. Called by the queue's processor.
func (e *Engine) Process(job *Job) error {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if job.Msg.GroupID == "" {
		return e.processPrivate(ctx, job.Msg)
	}
	return e.processGroup(ctx, job.Msg)
}

func (e *Engine) processGroup(ctx context.Context, msg *types.InboundMessage) error {
	profile := e.profile(ctx, msg.Sender)

	topic := ""
	mediatorEnabled := true
	group, err := e.deps.Groups.Get(ctx, msg.GroupID)
	if err == nil {
		topic = group.Theme
		mediatorEnabled = group.MediatorEnabled
	} else {
		slog.Warn("group lookup failed, mediating with empty context",
			"group_id", string(msg.GroupID), "error", err)
	}

	structured := false
	if _, err := e.deps.Activities.ActiveForGroup(ctx, msg.GroupID); err == nil {
		structured = true
	}

	cc := generator.ChatContext{
		Topic:      topic,
		Structured: structured,
		Turns:      e.deps.Tracker.WindowTurns(msg.GroupID),
	}

	sig := e.deps.Extractor.Extract(ctx, msg.Text, profile, cc)
	turn := e.newTurn(msg, sig)
	risk := e.deps.Tracker.Update(msg.GroupID, turn, sig)

	if err := e.deps.Turns.Append(ctx, turn); err != nil {
		// The durable trail is secondary to live mediation.
		slog.Error("append turn failed",
			"group_id", string(msg.GroupID), "turn_id", string(turn.ID), "error", err)
	}

	gs := policy.GroupState{
		Structured:    structured,
		SpeakerCounts: e.deps.Tracker.SpeakerCounts(msg.GroupID),
	}
	action := e.deps.Policy.Decide(risk, sig, gs, e.now())

	slog.Debug("mediation decision",
		"group_id", string(msg.GroupID),
		"participant_id", string(msg.Sender),
		"score", risk.CumulativeScore,
		"degraded", sig.Degraded,
		"action", string(action),
	)

	// Escalation still runs with the mediator muted; only visible group
	// interventions are suppressed.
	if !mediatorEnabled && action != policy.ActionEscalate {
		return nil
	}

	cc.Turns = append(cc.Turns, turn)
	return e.act(ctx, action, msg.GroupID, profile, turn, risk, cc, false)
}

// processPrivate runs a one-on-one support message through the same pipeline
// under a synthetic per-participant session. Unlike group chats, the mediator
// always answers a private message.
func (e *Engine) processPrivate(ctx context.Context, msg *types.InboundMessage) error {
	profile := e.profile(ctx, msg.Sender)
	groupID := PrivateGroupID(msg.Sender)

	cc := generator.ChatContext{
		Topic: privateTopic,
		Turns: e.deps.Tracker.WindowTurns(groupID),
	}

	sig := e.deps.Extractor.Extract(ctx, msg.Text, profile, cc)
	turn := e.newTurn(msg, sig)
	turn.GroupID = groupID
	risk := e.deps.Tracker.Update(groupID, turn, sig)

	if err := e.deps.Turns.Append(ctx, turn); err != nil {
		slog.Error("append turn failed",
			"group_id", string(groupID), "turn_id", string(turn.ID), "error", err)
	}

	action := e.deps.Policy.Decide(risk, sig, policy.GroupState{}, e.now())
	cc.Turns = append(cc.Turns, turn)

	if action == policy.ActionEscalate {
		return e.act(ctx, action, groupID, profile, turn, risk, cc, true)
	}

	reply := e.generateOrFallback(ctx, supportInstruction, fallbackSupport, cc)
	if err := e.deps.Transport.SendPrivateMessage(ctx, profile.ID, reply); err != nil {
		return fmt.Errorf("send support reply: %w", err)
	}
	e.deps.Tracker.MarkIntervention(groupID, profile.ID, e.now())
	return nil
}

func (e *Engine) act(ctx context.Context, action policy.Action, groupID types.GroupID, profile *types.Participant, turn *types.Turn, risk types.RiskState, cc generator.ChatContext, private bool) error {
	switch action {
	case policy.ActionNone:
		return nil

	case policy.ActionFacilitate:
		reply := e.generateOrFallback(ctx, facilitateInstruction, fallbackFacilitate, cc)
		if err := e.deps.Transport.SendGroupMessage(ctx, groupID, reply); err != nil {
			return fmt.Errorf("send facilitation: %w", err)
		}
		e.deps.Tracker.MarkIntervention(groupID, profile.ID, e.now())
		return nil

	case policy.ActionRedirect:
		reply := e.generateOrFallback(ctx, redirectInstruction, fallbackRedirect, cc)
		if err := e.deps.Transport.SendGroupMessage(ctx, groupID, reply); err != nil {
			return fmt.Errorf("send redirect: %w", err)
		}
		e.deps.Tracker.MarkIntervention(groupID, profile.ID, e.now())
		return nil

	case policy.ActionPrivateOutreach:
		name := profile.Name
		if name == "" {
			name = string(profile.ID)
		}
		reply := e.generateOrFallback(ctx, fmt.Sprintf(outreachInstruction, name), fallbackOutreach, cc)
		if err := e.deps.Transport.SendPrivateMessage(ctx, profile.ID, reply); err != nil {
			return fmt.Errorf("send outreach: %w", err)
		}
		e.deps.Tracker.MarkIntervention(groupID, profile.ID, e.now())
		return nil

	case policy.ActionEscalate:
		return e.escalate(ctx, groupID, profile, turn, risk, private)

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (e *Engine) escalate(ctx context.Context, groupID types.GroupID, profile *types.Participant, turn *types.Turn, risk types.RiskState, private bool) error {
	triggering := e.triggeringTurns(groupID, profile.ID)

	_, err := e.deps.Escalator.Escalate(ctx, groupID, profile.ID, triggering, risk.CumulativeScore)
	if errors.Is(err, escalation.ErrSuppressed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("escalate: %w", err)
	}

	e.deps.Tracker.MarkEscalation(groupID, profile.ID, e.now())

	send := func() error {
		if private {
			return e.deps.Transport.SendPrivateMessage(ctx, profile.ID, holdingMessage)
		}
		return e.deps.Transport.SendGroupMessage(ctx, groupID, holdingMessage)
	}
	// The holding reply gets exactly one retry; every other send in the
	// engine fails fast and leaves retries to the transport.
	if err := send(); err != nil {
		slog.Warn("holding reply failed, retrying once",
			"group_id", string(groupID), "error", err)
		if err := send(); err != nil {
			return fmt.Errorf("send holding reply: %w", err)
		}
	}
	return nil
}

// triggeringTurns collects the participant's most recent window turns as
// alert evidence, oldest first.
func (e *Engine) triggeringTurns(groupID types.GroupID, participantID types.ParticipantID) []types.TurnID {
	window := e.deps.Tracker.WindowTurns(groupID)
	var ids []types.TurnID
	for i := len(window) - 1; i >= 0 && len(ids) < triggeringLimit; i-- {
		if window[i].Speaker == participantID {
			ids = append(ids, window[i].ID)
		}
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// generateOrFallback asks the Replier for a reply and falls back to the
// canned message when generation fails.
func (e *Engine) generateOrFallback(ctx context.Context, instruction, fallback string, cc generator.ChatContext) string {
	reply, err := e.deps.Replier.Generate(ctx, instruction, cc)
	if err != nil {
		slog.Warn("reply generation failed, using canned reply", "error", err)
		return fallback
	}
	return reply
}

// profile loads the sender's profile, falling back to an empty one: a store
// hiccup must never stop mediation.
func (e *Engine) profile(ctx context.Context, id types.ParticipantID) *types.Participant {
	p, err := e.deps.Participants.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			slog.Warn("participant lookup failed", "participant_id", string(id), "error", err)
		}
		return &types.Participant{ID: id}
	}
	return p
}

func (e *Engine) newTurn(msg *types.InboundMessage, sig types.Signal) *types.Turn {
	at := msg.At
	if at.IsZero() {
		at = e.now()
	}
	return &types.Turn{
		ID:      types.NewTurnID(),
		GroupID: msg.GroupID,
		Speaker: msg.Sender,
		At:      at,
		Text:    msg.Text,
		Signal:  sig,
	}
}
