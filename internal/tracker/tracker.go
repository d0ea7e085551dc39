// internal/tracker/tracker.go
package tracker

import (
	"math"
	"sync"
	"time"

	"github.com/user/auticonnect/internal/types"
)

// degradedWeight discounts the contribution of heuristic-only signals.
const degradedWeight = 0.5

// Session is the in-memory state of one active group conversation. It
// exclusively owns its turn window and risk map; nothing is shared across
// groups.
type Session struct {
	GroupID      types.GroupID
	Topic        string
	Window       *Window
	Risk         map[types.ParticipantID]*types.RiskState
	LastActiveAt time.Time
}

// Tracker maintains per-group sessions and per-(group, participant) risk
// state. Sessions are created on the first message in a group and evicted on
// explicit close or by the idle sweeper. Updates for the same group arrive
// serialized through the mediator queue; the mutex guards cross-group access
// to the session map itself.
type Tracker struct {
	mu       sync.Mutex
	sessions map[types.GroupID]*Session

	halfLife time.Duration
	capacity int
	now      func() time.Time
}

// New creates a Tracker with the given decay half-life and turn window
// capacity.
func New(halfLife time.Duration, capacity int) *Tracker {
	return &Tracker{
		sessions: make(map[types.GroupID]*Session),
		halfLife: halfLife,
		capacity: capacity,
		now:      time.Now,
	}
}

// Session returns the group's session, creating it on first use.
func (t *Tracker) Session(groupID types.GroupID, topic string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session(groupID, topic)
}

func (t *Tracker) session(groupID types.GroupID, topic string) *Session {
	s, ok := t.sessions[groupID]
	if !ok {
		s = &Session{
			GroupID:      groupID,
			Topic:        topic,
			Window:       NewWindow(t.capacity),
			Risk:         make(map[types.ParticipantID]*types.RiskState),
			LastActiveAt: t.now(),
		}
		t.sessions[groupID] = s
	}
	if topic != "" {
		s.Topic = topic
	}
	return s
}

// Update applies a new turn and its signal: the participant's cumulative
// score is decayed for the elapsed time, the (possibly discounted) anxiety
// score is added and clamped to [0,100], and the turn is pushed into the
// window. Returns a copy of the resulting risk state.
func (t *Tracker) Update(groupID types.GroupID, turn *types.Turn, sig types.Signal) types.RiskState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s := t.session(groupID, "")
	s.LastActiveAt = now

	risk, ok := s.Risk[turn.Speaker]
	if !ok {
		risk = &types.RiskState{}
		s.Risk[turn.Speaker] = risk
	}

	decayed := t.decayedScore(risk, now)

	contribution := sig.AnxietyScore
	if sig.Degraded {
		contribution *= degradedWeight
	}

	risk.CumulativeScore = clampScore(decayed + contribution)
	risk.UpdatedAt = now

	s.Window.Push(turn)

	return *risk
}

// Score returns the decayed cumulative score as of the given time without
// mutating state.
func (t *Tracker) Score(groupID types.GroupID, participantID types.ParticipantID, at time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[groupID]
	if !ok {
		return 0
	}
	risk, ok := s.Risk[participantID]
	if !ok {
		return 0
	}

	return t.decayedScore(risk, at)
}

// clampScore bounds a cumulative score to [0,100].
func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// decayedScore applies exponential half-life decay for the time elapsed
// since the state was last updated.
func (t *Tracker) decayedScore(risk *types.RiskState, now time.Time) float64 {
	if risk.UpdatedAt.IsZero() || risk.CumulativeScore == 0 {
		return risk.CumulativeScore
	}
	elapsed := now.Sub(risk.UpdatedAt)
	if elapsed <= 0 {
		return risk.CumulativeScore
	}
	factor := math.Pow(0.5, elapsed.Seconds()/t.halfLife.Seconds())
	return risk.CumulativeScore * factor
}

// Risk returns a copy of the participant's risk state.
func (t *Tracker) Risk(groupID types.GroupID, participantID types.ParticipantID) types.RiskState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[groupID]; ok {
		if risk, ok := s.Risk[participantID]; ok {
			return *risk
		}
	}
	return types.RiskState{}
}

// MarkIntervention stamps the time of the last mediator intervention.
func (t *Tracker) MarkIntervention(groupID types.GroupID, participantID types.ParticipantID, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(groupID, "")
	risk, ok := s.Risk[participantID]
	if !ok {
		risk = &types.RiskState{}
		s.Risk[participantID] = risk
	}
	risk.LastInterventionAt = at
}

// MarkEscalation stamps the time of the last successful (non-suppressed)
// escalation.
func (t *Tracker) MarkEscalation(groupID types.GroupID, participantID types.ParticipantID, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(groupID, "")
	risk, ok := s.Risk[participantID]
	if !ok {
		risk = &types.RiskState{}
		s.Risk[participantID] = risk
	}
	risk.LastEscalationAt = at
}

// WindowTurns returns a copy of the group's recent turns, oldest first.
func (t *Tracker) WindowTurns(groupID types.GroupID) []*types.Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[groupID]; ok {
		return s.Window.Turns()
	}
	return nil
}

// SpeakerCounts returns per-speaker turn counts in the group's window.
func (t *Tracker) SpeakerCounts(groupID types.GroupID) map[types.ParticipantID]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[groupID]; ok {
		return s.Window.SpeakerCounts()
	}
	return map[types.ParticipantID]int{}
}

// Close drops a group's session, e.g. on an explicit group-close event.
func (t *Tracker) Close(groupID types.GroupID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, groupID)
}

// EvictIdle drops sessions that have been inactive for longer than ttl and
// returns their group IDs.
func (t *Tracker) EvictIdle(ttl time.Duration) []types.GroupID {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var evicted []types.GroupID
	for id, s := range t.sessions {
		if now.Sub(s.LastActiveAt) > ttl {
			delete(t.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
