// internal/policy/policy.go
package policy

import (
	"time"

	"github.com/user/auticonnect/internal/types"
)

// Action is the mediator's decision for a single turn.
type Action string

const (
	ActionNone            Action = "none"
	ActionFacilitate      Action = "facilitate"
	ActionRedirect        Action = "redirect"
	ActionPrivateOutreach Action = "private_outreach"
	ActionEscalate        Action = "escalate"
)

// GroupState is the read-only group snapshot the policy decides against.
type GroupState struct {
	Structured    bool
	SpeakerCounts map[types.ParticipantID]int
}

// imbalanceFactor: one participant dominating the window by more than this
// multiple of the average turn count triggers facilitation.
const imbalanceFactor = 3.0

// Policy maps tracked risk state plus a fresh signal to an Action. Decide is
// a pure function: no clock reads, no mutation, no randomness. Escalation
// dominates every other condition.
type Policy struct {
	threshold float64
	cooldown  time.Duration
}

// New creates a Policy with the given alert threshold and escalation
// cooldown. The threshold is validated at startup by the config layer.
func New(threshold float64, cooldown time.Duration) *Policy {
	return &Policy{threshold: threshold, cooldown: cooldown}
}

// Decide evaluates the decision table top-down; the first match wins.
func (p *Policy) Decide(risk types.RiskState, sig types.Signal, gs GroupState, now time.Time) Action {
	if risk.CumulativeScore >= p.threshold && p.cooldownElapsed(risk, now) {
		return ActionEscalate
	}

	if risk.CumulativeScore >= p.threshold/2 {
		return ActionPrivateOutreach
	}

	if sig.TopicDrift && gs.Structured {
		return ActionRedirect
	}

	if imbalanced(gs.SpeakerCounts) {
		return ActionFacilitate
	}

	return ActionNone
}

func (p *Policy) cooldownElapsed(risk types.RiskState, now time.Time) bool {
	if risk.LastEscalationAt.IsZero() {
		return true
	}
	return now.Sub(risk.LastEscalationAt) >= p.cooldown
}

// imbalanced reports whether one speaker holds more than imbalanceFactor
// times the average turn count. Needs at least two speakers to be
// meaningful.
func imbalanced(counts map[types.ParticipantID]int) bool {
	if len(counts) < 2 {
		return false
	}
	var total int
	for _, c := range counts {
		total += c
	}
	avg := float64(total) / float64(len(counts))
	for _, c := range counts {
		if float64(c) > imbalanceFactor*avg {
			return true
		}
	}
	return false
}
