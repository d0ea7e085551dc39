// internal/types/models.go
package types

import (
	"time"
)

// Role identifies which side of the mediation a participant is on.
type Role string

const (
	RoleAutista Role = "autista" // autistic user, the mediated side
	RoleAT      Role = "at"      // Auxiliar Terapêutico, human supervisor
)

// CommunicationStyle is how a participant prefers to be addressed.
type CommunicationStyle string

const (
	StyleDirect   CommunicationStyle = "direta"
	StyleDetailed CommunicationStyle = "detalhada"
)

// Participant is a registered user. AnxietyTriggers bias signal weighting;
// EmergencyContact is an opaque reference owned by the surrounding system.
type Participant struct {
	ID               ParticipantID      `json:"id"`
	Name             string             `json:"name"`
	Role             Role               `json:"role"`
	EmergencyContact string             `json:"emergency_contact,omitempty"`
	AnxietyTriggers  []string           `json:"anxiety_triggers,omitempty"`
	Interests        []string           `json:"interests,omitempty"`
	Style            CommunicationStyle `json:"style,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	LastActiveAt     time.Time          `json:"last_active_at"`
}

// Group is a themed group created by an AT.
type Group struct {
	ID              GroupID         `json:"id"`
	Name            string          `json:"name"`
	Theme           string          `json:"theme"`
	Description     string          `json:"description,omitempty"`
	CreatedBy       ParticipantID   `json:"created_by"`
	Members         []ParticipantID `json:"members"`
	MaxMembers      int             `json:"max_members"`
	MediatorEnabled bool            `json:"mediator_enabled"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ActivityType is one of the structured activity kinds from the AT playbook.
type ActivityType string

const (
	ActivityDiscussao        ActivityType = "discussao"
	ActivityProjeto          ActivityType = "projeto"
	ActivityJogo             ActivityType = "jogo"
	ActivityCompartilhamento ActivityType = "compartilhamento"
)

// Valid reports whether t is one of the defined activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityDiscussao, ActivityProjeto, ActivityJogo, ActivityCompartilhamento:
		return true
	}
	return false
}

// ActivityStatus tracks an activity's lifecycle.
type ActivityStatus string

const (
	ActivityScheduled ActivityStatus = "scheduled"
	ActivityActive    ActivityStatus = "active"
	ActivityDone      ActivityStatus = "done"
)

// Activity is a structured group activity. An active activity makes the
// group context "structured" for redirect decisions.
type Activity struct {
	ID          ActivityID     `json:"id"`
	GroupID     GroupID        `json:"group_id"`
	Type        ActivityType   `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	CreatedBy   ParticipantID  `json:"created_by"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	Duration    time.Duration  `json:"duration"`
	Status      ActivityStatus `json:"status"`
}

// Signal is the per-turn risk/engagement measurement. Produced once when the
// turn is ingested, never mutated afterwards.
type Signal struct {
	AnxietyScore    float64 `json:"anxiety_score"`    // 0-100
	EngagementDelta int     `json:"engagement_delta"` // -1, 0 or +1
	TopicDrift      bool    `json:"topic_drift"`
	Degraded        bool    `json:"degraded"` // heuristic-only, classifier unavailable
}

// Turn is a single message inside a group session. Immutable once created.
type Turn struct {
	ID      TurnID        `json:"id"`
	GroupID GroupID       `json:"group_id"`
	Speaker ParticipantID `json:"speaker"`
	At      time.Time     `json:"at"`
	Text    string        `json:"text"`
	Signal  Signal        `json:"signal"`
}

// RiskState is the decayed cumulative risk for one participant in one group.
// Only the tracker mutates it.
type RiskState struct {
	CumulativeScore    float64   `json:"cumulative_score"` // clamped to [0,100]
	UpdatedAt          time.Time `json:"updated_at"`
	LastInterventionAt time.Time `json:"last_intervention_at,omitempty"`
	LastEscalationAt   time.Time `json:"last_escalation_at,omitempty"`
}

// AlertStatus tracks an alert's delivery lifecycle. Acknowledged is terminal.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertDelivered    AlertStatus = "delivered"
	AlertAcknowledged AlertStatus = "acknowledged"
)

// AlertRecord is the escalation handed to the notification channel. Once
// dispatched, ownership transfers to the channel; status transitions are
// reported back through a callback.
type AlertRecord struct {
	ID              AlertID       `json:"id"`
	GroupID         GroupID       `json:"group_id"`
	ParticipantID   ParticipantID `json:"participant_id"`
	TriggeringTurns []TurnID      `json:"triggering_turns"`
	Score           float64       `json:"score"`
	CreatedAt       time.Time     `json:"created_at"`
	Status          AlertStatus   `json:"status"`
	AcknowledgedBy  ParticipantID `json:"acknowledged_by,omitempty"`
}

// InboundMessage is a message entering the mediation pipeline. GroupID is
// empty for private support conversations.
type InboundMessage struct {
	Source  string        `json:"source"`
	GroupID GroupID       `json:"group_id,omitempty"`
	Sender  ParticipantID `json:"sender"`
	Text    string        `json:"text"`
	At      time.Time     `json:"at"`
}

// GroupContext is the read-only group view handed to the policy and the
// generator when composing replies.
type GroupContext struct {
	GroupID    GroupID
	Topic      string
	Structured bool // an activity is currently active in the group
}
