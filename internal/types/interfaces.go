// internal/types/interfaces.go
package types

import (
	"context"
)

// Transport delivers mediator output. Fire-and-forget: delivery failures are
// reported as errors but the core does not retry them (except the escalation
// holding reply, which gets one retry at the mediator level).
type Transport interface {
	SendGroupMessage(ctx context.Context, groupID GroupID, text string) error
	SendPrivateMessage(ctx context.Context, participantID ParticipantID, text string) error
}

// Notifier hands an alert to the human supervisor channel. Delivery and
// acknowledgment are reported back asynchronously through the status callback
// registered on the escalation pipeline.
type Notifier interface {
	Deliver(ctx context.Context, alert *AlertRecord) error
}

// ParticipantStore persists participant records keyed by ID.
type ParticipantStore interface {
	Get(ctx context.Context, id ParticipantID) (*Participant, error)
	Put(ctx context.Context, p *Participant) error
	List(ctx context.Context) ([]*Participant, error)
}

// GroupStore persists group records keyed by ID.
type GroupStore interface {
	Get(ctx context.Context, id GroupID) (*Group, error)
	Put(ctx context.Context, g *Group) error
	List(ctx context.Context) ([]*Group, error)
}

// ActivityStore persists structured activities.
type ActivityStore interface {
	Get(ctx context.Context, id ActivityID) (*Activity, error)
	Put(ctx context.Context, a *Activity) error
	ListByGroup(ctx context.Context, groupID GroupID) ([]*Activity, error)
	ActiveForGroup(ctx context.Context, groupID GroupID) (*Activity, error)
}

// TurnLog is the append-only per-group turn record.
type TurnLog interface {
	Append(ctx context.Context, turn *Turn) error
	Tail(ctx context.Context, groupID GroupID, limit int) ([]*Turn, error)
	Count(ctx context.Context, groupID GroupID) (int64, error)
}

// AlertStore persists alert records and answers the pending-alert lookup the
// escalation pipeline uses for deduplication.
type AlertStore interface {
	Put(ctx context.Context, alert *AlertRecord) error
	Get(ctx context.Context, id AlertID) (*AlertRecord, error)
	List(ctx context.Context) ([]*AlertRecord, error)
	PendingFor(ctx context.Context, groupID GroupID, participantID ParticipantID) (*AlertRecord, error)
	SetStatus(ctx context.Context, id AlertID, status AlertStatus, by ParticipantID) error
}
