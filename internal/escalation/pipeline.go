// internal/escalation/pipeline.go
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/auticonnect/internal/types"
)

// ErrSuppressed is returned when a pending alert for the same pair already
// exists within the cooldown window. Suppression is logged, not an error the
// caller needs to surface.
var ErrSuppressed = errors.New("escalation suppressed")

// deliverTimeout bounds a single handoff to the notification channel. The
// channel owns retries beyond that.
const deliverTimeout = 30 * time.Second

// Pipeline composes alert records, deduplicates them, and hands them to the
// notification channel. Ownership of an AlertRecord transfers to the channel
// once dispatched; status transitions come back through HandleStatus.
type Pipeline struct {
	alerts   types.AlertStore
	notifier types.Notifier
	cooldown time.Duration
	now      func() time.Time
}

// New creates a Pipeline over the given alert store and notifier.
func New(alerts types.AlertStore, notifier types.Notifier, cooldown time.Duration) *Pipeline {
	return &Pipeline{
		alerts:   alerts,
		notifier: notifier,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Escalate creates and dispatches an alert for the given participant, or
// returns ErrSuppressed when a pending alert within the cooldown already
// covers the pair. Dispatch to the notifier is fire-and-forget; delivery
// failures are surfaced to the channel's own retry policy, not retried here.
func (p *Pipeline) Escalate(ctx context.Context, groupID types.GroupID, participantID types.ParticipantID, triggering []types.TurnID, score float64) (*types.AlertRecord, error) {
	now := p.now()

	pending, err := p.alerts.PendingFor(ctx, groupID, participantID)
	if err != nil {
		return nil, fmt.Errorf("look up pending alert: %w", err)
	}
	if pending != nil && now.Sub(pending.CreatedAt) < p.cooldown {
		slog.Info("escalation suppressed",
			"group_id", string(groupID),
			"participant_id", string(participantID),
			"pending_alert", string(pending.ID),
		)
		return nil, ErrSuppressed
	}

	alert := &types.AlertRecord{
		ID:              types.NewAlertID(),
		GroupID:         groupID,
		ParticipantID:   participantID,
		TriggeringTurns: triggering,
		Score:           score,
		CreatedAt:       now,
		Status:          types.AlertPending,
	}

	if err := p.alerts.Put(ctx, alert); err != nil {
		return nil, fmt.Errorf("store alert: %w", err)
	}

	slog.Info("escalating to human supervisor",
		"alert_id", string(alert.ID),
		"group_id", string(groupID),
		"participant_id", string(participantID),
		"score", score,
	)

	// Hand off detached from the message's context: the alert outlives the
	// turn that triggered it.
	go func(alert *types.AlertRecord) {
		dctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := p.notifier.Deliver(dctx, alert); err != nil {
			slog.Error("alert delivery failed",
				"alert_id", string(alert.ID), "error", err)
		}
	}(alert)

	return alert, nil
}

// HandleStatus applies a status transition reported back by the notification
// channel. Valid transitions are pending->delivered and
// pending/delivered->acknowledged; acknowledged is terminal.
func (p *Pipeline) HandleStatus(ctx context.Context, id types.AlertID, status types.AlertStatus, by types.ParticipantID) error {
	alert, err := p.alerts.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load alert: %w", err)
	}

	if alert.Status == types.AlertAcknowledged {
		return fmt.Errorf("alert %s already acknowledged", id)
	}

	switch status {
	case types.AlertDelivered:
		if alert.Status != types.AlertPending {
			return fmt.Errorf("alert %s is %s, cannot mark delivered", id, alert.Status)
		}
	case types.AlertAcknowledged:
		// allowed from pending or delivered
	default:
		return fmt.Errorf("invalid alert status transition to %q", status)
	}

	if err := p.alerts.SetStatus(ctx, id, status, by); err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}

	slog.Info("alert status updated",
		"alert_id", string(id), "status", string(status), "by", string(by))
	return nil
}
