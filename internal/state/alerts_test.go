// internal/state/alerts_test.go
package state

import (
	"context"
	"testing"
	"time"

	"github.com/user/auticonnect/internal/types"
)

func TestAlertStorePendingFor(t *testing.T) {
	store := NewAlertStore(t.TempDir())
	ctx := context.Background()

	older := &types.AlertRecord{
		ID: types.NewAlertID(), GroupID: "g1", ParticipantID: "p1",
		Score: 75, CreatedAt: time.Now().Add(-time.Hour), Status: types.AlertPending,
	}
	newer := &types.AlertRecord{
		ID: types.NewAlertID(), GroupID: "g1", ParticipantID: "p1",
		Score: 85, CreatedAt: time.Now(), Status: types.AlertPending,
	}
	acked := &types.AlertRecord{
		ID: types.NewAlertID(), GroupID: "g1", ParticipantID: "p2",
		Score: 90, CreatedAt: time.Now(), Status: types.AlertAcknowledged,
	}
	for _, a := range []*types.AlertRecord{older, newer, acked} {
		if err := store.Put(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.PendingFor(ctx, "g1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != newer.ID {
		t.Errorf("expected newest pending alert, got %+v", got)
	}

	// Acknowledged alerts never count as pending.
	if got, _ := store.PendingFor(ctx, "g1", "p2"); got != nil {
		t.Errorf("expected nil for acknowledged-only pair, got %+v", got)
	}

	if got, _ := store.PendingFor(ctx, "g9", "p9"); got != nil {
		t.Errorf("expected nil for unknown pair, got %+v", got)
	}
}

func TestAlertStoreSetStatus(t *testing.T) {
	store := NewAlertStore(t.TempDir())
	ctx := context.Background()

	a := &types.AlertRecord{
		ID: types.NewAlertID(), GroupID: "g1", ParticipantID: "p1",
		Score: 75, CreatedAt: time.Now(), Status: types.AlertPending,
	}
	if err := store.Put(ctx, a); err != nil {
		t.Fatal(err)
	}

	if err := store.SetStatus(ctx, a.ID, types.AlertAcknowledged, "at-1"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.AlertAcknowledged || got.AcknowledgedBy != "at-1" {
		t.Errorf("unexpected alert after ack: %+v", got)
	}

	if err := store.SetStatus(ctx, "missing", types.AlertDelivered, ""); err == nil {
		t.Error("expected error for unknown alert")
	}
}
