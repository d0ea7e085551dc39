// internal/state/groups_test.go
package state

import (
	"context"
	"errors"
	"testing"

	"github.com/user/auticonnect/internal/types"
)

func TestGroupStore(t *testing.T) {
	store := NewGroupStore(t.TempDir())
	ctx := context.Background()

	g := &types.Group{
		ID:              "-100123",
		Name:            "Jogos",
		Theme:           "videogames",
		Members:         []types.ParticipantID{"p1"},
		MaxMembers:      15,
		MediatorEnabled: true,
	}
	if err := store.Put(ctx, g); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "-100123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Theme != "videogames" || !got.MediatorEnabled {
		t.Errorf("unexpected group: %+v", got)
	}

	g.Members = append(g.Members, "p2")
	if err := store.Put(ctx, g); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, "-100123")
	if len(got.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(got.Members))
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
