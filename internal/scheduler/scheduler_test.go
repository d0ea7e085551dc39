package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/types"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTransport) SendGroupMessage(_ context.Context, _ types.GroupID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) SendPrivateMessage(_ context.Context, _ types.ParticipantID, text string) error {
	return nil
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

type fakeCloser struct {
	evicted []types.GroupID
}

func (f *fakeCloser) EvictIdle(ttl time.Duration) []types.GroupID {
	return f.evicted
}

func newTestScheduler(t *testing.T) (*Scheduler, *state.ActivityStore, *fakeTransport, *time.Time) {
	t.Helper()
	dir := t.TempDir()
	activities := state.NewActivityStore(dir)
	groups := state.NewGroupStore(dir)
	transport := &fakeTransport{}

	if err := groups.Put(context.Background(), &types.Group{ID: "g1", Name: "Jogos"}); err != nil {
		t.Fatal(err)
	}

	s := New(activities, groups, transport, &fakeCloser{}, 4*time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, activities, transport, &now
}

func TestSweepSendsReminderOnce(t *testing.T) {
	s, activities, transport, _ := newTestScheduler(t)
	ctx := context.Background()

	err := activities.Put(ctx, &types.Activity{
		ID:          types.NewActivityID(),
		GroupID:     "g1",
		Title:       "Discussão semanal",
		ScheduledAt: time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC),
		Duration:    time.Hour,
		Status:      types.ActivityScheduled,
	})
	if err != nil {
		t.Fatal(err)
	}

	s.sweepActivities()
	s.sweepActivities()

	msgs := transport.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one reminder, got %d: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "Lembrete") {
		t.Errorf("unexpected reminder text: %s", msgs[0])
	}
}

func TestSweepActivatesAndFinishesActivity(t *testing.T) {
	s, activities, transport, now := newTestScheduler(t)
	ctx := context.Background()

	a := &types.Activity{
		ID:          types.NewActivityID(),
		GroupID:     "g1",
		Title:       "Jogo cooperativo",
		ScheduledAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		Duration:    time.Hour,
		Status:      types.ActivityScheduled,
	}
	if err := activities.Put(ctx, a); err != nil {
		t.Fatal(err)
	}

	// Past its start: becomes active and is announced.
	s.sweepActivities()
	got, _ := activities.Get(ctx, a.ID)
	if got.Status != types.ActivityActive {
		t.Fatalf("status = %s, want active", got.Status)
	}

	// Past its end: becomes done.
	*now = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	s.sweepActivities()
	got, _ = activities.Get(ctx, a.ID)
	if got.Status != types.ActivityDone {
		t.Fatalf("status = %s, want done", got.Status)
	}

	msgs := transport.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected start and finish announcements, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "começou") || !strings.Contains(msgs[1], "terminou") {
		t.Errorf("unexpected announcements: %v", msgs)
	}
}

func TestSweepIgnoresDistantActivities(t *testing.T) {
	s, activities, transport, _ := newTestScheduler(t)
	ctx := context.Background()

	err := activities.Put(ctx, &types.Activity{
		ID:          types.NewActivityID(),
		GroupID:     "g1",
		Title:       "Daqui a dois dias",
		ScheduledAt: time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC),
		Status:      types.ActivityScheduled,
	})
	if err != nil {
		t.Fatal(err)
	}

	s.sweepActivities()

	if msgs := transport.messages(); len(msgs) != 0 {
		t.Errorf("expected no messages for a distant activity, got %v", msgs)
	}
}
