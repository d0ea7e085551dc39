// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/auticonnect/internal/types"
)

// reminderLead is how long before its start an activity reminder goes out.
const reminderLead = 15 * time.Minute

// sweepTimeout bounds one full sweep, store reads and sends included.
const sweepTimeout = time.Minute

// SessionCloser is the tracker-side hook for idle-session eviction.
type SessionCloser interface {
	EvictIdle(ttl time.Duration) []types.GroupID
}

// Scheduler drives the time-based side of the service: activity lifecycle
// (reminder, start, finish announcements) and eviction of idle group
// sessions. Everything runs off two cron entries; each sweep re-reads the
// activity store so activities created at runtime are picked up without a
// reload.
type Scheduler struct {
	activities types.ActivityStore
	groups     types.GroupStore
	transport  types.Transport
	closer     SessionCloser
	sessionTTL time.Duration

	cron *cron.Cron

	mu       sync.Mutex
	reminded map[types.ActivityID]bool
	now      func() time.Time
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler over the given stores and transport.
func New(activities types.ActivityStore, groups types.GroupStore, transport types.Transport, closer SessionCloser, sessionTTL time.Duration) *Scheduler {
	return &Scheduler{
		activities: activities,
		groups:     groups,
		transport:  transport,
		closer:     closer,
		sessionTTL: sessionTTL,
		cron:       cron.New(cron.WithParser(cronParser)),
		reminded:   make(map[types.ActivityID]bool),
		now:        time.Now,
	}
}

// Start registers the periodic sweeps and starts the cron ticker.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", s.sweepActivities); err != nil {
		return fmt.Errorf("register activity sweep: %w", err)
	}
	if _, err := s.cron.AddFunc("*/5 * * * *", s.sweepSessions); err != nil {
		return fmt.Errorf("register session sweep: %w", err)
	}
	s.cron.Start()
	slog.Info("scheduler started", "session_ttl", s.sessionTTL.String())
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// sweepActivities advances every group activity through its lifecycle:
// scheduled -> (reminder) -> active -> done, announcing each transition in
// the group chat.
func (s *Scheduler) sweepActivities() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	groups, err := s.groups.List(ctx)
	if err != nil {
		slog.Error("activity sweep: list groups", "error", err)
		return
	}

	now := s.now()
	for _, g := range groups {
		activities, err := s.activities.ListByGroup(ctx, g.ID)
		if err != nil {
			slog.Error("activity sweep: list activities",
				"group_id", string(g.ID), "error", err)
			continue
		}
		for _, a := range activities {
			s.advance(ctx, a, now)
		}
	}
}

func (s *Scheduler) advance(ctx context.Context, a *types.Activity, now time.Time) {
	switch a.Status {
	case types.ActivityScheduled:
		if now.After(a.ScheduledAt) {
			a.Status = types.ActivityActive
			if err := s.activities.Put(ctx, a); err != nil {
				slog.Error("activate activity", "activity_id", string(a.ID), "error", err)
				return
			}
			s.announce(ctx, a.GroupID, fmt.Sprintf(
				"A atividade \"%s\" começou! Todos são bem-vindos a participar.", a.Title))
			return
		}
		if now.Add(reminderLead).After(a.ScheduledAt) && !s.alreadyReminded(a.ID) {
			s.announce(ctx, a.GroupID, fmt.Sprintf(
				"Lembrete: a atividade \"%s\" começa às %s.",
				a.Title, a.ScheduledAt.Format("15:04")))
		}

	case types.ActivityActive:
		if a.Duration > 0 && now.After(a.ScheduledAt.Add(a.Duration)) {
			a.Status = types.ActivityDone
			if err := s.activities.Put(ctx, a); err != nil {
				slog.Error("finish activity", "activity_id", string(a.ID), "error", err)
				return
			}
			s.announce(ctx, a.GroupID, fmt.Sprintf(
				"A atividade \"%s\" terminou. Obrigado a todos que participaram!", a.Title))
			s.forget(a.ID)
		}
	}
}

// alreadyReminded marks and reports the one-shot reminder state for an
// activity.
func (s *Scheduler) alreadyReminded(id types.ActivityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reminded[id] {
		return true
	}
	s.reminded[id] = true
	return false
}

func (s *Scheduler) forget(id types.ActivityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reminded, id)
}

func (s *Scheduler) announce(ctx context.Context, groupID types.GroupID, text string) {
	if err := s.transport.SendGroupMessage(ctx, groupID, text); err != nil {
		slog.Error("activity announcement failed",
			"group_id", string(groupID), "error", err)
	}
}

// sweepSessions evicts group sessions idle for longer than the session TTL.
func (s *Scheduler) sweepSessions() {
	evicted := s.closer.EvictIdle(s.sessionTTL)
	for _, id := range evicted {
		slog.Info("evicted idle session", "group_id", string(id))
	}
}
