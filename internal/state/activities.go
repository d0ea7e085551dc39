// internal/state/activities.go
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/user/auticonnect/internal/types"
)

// ActivityStore is a JSON-file-backed store for structured group activities.
type ActivityStore struct {
	path string
	mu   sync.RWMutex
}

// NewActivityStore creates a store at <root>/activities.json.
func NewActivityStore(root string) *ActivityStore {
	return &ActivityStore{path: filepath.Join(root, "activities.json")}
}

func (s *ActivityStore) load() ([]*types.Activity, error) {
	var activities []*types.Activity
	if _, err := readJSON(s.path, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// Get returns the activity with the given ID.
func (s *ActivityStore) Get(_ context.Context, id types.ActivityID) (*types.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range activities {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
}

// Put inserts or replaces an activity record.
func (s *ActivityStore) Put(_ context.Context, a *types.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activities, err := s.load()
	if err != nil {
		return err
	}
	for i, existing := range activities {
		if existing.ID == a.ID {
			activities[i] = a
			return writeJSON(s.path, activities)
		}
	}
	activities = append(activities, a)
	return writeJSON(s.path, activities)
}

// ListByGroup returns all activities for a group.
func (s *ActivityStore) ListByGroup(_ context.Context, groupID types.GroupID) ([]*types.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities, err := s.load()
	if err != nil {
		return nil, err
	}
	out := []*types.Activity{}
	for _, a := range activities {
		if a.GroupID == groupID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ActiveForGroup returns the group's currently active activity, or
// ErrNotFound if none is active.
func (s *ActivityStore) ActiveForGroup(_ context.Context, groupID types.GroupID) (*types.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range activities {
		if a.GroupID == groupID && a.Status == types.ActivityActive {
			return a, nil
		}
	}
	return nil, fmt.Errorf("active activity for group %s: %w", groupID, ErrNotFound)
}
