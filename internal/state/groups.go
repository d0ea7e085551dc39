// internal/state/groups.go
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/user/auticonnect/internal/types"
)

// GroupStore is a JSON-file-backed group registry.
type GroupStore struct {
	path string
	mu   sync.RWMutex
}

// NewGroupStore creates a store at <root>/groups.json.
func NewGroupStore(root string) *GroupStore {
	return &GroupStore{path: filepath.Join(root, "groups.json")}
}

func (s *GroupStore) load() ([]*types.Group, error) {
	var groups []*types.Group
	if _, err := readJSON(s.path, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Get returns the group with the given ID.
func (s *GroupStore) Get(_ context.Context, id types.GroupID) (*types.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
}

// Put inserts or replaces a group record.
func (s *GroupStore) Put(_ context.Context, g *types.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.load()
	if err != nil {
		return err
	}
	for i, existing := range groups {
		if existing.ID == g.ID {
			groups[i] = g
			return writeJSON(s.path, groups)
		}
	}
	groups = append(groups, g)
	return writeJSON(s.path, groups)
}

// List returns all groups.
func (s *GroupStore) List(_ context.Context) ([]*types.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups, err := s.load()
	if err != nil {
		return nil, err
	}
	if groups == nil {
		return []*types.Group{}, nil
	}
	return groups, nil
}
