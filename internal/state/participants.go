// internal/state/participants.go
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/user/auticonnect/internal/types"
)

// ParticipantStore is a JSON-file-backed participant registry. Last write
// wins per record; no transactional guarantees.
type ParticipantStore struct {
	path string
	mu   sync.RWMutex
}

// NewParticipantStore creates a store at <root>/participants.json.
func NewParticipantStore(root string) *ParticipantStore {
	return &ParticipantStore{path: filepath.Join(root, "participants.json")}
}

func (s *ParticipantStore) load() ([]*types.Participant, error) {
	var participants []*types.Participant
	if _, err := readJSON(s.path, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// Get returns the participant with the given ID.
func (s *ParticipantStore) Get(_ context.Context, id types.ParticipantID) (*types.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("participant %s: %w", id, ErrNotFound)
}

// Put inserts or replaces a participant record.
func (s *ParticipantStore) Put(_ context.Context, p *types.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants, err := s.load()
	if err != nil {
		return err
	}
	for i, existing := range participants {
		if existing.ID == p.ID {
			participants[i] = p
			return writeJSON(s.path, participants)
		}
	}
	participants = append(participants, p)
	return writeJSON(s.path, participants)
}

// List returns all participants.
func (s *ParticipantStore) List(_ context.Context) ([]*types.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants, err := s.load()
	if err != nil {
		return nil, err
	}
	if participants == nil {
		return []*types.Participant{}, nil
	}
	return participants, nil
}
