// internal/state/alerts.go
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/user/auticonnect/internal/types"
)

// AlertStore is a JSON-file-backed store for alert records.
type AlertStore struct {
	path string
	mu   sync.RWMutex
}

// NewAlertStore creates a store at <root>/alerts.json.
func NewAlertStore(root string) *AlertStore {
	return &AlertStore{path: filepath.Join(root, "alerts.json")}
}

func (s *AlertStore) load() ([]*types.AlertRecord, error) {
	var alerts []*types.AlertRecord
	if _, err := readJSON(s.path, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Put inserts or replaces an alert record.
func (s *AlertStore) Put(_ context.Context, alert *types.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.load()
	if err != nil {
		return err
	}
	for i, existing := range alerts {
		if existing.ID == alert.ID {
			alerts[i] = alert
			return writeJSON(s.path, alerts)
		}
	}
	alerts = append(alerts, alert)
	return writeJSON(s.path, alerts)
}

// Get returns the alert with the given ID.
func (s *AlertStore) Get(_ context.Context, id types.AlertID) (*types.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
}

// List returns all alerts, oldest first.
func (s *AlertStore) List(_ context.Context) ([]*types.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts, err := s.load()
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		return []*types.AlertRecord{}, nil
	}
	return alerts, nil
}

// PendingFor returns the most recent pending alert for the given pair, or
// nil if there is none. Used by the escalation pipeline for deduplication.
func (s *AlertStore) PendingFor(_ context.Context, groupID types.GroupID, participantID types.ParticipantID) (*types.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts, err := s.load()
	if err != nil {
		return nil, err
	}

	var latest *types.AlertRecord
	for _, a := range alerts {
		if a.GroupID != groupID || a.ParticipantID != participantID {
			continue
		}
		if a.Status != types.AlertPending {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest, nil
}

// SetStatus updates an alert's status. The acknowledging participant is
// recorded for acknowledged transitions.
func (s *AlertStore) SetStatus(_ context.Context, id types.AlertID, status types.AlertStatus, by types.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.load()
	if err != nil {
		return err
	}
	for _, a := range alerts {
		if a.ID == id {
			a.Status = status
			if status == types.AlertAcknowledged {
				a.AcknowledgedBy = by
			}
			return writeJSON(s.path, alerts)
		}
	}
	return fmt.Errorf("alert %s: %w", id, ErrNotFound)
}
