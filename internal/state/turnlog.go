// internal/state/turnlog.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/auticonnect/internal/types"
)

// TurnLog is a JSONL-backed append-only record of every turn, stored
// per-group in groups/<groupID>/turns.jsonl. The in-memory window is the
// working set; this log is the durable trail ATs can review.
type TurnLog struct {
	root  string
	mu    sync.Mutex
	locks map[types.GroupID]*sync.Mutex
}

// NewTurnLog creates a file-backed TurnLog rooted at the given directory.
func NewTurnLog(root string) *TurnLog {
	return &TurnLog{
		root:  root,
		locks: make(map[types.GroupID]*sync.Mutex),
	}
}

// getLock returns the per-group mutex, creating one if it doesn't exist.
func (l *TurnLog) getLock(groupID types.GroupID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lock, ok := l.locks[groupID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	l.locks[groupID] = lock
	return lock
}

func (l *TurnLog) turnsPath(groupID types.GroupID) string {
	return filepath.Join(l.root, "groups", string(groupID), "turns.jsonl")
}

// Append adds a turn to the group's log.
func (l *TurnLog) Append(_ context.Context, turn *types.Turn) error {
	lock := l.getLock(turn.GroupID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(l.turnsPath(turn.GroupID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create group dir: %w", err)
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	f, err := os.OpenFile(l.turnsPath(turn.GroupID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}

	return nil
}

// Tail returns the last N turns for the given group.
func (l *TurnLog) Tail(_ context.Context, groupID types.GroupID, limit int) ([]*types.Turn, error) {
	lock := l.getLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(l.turnsPath(groupID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	var turns []*types.Turn
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var turn types.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan turns file: %w", err)
	}

	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	return turns, nil
}

// Count returns the number of recorded turns for the given group.
func (l *TurnLog) Count(_ context.Context, groupID types.GroupID) (int64, error) {
	lock := l.getLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(l.turnsPath(groupID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan turns file: %w", err)
	}
	return count, nil
}
