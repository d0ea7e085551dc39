package tracker

import (
	"fmt"
	"testing"

	"github.com/user/auticonnect/internal/types"
)

func turn(speaker string, text string) *types.Turn {
	return &types.Turn{
		ID:      types.NewTurnID(),
		Speaker: types.ParticipantID(speaker),
		Text:    text,
	}
}

func TestWindowFIFOEviction(t *testing.T) {
	w := NewWindow(3)

	for i := 0; i < 4; i++ {
		w.Push(turn("p1", fmt.Sprintf("msg-%d", i)))
	}

	if w.Len() != 3 {
		t.Fatalf("expected 3 turns after eviction, got %d", w.Len())
	}

	turns := w.Turns()
	if turns[0].Text != "msg-1" {
		t.Errorf("expected oldest turn msg-1, got %s", turns[0].Text)
	}
	if turns[2].Text != "msg-3" {
		t.Errorf("expected newest turn msg-3, got %s", turns[2].Text)
	}
}

func TestWindowTurnsReturnsCopy(t *testing.T) {
	w := NewWindow(5)
	w.Push(turn("p1", "a"))

	turns := w.Turns()
	turns[0] = turn("p2", "mutated")

	if w.Turns()[0].Text != "a" {
		t.Error("mutating the returned slice changed the window")
	}
}

func TestWindowSpeakerCounts(t *testing.T) {
	w := NewWindow(10)
	w.Push(turn("p1", "a"))
	w.Push(turn("p1", "b"))
	w.Push(turn("p2", "c"))

	counts := w.SpeakerCounts()
	if counts["p1"] != 2 {
		t.Errorf("expected p1 count 2, got %d", counts["p1"])
	}
	if counts["p2"] != 1 {
		t.Errorf("expected p2 count 1, got %d", counts["p2"])
	}
}
