package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/user/auticonnect/internal/types"
)

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("olá")
	if len(parts) != 1 || parts[0] != "olá" {
		t.Errorf("parts = %v", parts)
	}
}

func TestSplitMessageLong(t *testing.T) {
	text := strings.Repeat("a", maxTelegramMessage+100)
	parts := splitMessage(text)

	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("first part length = %d", len(parts[0]))
	}
	if len(parts[1]) != 100 {
		t.Errorf("second part length = %d", len(parts[1]))
	}
}

func TestSplitMessageKeepsRuneBoundaries(t *testing.T) {
	// 3-byte runes so the 4096-byte limit falls inside a rune.
	text := strings.Repeat("世", 1400)
	parts := splitMessage(text)

	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	for i, part := range parts {
		if !utf8.ValidString(part) {
			t.Errorf("part %d is not valid UTF-8", i)
		}
	}
	if len(parts[0]) != 4095 {
		t.Errorf("first part length = %d, want 4095", len(parts[0]))
	}
	if parts[0]+parts[1] != text {
		t.Error("parts do not reassemble the original text")
	}
}

func TestAlertTextIncludesEmergencyContact(t *testing.T) {
	alert := &types.AlertRecord{
		ID:            "a1",
		GroupID:       "g1",
		ParticipantID: "p1",
		Score:         82,
	}
	subject := &types.Participant{
		ID:               "p1",
		Name:             "Ana",
		EmergencyContact: "Maria (mãe) +55 11 99999-0000",
	}

	text := alertText(alert, subject)
	if !strings.Contains(text, "Ana") {
		t.Errorf("alert text missing participant name: %s", text)
	}
	if !strings.Contains(text, "Contato de emergência: Maria (mãe) +55 11 99999-0000") {
		t.Errorf("alert text missing emergency contact: %s", text)
	}
	if !strings.Contains(text, "/reconhecer a1") {
		t.Errorf("alert text missing acknowledge hint: %s", text)
	}
}

func TestAlertTextWithoutSubject(t *testing.T) {
	alert := &types.AlertRecord{ID: "a2", GroupID: "g1", ParticipantID: "p2", Score: 71}

	text := alertText(alert, nil)
	if !strings.Contains(text, "Participante: p2") {
		t.Errorf("alert text missing participant ID: %s", text)
	}
	if strings.Contains(text, "Contato de emergência") {
		t.Errorf("alert text invented an emergency contact: %s", text)
	}
}

func TestIDMapping(t *testing.T) {
	if got := participantID(42); got != "42" {
		t.Errorf("participantID = %s", got)
	}
	if got := groupID(-100123456); got != "-100123456" {
		t.Errorf("groupID = %s", got)
	}
}
