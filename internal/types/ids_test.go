package types

import "testing"

func TestNewIDsAreUnique(t *testing.T) {
	if NewTurnID() == NewTurnID() {
		t.Error("turn IDs collide")
	}
	if NewAlertID() == NewAlertID() {
		t.Error("alert IDs collide")
	}
	if NewActivityID() == NewActivityID() {
		t.Error("activity IDs collide")
	}
}

func TestNewIDsAreNonEmpty(t *testing.T) {
	if NewTurnID() == "" || NewAlertID() == "" || NewActivityID() == "" {
		t.Error("generated ID is empty")
	}
}
