package types

import "testing"

func TestActivityTypeValid(t *testing.T) {
	for _, at := range []ActivityType{ActivityDiscussao, ActivityProjeto, ActivityJogo, ActivityCompartilhamento} {
		if !at.Valid() {
			t.Errorf("%s should be valid", at)
		}
	}
	for _, at := range []ActivityType{"", "palestra", "Discussao"} {
		if at.Valid() {
			t.Errorf("%q should not be valid", at)
		}
	}
}
