// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type GroupID string
type ParticipantID string
type TurnID string
type AlertID string
type ActivityID string

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewAlertID() AlertID {
	return AlertID(uuid.New().String())
}

func NewActivityID() ActivityID {
	return ActivityID(uuid.New().String())
}
