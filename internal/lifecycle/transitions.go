// Package lifecycle holds the pure rules of the room state machine: which
// status edges exist, when the friend-readiness gate opens, and when a room
// has collected every review and must close.
package lifecycle

import "github.com/dimitrije/raidroom-api/internal/models"

var edges = map[string][]string{
	models.RoomStatusActive:  {models.RoomStatusInvited, models.RoomStatusCanceled},
	models.RoomStatusInvited: {models.RoomStatusClosed},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to string) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsValidStatus(status string) bool {
	switch status {
	case models.RoomStatusActive, models.RoomStatusInvited, models.RoomStatusClosed, models.RoomStatusCanceled:
		return true
	}
	return false
}
