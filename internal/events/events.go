// Package events publishes room lifecycle events for the notification
// service. Delivery is best effort: a failed publish is logged by the caller
// and never undoes the committed transition.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RoomJoined   = "room.joined"
	RoomLeft     = "room.left"
	RoomReady    = "room.ready"
	RoomInvited  = "room.invited"
	RoomCanceled = "room.canceled"
	RoomClosed   = "room.closed"
	RoomReviewed = "room.reviewed"
)

// RoomEvent is the JSON body of every published message. Type doubles as the
// routing key. ActorID is uuid.Nil for system transitions.
type RoomEvent struct {
	Type       string    `json:"type"`
	RoomID     uuid.UUID `json:"room_id"`
	ActorID    uuid.UUID `json:"actor_id"`
	Status     string    `json:"status"`
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event RoomEvent) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, RoomEvent) error { return nil }
