package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

const (
	MinRating = 1
	MaxRating = 5
)

type RoomReview struct {
	ID            uuid.UUID `json:"id"`
	RoomID        uuid.UUID `json:"room_id"`
	UserID        uuid.UUID `json:"user_id"`
	Rating        int       `json:"rating"`
	Outcome       string    `json:"outcome"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}
