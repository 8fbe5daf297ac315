package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoomStatusActive   = "active"
	RoomStatusInvited  = "invited"
	RoomStatusClosed   = "closed"
	RoomStatusCanceled = "canceled"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

const (
	MinRoomMembers = 2
	MaxRoomMembers = 20
)

type Room struct {
	ID             uuid.UUID  `json:"id"`
	BossID         string     `json:"boss_id"`
	StartTime      time.Time  `json:"start_time"`
	MaxMembers     int        `json:"max_members"`
	CurrentMembers int        `json:"current_members"`
	Status         string     `json:"status"`
	Note           *string    `json:"note,omitempty"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	Version        int        `json:"version"`
	InvitedAt      *time.Time `json:"invited_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CanceledAt     *time.Time `json:"canceled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (r *Room) IsFull() bool {
	return r.CurrentMembers >= r.MaxMembers
}

type RoomMember struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role"`
	FriendReady bool      `json:"friend_ready"`
	JoinedAt    time.Time `json:"joined_at"`
}

func (m *RoomMember) IsOwner() bool {
	return m.Role == RoleOwner
}

// RoomState is everything a snapshot is built from: the room row, its
// memberships in join order and its reviews.
type RoomState struct {
	Room    Room
	Members []RoomMember
	Reviews []RoomReview
}

func (s *RoomState) Member(userID uuid.UUID) *RoomMember {
	for i := range s.Members {
		if s.Members[i].UserID == userID {
			return &s.Members[i]
		}
	}
	return nil
}

func (s *RoomState) Review(userID uuid.UUID) *RoomReview {
	for i := range s.Reviews {
		if s.Reviews[i].UserID == userID {
			return &s.Reviews[i]
		}
	}
	return nil
}
