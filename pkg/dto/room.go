package dto

import (
	"github.com/google/uuid"
)

// RoleOwner is the MemberResponse.Role of the room owner.
const RoleOwner = "owner"

type CreateRoomRequest struct {
	BossID     string `json:"boss_id"`
	StartTime  string `json:"start_time"`
	MaxMembers int    `json:"max_members"`
	Note       string `json:"note,omitempty"`
}

type SetReadyRequest struct {
	Ready        bool       `json:"ready"`
	TargetUserID *uuid.UUID `json:"target_user_id,omitempty"`
}

type ReviewRequest struct {
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
	Outcome       string `json:"outcome,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type RoomResponse struct {
	ID             uuid.UUID `json:"id"`
	BossID         string    `json:"boss_id"`
	StartTime      string    `json:"start_time"`
	StartTimeLocal string    `json:"start_time_local"`
	MaxMembers     int       `json:"max_members"`
	CurrentMembers int       `json:"current_members"`
	Status         string    `json:"status"`
	Note           *string   `json:"note,omitempty"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Version        int       `json:"version"`
	InvitedAt      *string   `json:"invited_at,omitempty"`
	ClosedAt       *string   `json:"closed_at,omitempty"`
	CanceledAt     *string   `json:"canceled_at,omitempty"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
}

type MemberResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role"`
	FriendReady bool      `json:"friend_ready"`
	HasReviewed bool      `json:"has_reviewed"`
	JoinedAt    string    `json:"joined_at"`
}

type ReviewResponse struct {
	UserID        uuid.UUID `json:"user_id"`
	Rating        int       `json:"rating"`
	Outcome       string    `json:"outcome"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	Comment       string    `json:"comment"`
	CreatedAt     string    `json:"created_at"`
}

type CountdownResponse struct {
	Expired bool   `json:"expired"`
	Label   string `json:"label"`
}

type ReadinessResponse struct {
	Ready    int  `json:"ready"`
	Required int  `json:"required"`
	AllReady bool `json:"all_ready"`
}

type ReviewProgressResponse struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// MembershipResponse describes the caller's own place in the room.
type MembershipResponse struct {
	IsMember    bool `json:"is_member"`
	IsOwner     bool `json:"is_owner"`
	FriendReady bool `json:"friend_ready"`
	HasReviewed bool `json:"has_reviewed"`
}

// RoomSnapshotResponse is the full state a polling client renders from.
type RoomSnapshotResponse struct {
	Room           RoomResponse           `json:"room"`
	Members        []MemberResponse       `json:"members"`
	Reviews        []ReviewResponse       `json:"reviews"`
	Countdown      CountdownResponse      `json:"countdown"`
	Readiness      ReadinessResponse      `json:"readiness"`
	ReviewProgress ReviewProgressResponse `json:"review_progress"`
	Me             MembershipResponse     `json:"me"`
	ServerTime     string                 `json:"server_time"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
