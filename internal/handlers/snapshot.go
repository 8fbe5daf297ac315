package handlers

import (
	"time"

	"github.com/dimitrije/raidroom-api/internal/lifecycle"
	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/pkg/clock"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/google/uuid"
)

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}

func roomResponse(room *models.Room, loc *time.Location) dto.RoomResponse {
	return dto.RoomResponse{
		ID:             room.ID,
		BossID:         room.BossID,
		StartTime:      room.StartTime.Format(time.RFC3339),
		StartTimeLocal: clock.FormatLocal(room.StartTime, loc),
		MaxMembers:     room.MaxMembers,
		CurrentMembers: room.CurrentMembers,
		Status:         room.Status,
		Note:           room.Note,
		OwnerID:        room.OwnerID,
		Version:        room.Version,
		InvitedAt:      formatOptional(room.InvitedAt),
		ClosedAt:       formatOptional(room.ClosedAt),
		CanceledAt:     formatOptional(room.CanceledAt),
		CreatedAt:      room.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      room.UpdatedAt.Format(time.RFC3339),
	}
}

// snapshotResponse derives everything a client renders from one consistent
// state: countdown, readiness and review progress, and the caller's flags.
func snapshotResponse(state *models.RoomState, callerID uuid.UUID, now time.Time, loc *time.Location) dto.RoomSnapshotResponse {
	members := make([]dto.MemberResponse, len(state.Members))
	for i, m := range state.Members {
		members[i] = dto.MemberResponse{
			UserID:      m.UserID,
			Role:        m.Role,
			FriendReady: m.FriendReady,
			HasReviewed: state.Review(m.UserID) != nil,
			JoinedAt:    m.JoinedAt.Format(time.RFC3339),
		}
	}

	reviews := make([]dto.ReviewResponse, len(state.Reviews))
	for i, r := range state.Reviews {
		reviews[i] = dto.ReviewResponse{
			UserID:        r.UserID,
			Rating:        r.Rating,
			Outcome:       r.Outcome,
			FailureReason: r.FailureReason,
			Comment:       r.Comment,
			CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		}
	}

	countdown := clock.Evaluate(state.Room.StartTime, now)
	ready, required := lifecycle.ReadyCounts(state.Members)

	var me dto.MembershipResponse
	if m := state.Member(callerID); m != nil {
		me = dto.MembershipResponse{
			IsMember:    true,
			IsOwner:     m.IsOwner(),
			FriendReady: m.FriendReady,
			HasReviewed: state.Review(callerID) != nil,
		}
	}

	return dto.RoomSnapshotResponse{
		Room:      roomResponse(&state.Room, loc),
		Members:   members,
		Reviews:   reviews,
		Countdown: dto.CountdownResponse{Expired: countdown.Expired, Label: countdown.Label},
		Readiness: dto.ReadinessResponse{
			Ready:    ready,
			Required: required,
			AllReady: lifecycle.AllFriendsReady(state.Members),
		},
		ReviewProgress: dto.ReviewProgressResponse{Done: len(state.Reviews), Total: len(state.Members)},
		Me:             me,
		ServerTime:     now.Format(time.RFC3339),
	}
}
