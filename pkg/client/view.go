package client

import (
	"sync"
	"time"

	"github.com/dimitrije/raidroom-api/pkg/clock"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/google/uuid"
)

// View is one client's local copy of a room. Server snapshots are the source
// of truth; a pending speculative change is layered on top of the last
// confirmed snapshot until the server answers.
type View struct {
	mu        sync.RWMutex
	userID    uuid.UUID
	confirmed *dto.RoomSnapshotResponse
	current   *dto.RoomSnapshotResponse
	start     time.Time
	pending   func(*dto.RoomSnapshotResponse)
}

func NewView(userID uuid.UUID) *View {
	return &View{userID: userID}
}

// Apply installs a server snapshot. Snapshots older than the confirmed one
// are dropped, which covers poll responses arriving out of order.
func (v *View) Apply(s *dto.RoomSnapshotResponse) bool {
	if s == nil {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.confirmed != nil && v.confirmed.Room.ID == s.Room.ID && s.Room.Version < v.confirmed.Room.Version {
		return false
	}
	v.install(s)
	return true
}

// Commit installs the server's answer to a speculative change and drops the
// speculation.
func (v *View) Commit(s *dto.RoomSnapshotResponse) bool {
	v.mu.Lock()
	v.pending = nil
	v.mu.Unlock()
	return v.Apply(s)
}

// Rollback discards any speculation and restores the last confirmed snapshot.
func (v *View) Rollback() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.pending = nil
	if v.confirmed != nil {
		v.current = cloneSnapshot(v.confirmed)
	}
}

// SpeculateReady shows the caller's friend_ready flag as set before the server
// confirms it. It reports false when the caller is not a member of the room.
func (v *View) SpeculateReady(ready bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil || !v.current.Me.IsMember {
		return false
	}

	userID := v.userID
	v.pending = func(s *dto.RoomSnapshotResponse) {
		setFriendReady(s, userID, ready)
	}
	v.pending(v.current)
	return true
}

func (v *View) Pending() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pending != nil
}

// Snapshot returns a copy of what should be rendered, speculation included.
func (v *View) Snapshot() *dto.RoomSnapshotResponse {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.current == nil {
		return nil
	}
	return cloneSnapshot(v.current)
}

// Confirmed returns a copy of the last snapshot the server sent.
func (v *View) Confirmed() *dto.RoomSnapshotResponse {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.confirmed == nil {
		return nil
	}
	return cloneSnapshot(v.confirmed)
}

// Countdown recomputes the countdown locally so the label can tick between
// polls. It reports false until a snapshot has been applied.
func (v *View) Countdown(now time.Time) (clock.Countdown, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.current == nil {
		return clock.Countdown{}, false
	}
	return clock.Evaluate(v.start, now), true
}

func (v *View) install(s *dto.RoomSnapshotResponse) {
	v.confirmed = cloneSnapshot(s)
	v.current = cloneSnapshot(s)
	if v.pending != nil {
		v.pending(v.current)
	}
	if start, err := time.Parse(time.RFC3339, s.Room.StartTime); err == nil {
		v.start = start
	}
}

func setFriendReady(s *dto.RoomSnapshotResponse, userID uuid.UUID, ready bool) {
	readyCount, required := 0, 0
	for i := range s.Members {
		m := &s.Members[i]
		if m.UserID == userID {
			m.FriendReady = ready
		}
		if m.Role == dto.RoleOwner {
			continue
		}
		required++
		if m.FriendReady {
			readyCount++
		}
	}
	if s.Me.IsMember {
		s.Me.FriendReady = ready
	}
	s.Readiness = dto.ReadinessResponse{
		Ready:    readyCount,
		Required: required,
		AllReady: required > 0 && readyCount == required,
	}
}

func cloneSnapshot(s *dto.RoomSnapshotResponse) *dto.RoomSnapshotResponse {
	out := *s
	out.Members = append([]dto.MemberResponse(nil), s.Members...)
	out.Reviews = append([]dto.ReviewResponse(nil), s.Reviews...)
	return &out
}
