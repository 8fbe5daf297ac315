package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/raidroom-api/internal/database"
	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/repository"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	rooms   *repository.RoomRepository
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db, rooms: repository.NewRoomRepository(db)}
}

// CreateRoom creates an active room owned by owner, starting in one hour
func (f *Fixtures) CreateRoom(t *testing.T, owner uuid.UUID, opts ...RoomOption) *models.Room {
	t.Helper()
	f.counter++

	room := &models.Room{
		BossID:     fmt.Sprintf("boss-%d", f.counter),
		StartTime:  time.Now().Add(time.Hour).Truncate(time.Second),
		MaxMembers: 5,
		OwnerID:    owner,
	}

	for _, opt := range opts {
		opt(room)
	}

	if err := f.rooms.Create(context.Background(), room); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	return room
}

// RoomOption configures a test room
type RoomOption func(*models.Room)

// WithCapacity sets the room's max_members
func WithCapacity(max int) RoomOption {
	return func(r *models.Room) {
		r.MaxMembers = max
	}
}

// WithStartTime sets the room's scheduled start
func WithStartTime(start time.Time) RoomOption {
	return func(r *models.Room) {
		r.StartTime = start
	}
}

// WithNote sets the room's note
func WithNote(note string) RoomOption {
	return func(r *models.Room) {
		r.Note = &note
	}
}

// ExpireRoom moves a room's start time into the past, bypassing the service
func (f *Fixtures) ExpireRoom(t *testing.T, roomID uuid.UUID) {
	t.Helper()

	_, err := f.db.Pool.Exec(context.Background(), `
		UPDATE rooms SET start_time = NOW() - INTERVAL '1 minute' WHERE id = $1
	`, roomID)
	if err != nil {
		t.Fatalf("failed to expire room: %v", err)
	}
}
