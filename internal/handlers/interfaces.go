package handlers

import (
	"context"

	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/google/uuid"
)

// RoomServiceInterface defines the methods used by handlers from RoomService
type RoomServiceInterface interface {
	Create(ctx context.Context, ownerID uuid.UUID, input services.CreateRoomInput) (*models.RoomState, error)
	List(ctx context.Context, status string, limit int) ([]models.Room, error)
	Get(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error)
	Join(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error)
	Leave(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error)
	SetReady(ctx context.Context, roomID, callerID uuid.UUID, ready bool, target *uuid.UUID) (*models.RoomState, error)
	Invite(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error)
	Cancel(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error)
	Close(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error)
	Review(ctx context.Context, roomID, userID uuid.UUID, input services.ReviewInput) (*models.RoomState, error)
}

// HealthChecker is satisfied by *database.DB
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Ensure service implements interface
var _ RoomServiceInterface = (*services.RoomService)(nil)
