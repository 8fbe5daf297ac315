package testutil

import (
	"context"

	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRoomService mocks the RoomService
type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) state(args mock.Arguments) (*models.RoomState, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoomState), args.Error(1)
}

func (m *MockRoomService) Create(ctx context.Context, ownerID uuid.UUID, input services.CreateRoomInput) (*models.RoomState, error) {
	return m.state(m.Called(ctx, ownerID, input))
}

func (m *MockRoomService) List(ctx context.Context, status string, limit int) ([]models.Room, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *MockRoomService) Get(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID))
}

func (m *MockRoomService) Join(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID, userID))
}

func (m *MockRoomService) Leave(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID, userID))
}

func (m *MockRoomService) SetReady(ctx context.Context, roomID, callerID uuid.UUID, ready bool, target *uuid.UUID) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID, callerID, ready, target))
}

func (m *MockRoomService) Invite(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID, userID))
}

func (m *MockRoomService) Cancel(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID, userID))
}

func (m *MockRoomService) Close(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID, userID))
}

func (m *MockRoomService) Review(ctx context.Context, roomID, userID uuid.UUID, input services.ReviewInput) (*models.RoomState, error) {
	return m.state(m.Called(ctx, roomID, userID, input))
}

// MockHealthChecker mocks database.DB health checks
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Healthy(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
