package tasks

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileTask_RoundTrip(t *testing.T) {
	roomID := uuid.New()

	task, err := NewReconcileTask(roomID)
	require.NoError(t, err)
	assert.Equal(t, TypeRoomReconcile, task.Type())

	p, err := ParseReconcilePayload(task)
	require.NoError(t, err)
	assert.Equal(t, roomID, p.RoomID)
}

func TestParseReconcilePayload_Invalid(t *testing.T) {
	_, err := ParseReconcilePayload(asynq.NewTask(TypeRoomReconcile, []byte("{")))
	assert.Error(t, err)

	_, err = ParseReconcilePayload(asynq.NewTask(TypeRoomReconcile, []byte(`{}`)))
	assert.Error(t, err)
}

func TestNewSweepTask(t *testing.T) {
	assert.Equal(t, TypeRoomSweep, NewSweepTask().Type())
}
