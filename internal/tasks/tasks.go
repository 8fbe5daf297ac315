package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TypeRoomSweep finds invited rooms that every member has reviewed.
	TypeRoomSweep = "room:sweep"
	// TypeRoomReconcile closes one such room.
	TypeRoomReconcile = "room:reconcile"
)

type ReconcilePayload struct {
	RoomID uuid.UUID `json:"room_id"`
}

func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil, asynq.MaxRetry(0))
}

// NewReconcileTask is unique per room for a minute so overlapping sweeps do
// not queue the same room twice.
func NewReconcileTask(roomID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcilePayload{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRoomReconcile, payload, asynq.MaxRetry(5), asynq.Unique(time.Minute)), nil
}

func ParseReconcilePayload(t *asynq.Task) (ReconcilePayload, error) {
	var p ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.RoomID == uuid.Nil {
		return p, fmt.Errorf("payload has no room_id")
	}
	return p, nil
}
