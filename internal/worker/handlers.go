package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/internal/tasks"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

type Reconciler interface {
	Reconcile(ctx context.Context, roomID uuid.UUID) (*models.RoomState, bool, error)
	ReconcileCandidates(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type SweepHandler struct {
	rooms Reconciler
	queue Enqueuer
	batch int
	log   logrus.FieldLogger
}

func NewSweepHandler(rooms Reconciler, queue Enqueuer, batch int, log logrus.FieldLogger) *SweepHandler {
	return &SweepHandler{rooms: rooms, queue: queue, batch: batch, log: log}
}

func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ids, err := h.rooms.ReconcileCandidates(ctx, h.batch)
	if err != nil {
		return fmt.Errorf("failed to list reconcile candidates: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	enqueued := 0
	for _, id := range ids {
		task, err := tasks.NewReconcileTask(id)
		if err != nil {
			return err
		}
		if _, err := h.queue.EnqueueContext(ctx, task); err != nil {
			if errors.Is(err, asynq.ErrDuplicateTask) {
				continue
			}
			h.log.WithError(err).WithField("room_id", id).Warn("failed to enqueue reconcile task")
			continue
		}
		enqueued++
	}

	h.log.WithFields(logrus.Fields{"task_type": t.Type(), "candidates": len(ids), "enqueued": enqueued}).Info("room sweep finished")
	return nil
}

type ReconcileHandler struct {
	rooms Reconciler
	log   logrus.FieldLogger
}

func NewReconcileHandler(rooms Reconciler, log logrus.FieldLogger) *ReconcileHandler {
	return &ReconcileHandler{rooms: rooms, log: log}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseReconcilePayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	_, closed, err := h.rooms.Reconcile(ctx, p.RoomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			h.log.WithField("room_id", p.RoomID).Warn("reconcile skipped, room no longer exists")
			return nil
		}
		return err
	}

	if closed {
		h.log.WithField("room_id", p.RoomID).Info("room closed by sweep")
	}
	return nil
}
