package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/raidroom-api/internal/cache"
	"github.com/dimitrije/raidroom-api/internal/events"
	"github.com/dimitrije/raidroom-api/internal/lifecycle"
	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/repository"
	"github.com/dimitrije/raidroom-api/pkg/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxBossIDLength = 100
	maxNoteLength   = 500
	defaultPageSize = 50
	maxPageSize     = 200
)

// RoomStore is the persistence contract the coordinator runs against.
// *repository.RoomRepository implements it.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	GetState(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error)
	List(ctx context.Context, status string, limit int) ([]models.Room, error)
	ListReconcileCandidates(ctx context.Context, limit int) ([]uuid.UUID, error)
	Update(ctx context.Context, roomID uuid.UUID, fn func(ctx context.Context, tx repository.RoomTx) error) (*models.RoomState, error)
}

type SnapshotCache interface {
	Get(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error)
	Set(ctx context.Context, state *models.RoomState) (bool, error)
	Delete(ctx context.Context, roomID uuid.UUID) error
}

type CreateRoomInput struct {
	BossID     string
	StartTime  time.Time
	MaxMembers int
	Note       string
}

type ReviewInput struct {
	Rating        int
	Comment       string
	Outcome       string
	FailureReason string
}

// RoomService owns the room lifecycle. Every mutation runs inside one
// repository transaction holding the room row lock, and every check is made
// against that locked row.
type RoomService struct {
	store  RoomStore
	cache  SnapshotCache
	events events.Publisher
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewRoomService(store RoomStore, snapshots SnapshotCache, publisher events.Publisher, log logrus.FieldLogger) *RoomService {
	return &RoomService{
		store:  store,
		cache:  snapshots,
		events: publisher,
		log:    log,
		now:    time.Now,
	}
}

func (s *RoomService) Create(ctx context.Context, ownerID uuid.UUID, input CreateRoomInput) (*models.RoomState, error) {
	bossID := strings.TrimSpace(input.BossID)
	if bossID == "" || len(bossID) > maxBossIDLength {
		return nil, fmt.Errorf("%w: boss_id must be 1-%d characters", ErrInvalidInput, maxBossIDLength)
	}
	if input.MaxMembers < models.MinRoomMembers || input.MaxMembers > models.MaxRoomMembers {
		return nil, fmt.Errorf("%w: max_members must be between %d and %d", ErrInvalidInput, models.MinRoomMembers, models.MaxRoomMembers)
	}
	if input.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: start_time is required", ErrInvalidInput)
	}
	if clock.Evaluate(input.StartTime, s.now()).Expired {
		return nil, fmt.Errorf("%w: start_time must be in the future", ErrInvalidInput)
	}
	note := strings.TrimSpace(input.Note)
	if len(note) > maxNoteLength {
		return nil, fmt.Errorf("%w: note must be at most %d characters", ErrInvalidInput, maxNoteLength)
	}

	room := &models.Room{
		BossID:     bossID,
		StartTime:  input.StartTime,
		MaxMembers: input.MaxMembers,
		OwnerID:    ownerID,
	}
	if note != "" {
		room.Note = &note
	}

	if err := s.store.Create(ctx, room); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": ownerID, "op": "create"}).Info("room created")

	return s.load(ctx, room.ID)
}

func (s *RoomService) List(ctx context.Context, status string, limit int) ([]models.Room, error) {
	if status == "" {
		status = models.RoomStatusActive
	}
	if !lifecycle.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.store.List(ctx, status, limit)
}

// Get returns the authoritative room state. A room that is invited and fully
// reviewed is closed on the way out, so a poll is also a reconciliation pass.
func (s *RoomService) Get(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	state, err := s.cache.Get(ctx, roomID)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.WithError(err).WithField("room_id", roomID).Warn("snapshot cache read failed")
		}
		if state, err = s.load(ctx, roomID); err != nil {
			return nil, err
		}
	}

	if lifecycle.ShouldClose(state.Room.Status, len(state.Members), len(state.Reviews)) {
		reconciled, _, err := s.Reconcile(ctx, roomID)
		if err != nil {
			s.log.WithError(err).WithField("room_id", roomID).Warn("reconcile on read failed")
			return state, nil
		}
		return reconciled, nil
	}
	return state, nil
}

func (s *RoomService) load(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	state, err := s.store.GetState(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	s.remember(ctx, state)
	return state, nil
}

func (s *RoomService) remember(ctx context.Context, state *models.RoomState) {
	if _, err := s.cache.Set(ctx, state); err != nil {
		log := s.log.WithField("room_id", state.Room.ID)
		log.WithError(err).Warn("snapshot cache write failed")
		// a snapshot from before this commit must not outlive it
		if err := s.cache.Delete(ctx, state.Room.ID); err != nil {
			log.WithError(err).Warn("snapshot cache evict failed")
		}
	}
}

func (s *RoomService) Join(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, userID, events.RoomJoined, func(ctx context.Context, tx repository.RoomTx) error {
		room := tx.Room()
		if room.Status != models.RoomStatusActive {
			return fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
		}

		_, err := tx.Member(ctx, userID)
		switch {
		case err == nil:
			return ErrAlreadyMember
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		if room.IsFull() {
			return ErrRoomFull
		}

		_, err = tx.AddMember(ctx, userID, models.RoleMember)
		switch {
		case errors.Is(err, repository.ErrCapacityExceeded):
			return ErrRoomFull
		case errors.Is(err, repository.ErrDuplicate):
			return ErrAlreadyMember
		}
		return err
	})
}

func (s *RoomService) Leave(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, userID, events.RoomLeft, func(ctx context.Context, tx repository.RoomTx) error {
		member, err := s.member(ctx, tx, userID)
		if err != nil {
			return err
		}
		if member.IsOwner() {
			return fmt.Errorf("%w: the owner cannot leave, cancel the room instead", ErrPermissionDenied)
		}
		if status := tx.Room().Status; status != models.RoomStatusActive {
			return fmt.Errorf("%w: room is %s", ErrInvalidState, status)
		}

		if err := tx.RemoveMember(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMembershipNotFound
			}
			return err
		}
		return nil
	})
}

// SetReady sets a friend_ready flag. target defaults to the caller; only the
// owner may name somebody else.
func (s *RoomService) SetReady(ctx context.Context, roomID, callerID uuid.UUID, ready bool, target *uuid.UUID) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, callerID, events.RoomReady, func(ctx context.Context, tx repository.RoomTx) error {
		caller, err := s.member(ctx, tx, callerID)
		if err != nil {
			return err
		}

		targetID := callerID
		if target != nil && *target != callerID {
			if !caller.IsOwner() {
				return fmt.Errorf("%w: only the owner can set another member's readiness", ErrPermissionDenied)
			}
			if _, err := s.member(ctx, tx, *target); err != nil {
				return err
			}
			targetID = *target
		}

		room := tx.Room()
		if room.Status != models.RoomStatusActive {
			return fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
		}
		if clock.Evaluate(room.StartTime, s.now()).Expired {
			return fmt.Errorf("%w: room has expired", ErrInvalidState)
		}

		if err := tx.SetFriendReady(ctx, targetID, ready); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMembershipNotFound
			}
			return err
		}
		return nil
	})
}

func (s *RoomService) Invite(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, userID, events.RoomInvited, func(ctx context.Context, tx repository.RoomTx) error {
		room := tx.Room()
		if room.OwnerID != userID {
			return fmt.Errorf("%w: only the owner can send invites", ErrPermissionDenied)
		}
		if room.Status != models.RoomStatusActive {
			return fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
		}

		members, err := tx.Members(ctx)
		if err != nil {
			return err
		}
		if !lifecycle.AllFriendsReady(members) {
			ready, required := lifecycle.ReadyCounts(members)
			return fmt.Errorf("%w: %d of %d members ready", ErrNotReady, ready, required)
		}

		tx.Transition(models.RoomStatusInvited, s.now())
		return nil
	})
}

func (s *RoomService) Cancel(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, userID, events.RoomCanceled, func(ctx context.Context, tx repository.RoomTx) error {
		room := tx.Room()
		if room.OwnerID != userID {
			return fmt.Errorf("%w: only the owner can cancel", ErrPermissionDenied)
		}
		if room.Status != models.RoomStatusActive {
			return fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
		}
		if room.CurrentMembers >= models.MinRoomMembers {
			return fmt.Errorf("%w: room still has %d members", ErrInvalidState, room.CurrentMembers)
		}

		tx.Transition(models.RoomStatusCanceled, s.now())
		return nil
	})
}

// Close is the owner's explicit close. Closing a closed room succeeds without
// writing anything.
func (s *RoomService) Close(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, userID, events.RoomClosed, func(ctx context.Context, tx repository.RoomTx) error {
		room := tx.Room()
		if room.OwnerID != userID {
			return fmt.Errorf("%w: only the owner can close", ErrPermissionDenied)
		}
		if room.Status == models.RoomStatusClosed {
			return nil
		}
		if !lifecycle.CanTransition(room.Status, models.RoomStatusClosed) {
			return fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
		}

		tx.Transition(models.RoomStatusClosed, s.now())
		return nil
	})
}

func (s *RoomService) Review(ctx context.Context, roomID, userID uuid.UUID, input ReviewInput) (*models.RoomState, error) {
	rating := lifecycle.ClampRating(input.Rating)
	outcome, ok := lifecycle.ResolveOutcome(rating, input.Outcome, input.FailureReason, input.Comment)
	if !ok {
		return nil, fmt.Errorf("%w: outcome must be %q or %q", ErrInvalidInput, models.OutcomeSuccess, models.OutcomeFailed)
	}

	return s.mutate(ctx, roomID, userID, events.RoomReviewed, func(ctx context.Context, tx repository.RoomTx) error {
		if _, err := s.member(ctx, tx, userID); err != nil {
			return err
		}
		room := tx.Room()
		if room.Status != models.RoomStatusInvited {
			return fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
		}

		reviewed, err := tx.HasReview(ctx, userID)
		if err != nil {
			return err
		}
		if reviewed {
			return ErrAlreadyReviewed
		}

		err = tx.AddReview(ctx, &models.RoomReview{
			UserID:        userID,
			Rating:        rating,
			Outcome:       outcome.Outcome,
			FailureReason: outcome.FailureReason,
			Comment:       outcome.Comment,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyReviewed
			}
			return err
		}

		_, err = s.closeIfComplete(ctx, tx)
		return err
	})
}

// Reconcile closes the room if it is invited and every member has reviewed.
// It is safe to call any number of times from any number of callers.
func (s *RoomService) Reconcile(ctx context.Context, roomID uuid.UUID) (*models.RoomState, bool, error) {
	var closed bool
	state, err := s.mutate(ctx, roomID, uuid.Nil, events.RoomClosed, func(ctx context.Context, tx repository.RoomTx) error {
		var err error
		closed, err = s.closeIfComplete(ctx, tx)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return state, closed, nil
}

// ReconcileCandidates lists rooms a sweep should pass to Reconcile.
func (s *RoomService) ReconcileCandidates(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return s.store.ListReconcileCandidates(ctx, limit)
}

func (s *RoomService) closeIfComplete(ctx context.Context, tx repository.RoomTx) (bool, error) {
	room := tx.Room()
	if room.Status != models.RoomStatusInvited {
		return false, nil
	}

	members, err := tx.Members(ctx)
	if err != nil {
		return false, err
	}
	reviews, err := tx.ReviewCount(ctx)
	if err != nil {
		return false, err
	}

	if !lifecycle.ShouldClose(room.Status, len(members), reviews) {
		return false, nil
	}
	tx.Transition(models.RoomStatusClosed, s.now())
	return true, nil
}

func (s *RoomService) member(ctx context.Context, tx repository.RoomTx, userID uuid.UUID) (*models.RoomMember, error) {
	m, err := tx.Member(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}

// mutate runs fn under the room lock, then refreshes the cache and publishes
// events for whatever actually changed. Nothing after the commit can fail the
// call.
func (s *RoomService) mutate(
	ctx context.Context,
	roomID, actorID uuid.UUID,
	eventType string,
	fn func(ctx context.Context, tx repository.RoomTx) error,
) (*models.RoomState, error) {
	var before models.Room
	state, err := s.store.Update(ctx, roomID, func(ctx context.Context, tx repository.RoomTx) error {
		before = *tx.Room()
		return fn(ctx, tx)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRoomNotFound
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, fmt.Errorf("failed to update room: %w", err)
		}
		return nil, err
	}

	if state.Room.Version == before.Version {
		return state, nil
	}

	logger := s.log.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": actorID,
		"op":      eventType,
		"version": state.Room.Version,
	})
	if before.Status != state.Room.Status {
		logger = logger.WithField("status", before.Status+" -> "+state.Room.Status)
	}
	logger.Info("room updated")

	s.remember(ctx, state)

	s.publish(ctx, eventType, actorID, state)
	if eventType != events.RoomClosed && before.Status != models.RoomStatusClosed && state.Room.Status == models.RoomStatusClosed {
		s.publish(ctx, events.RoomClosed, uuid.Nil, state)
	}
	return state, nil
}

func (s *RoomService) publish(ctx context.Context, eventType string, actorID uuid.UUID, state *models.RoomState) {
	err := s.events.Publish(ctx, events.RoomEvent{
		Type:       eventType,
		RoomID:     state.Room.ID,
		ActorID:    actorID,
		Status:     state.Room.Status,
		Version:    state.Room.Version,
		OccurredAt: state.Room.UpdatedAt,
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"room_id": state.Room.ID, "event": eventType}).Warn("failed to publish room event")
	}
}
