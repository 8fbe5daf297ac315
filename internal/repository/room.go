package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/raidroom-api/internal/database"
	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const roomColumns = `id, boss_id, start_time, max_members, current_members, status, note, owner_id,
	version, invited_at, closed_at, canceled_at, created_at, updated_at`

const memberColumns = `id, room_id, user_id, role, friend_ready, joined_at`

const reviewColumns = `id, room_id, user_id, rating, outcome, failure_reason, comment, created_at`

// RoomTx is a room row locked for the duration of one transaction. Changes
// made through it commit together or not at all.
type RoomTx interface {
	Room() *models.Room
	Members(ctx context.Context) ([]models.RoomMember, error)
	Member(ctx context.Context, userID uuid.UUID) (*models.RoomMember, error)
	ReviewCount(ctx context.Context) (int, error)
	HasReview(ctx context.Context, userID uuid.UUID) (bool, error)
	AddMember(ctx context.Context, userID uuid.UUID, role string) (*models.RoomMember, error)
	RemoveMember(ctx context.Context, userID uuid.UUID) error
	SetFriendReady(ctx context.Context, userID uuid.UUID, ready bool) error
	AddReview(ctx context.Context, review *models.RoomReview) error
	Transition(status string, at time.Time)
}

type RoomRepository struct {
	db *database.DB
}

func NewRoomRepository(db *database.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func scanRoom(row pgx.Row, r *models.Room) error {
	return row.Scan(
		&r.ID, &r.BossID, &r.StartTime, &r.MaxMembers, &r.CurrentMembers, &r.Status, &r.Note, &r.OwnerID,
		&r.Version, &r.InvitedAt, &r.ClosedAt, &r.CanceledAt, &r.CreatedAt, &r.UpdatedAt,
	)
}

// Create inserts the room and its owner membership. room.OwnerID, BossID,
// StartTime, MaxMembers and Note are read; the rest is filled from the
// inserted row.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = scanRoom(tx.QueryRow(ctx, `
		INSERT INTO rooms (boss_id, start_time, max_members, current_members, status, note, owner_id)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		RETURNING `+roomColumns,
		room.BossID, room.StartTime, room.MaxMembers, models.RoomStatusActive, room.Note, room.OwnerID,
	), room)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id, role, friend_ready)
		VALUES ($1, $2, $3, FALSE)
	`, room.ID, room.OwnerID, models.RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to add owner as member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetState reads the room with its members and reviews. The room row is held
// FOR SHARE so the three reads agree with each other.
func (r *RoomRepository) GetState(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var state models.RoomState
	err = scanRoom(tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR SHARE`, roomID), &state.Room)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if state.Members, err = listMembers(ctx, tx, roomID); err != nil {
		return nil, err
	}
	if state.Reviews, err = listReviews(ctx, tx, roomID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &state, nil
}

func (r *RoomRepository) List(ctx context.Context, status string, limit int) ([]models.Room, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms WHERE status = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := scanRoom(rows, &room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// ListReconcileCandidates returns invited rooms that already have at least as
// many reviews as members, oldest update first.
func (r *RoomRepository) ListReconcileCandidates(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT r.id FROM rooms r
		WHERE r.status = $1
		AND r.current_members > 0
		AND (SELECT COUNT(*) FROM room_reviews v WHERE v.room_id = r.id) >= r.current_members
		ORDER BY r.updated_at
		LIMIT $2
	`, models.RoomStatusInvited, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconcile candidates: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update locks the room row, runs fn against it and commits. If fn returns an
// error nothing is written. The returned state is read inside the same
// transaction after fn's changes.
func (r *RoomRepository) Update(ctx context.Context, roomID uuid.UUID, fn func(ctx context.Context, tx RoomTx) error) (*models.RoomState, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked := &lockedRoom{tx: tx}
	err = scanRoom(tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, roomID), &locked.room)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock room: %w", err)
	}
	expectedVersion := locked.room.Version

	if err := fn(ctx, locked); err != nil {
		return nil, err
	}

	if locked.dirty {
		err = tx.QueryRow(ctx, `
			UPDATE rooms
			SET status = $1, current_members = $2, invited_at = $3, closed_at = $4, canceled_at = $5,
			    version = version + 1, updated_at = NOW()
			WHERE id = $6 AND version = $7
			RETURNING version, updated_at
		`, locked.room.Status, locked.room.CurrentMembers, locked.room.InvitedAt, locked.room.ClosedAt,
			locked.room.CanceledAt, roomID, expectedVersion).Scan(&locked.room.Version, &locked.room.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVersionConflict
			}
			return nil, fmt.Errorf("failed to update room: %w", err)
		}
	}

	state := &models.RoomState{Room: locked.room}
	if state.Members, err = listMembers(ctx, tx, roomID); err != nil {
		return nil, err
	}
	if state.Reviews, err = listReviews(ctx, tx, roomID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return state, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listMembers(ctx context.Context, q querier, roomID uuid.UUID) ([]models.RoomMember, error) {
	rows, err := q.Query(ctx, `
		SELECT `+memberColumns+`
		FROM room_members WHERE room_id = $1
		ORDER BY joined_at, id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.RoomMember
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Role, &m.FriendReady, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func listReviews(ctx context.Context, q querier, roomID uuid.UUID) ([]models.RoomReview, error) {
	rows, err := q.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM room_reviews WHERE room_id = $1
		ORDER BY created_at, id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.RoomReview
	for rows.Next() {
		var v models.RoomReview
		if err := rows.Scan(
			&v.ID, &v.RoomID, &v.UserID, &v.Rating, &v.Outcome, &v.FailureReason, &v.Comment, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, v)
	}
	return reviews, rows.Err()
}

type lockedRoom struct {
	tx    pgx.Tx
	room  models.Room
	dirty bool
}

func (l *lockedRoom) Room() *models.Room {
	return &l.room
}

func (l *lockedRoom) Members(ctx context.Context) ([]models.RoomMember, error) {
	return listMembers(ctx, l.tx, l.room.ID)
}

func (l *lockedRoom) Member(ctx context.Context, userID uuid.UUID) (*models.RoomMember, error) {
	var m models.RoomMember
	err := l.tx.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM room_members WHERE room_id = $1 AND user_id = $2
	`, l.room.ID, userID).Scan(&m.ID, &m.RoomID, &m.UserID, &m.Role, &m.FriendReady, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

func (l *lockedRoom) ReviewCount(ctx context.Context) (int, error) {
	var n int
	err := l.tx.QueryRow(ctx, `SELECT COUNT(*) FROM room_reviews WHERE room_id = $1`, l.room.ID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return n, nil
}

func (l *lockedRoom) HasReview(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM room_reviews WHERE room_id = $1 AND user_id = $2)
	`, l.room.ID, userID).Scan(&exists)
	return exists, err
}

// AddMember bumps the counter only while it is below capacity, then inserts
// the membership. Losing the last slot yields ErrCapacityExceeded.
func (l *lockedRoom) AddMember(ctx context.Context, userID uuid.UUID, role string) (*models.RoomMember, error) {
	err := l.tx.QueryRow(ctx, `
		UPDATE rooms SET current_members = current_members + 1
		WHERE id = $1 AND current_members < max_members
		RETURNING current_members
	`, l.room.ID).Scan(&l.room.CurrentMembers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCapacityExceeded
		}
		return nil, fmt.Errorf("failed to increment member count: %w", err)
	}

	var m models.RoomMember
	err = l.tx.QueryRow(ctx, `
		INSERT INTO room_members (room_id, user_id, role, friend_ready)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (room_id, user_id) DO NOTHING
		RETURNING `+memberColumns,
		l.room.ID, userID, role,
	).Scan(&m.ID, &m.RoomID, &m.UserID, &m.Role, &m.FriendReady, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	l.dirty = true
	return &m, nil
}

func (l *lockedRoom) RemoveMember(ctx context.Context, userID uuid.UUID) error {
	result, err := l.tx.Exec(ctx, `
		DELETE FROM room_members WHERE room_id = $1 AND user_id = $2 AND role != $3
	`, l.room.ID, userID, models.RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	err = l.tx.QueryRow(ctx, `
		UPDATE rooms SET current_members = current_members - 1
		WHERE id = $1 AND current_members > 0
		RETURNING current_members
	`, l.room.ID).Scan(&l.room.CurrentMembers)
	if err != nil {
		return fmt.Errorf("failed to decrement member count: %w", err)
	}

	l.dirty = true
	return nil
}

func (l *lockedRoom) SetFriendReady(ctx context.Context, userID uuid.UUID, ready bool) error {
	result, err := l.tx.Exec(ctx, `
		UPDATE room_members SET friend_ready = $1 WHERE room_id = $2 AND user_id = $3
	`, ready, l.room.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to set friend ready: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	l.dirty = true
	return nil
}

func (l *lockedRoom) AddReview(ctx context.Context, review *models.RoomReview) error {
	review.RoomID = l.room.ID
	err := l.tx.QueryRow(ctx, `
		INSERT INTO room_reviews (room_id, user_id, rating, outcome, failure_reason, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, user_id) DO NOTHING
		RETURNING id, created_at
	`, review.RoomID, review.UserID, review.Rating, review.Outcome, review.FailureReason, review.Comment,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add review: %w", err)
	}
	l.dirty = true
	return nil
}

// Transition sets the status and stamps the matching lifecycle timestamp. The
// caller is responsible for checking the edge is legal.
func (l *lockedRoom) Transition(status string, at time.Time) {
	l.room.Status = status
	switch status {
	case models.RoomStatusInvited:
		l.room.InvitedAt = &at
	case models.RoomStatusClosed:
		l.room.ClosedAt = &at
	case models.RoomStatusCanceled:
		l.room.CanceledAt = &at
	}
	l.dirty = true
}
