package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countMembers(t *testing.T, tdb *testutil.TestDB, roomID uuid.UUID) (counter, rows int) {
	t.Helper()
	err := tdb.DB.Pool.QueryRow(context.Background(), `
		SELECT r.current_members, (SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id)
		FROM rooms r WHERE r.id = $1
	`, roomID).Scan(&counter, &rows)
	require.NoError(t, err)
	return counter, rows
}

func TestRoomService_Integration_CapacityLimit(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	owner := uuid.New()
	room := fixtures.CreateRoom(t, owner, testutil.WithCapacity(3))
	assert.Equal(t, 1, room.CurrentMembers)

	for i := 0; i < 2; i++ {
		_, err := svc.Join(ctx, room.ID, uuid.New())
		require.NoError(t, err)
	}

	_, err := svc.Join(ctx, room.ID, uuid.New())
	assert.ErrorIs(t, err, services.ErrRoomFull)

	counter, rows := countMembers(t, tdb, room.ID)
	assert.Equal(t, 3, counter)
	assert.Equal(t, 3, rows)
}

func TestRoomService_Integration_ConcurrentJoins(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	room := fixtures.CreateRoom(t, uuid.New(), testutil.WithCapacity(5))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Join(ctx, room.ID, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case assert.ErrorIs(t, err, services.ErrRoomFull):
				full++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, joined)
	assert.Equal(t, 16, full)

	counter, rows := countMembers(t, tdb, room.ID)
	assert.Equal(t, 5, counter)
	assert.Equal(t, 5, rows)
}

func TestRoomService_Integration_DuplicateJoin(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	room := fixtures.CreateRoom(t, uuid.New())
	user := uuid.New()

	_, err := svc.Join(ctx, room.ID, user)
	require.NoError(t, err)

	_, err = svc.Join(ctx, room.ID, user)
	assert.ErrorIs(t, err, services.ErrAlreadyMember)

	counter, _ := countMembers(t, tdb, room.ID)
	assert.Equal(t, 2, counter)
}

func TestRoomService_Integration_LeaveDecrements(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	owner, user := uuid.New(), uuid.New()
	room := fixtures.CreateRoom(t, owner)

	_, err := svc.Join(ctx, room.ID, user)
	require.NoError(t, err)

	state, err := svc.Leave(ctx, room.ID, user)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Room.CurrentMembers)
	assert.Nil(t, state.Member(user))

	_, err = svc.Leave(ctx, room.ID, owner)
	assert.ErrorIs(t, err, services.ErrPermissionDenied)
}

func TestRoomService_Integration_ReadinessAndInvite(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	owner, m1, m2 := uuid.New(), uuid.New(), uuid.New()
	room := fixtures.CreateRoom(t, owner)
	for _, id := range []uuid.UUID{m1, m2} {
		_, err := svc.Join(ctx, room.ID, id)
		require.NoError(t, err)
	}

	_, err := svc.SetReady(ctx, room.ID, m1, true, nil)
	require.NoError(t, err)

	_, err = svc.Invite(ctx, room.ID, owner)
	assert.ErrorIs(t, err, services.ErrNotReady)

	_, err = svc.SetReady(ctx, room.ID, m2, true, &m1)
	assert.ErrorIs(t, err, services.ErrPermissionDenied)

	_, err = svc.SetReady(ctx, room.ID, owner, true, &m2)
	require.NoError(t, err)

	state, err := svc.Invite(ctx, room.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusInvited, state.Room.Status)
	assert.NotNil(t, state.Room.InvitedAt)

	_, err = svc.Join(ctx, room.ID, uuid.New())
	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func TestRoomService_Integration_ReviewsAutoClose(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	owner, m1, m2 := uuid.New(), uuid.New(), uuid.New()
	room := fixtures.CreateRoom(t, owner)
	for _, id := range []uuid.UUID{m1, m2} {
		_, err := svc.Join(ctx, room.ID, id)
		require.NoError(t, err)
		_, err = svc.SetReady(ctx, room.ID, id, true, nil)
		require.NoError(t, err)
	}
	_, err := svc.Invite(ctx, room.ID, owner)
	require.NoError(t, err)

	state, err := svc.Review(ctx, room.ID, m1, services.ReviewInput{Rating: 9, Comment: "clean run"})
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusInvited, state.Room.Status)
	assert.Equal(t, 5, state.Review(m1).Rating)

	_, err = svc.Review(ctx, room.ID, m1, services.ReviewInput{Rating: 3})
	assert.ErrorIs(t, err, services.ErrAlreadyReviewed)

	state, err = svc.Review(ctx, room.ID, m2, services.ReviewInput{Rating: 1, Comment: "FAILED: wipe at 10%"})
	require.NoError(t, err)
	review := state.Review(m2)
	require.NotNil(t, review)
	assert.Equal(t, models.OutcomeFailed, review.Outcome)
	require.NotNil(t, review.FailureReason)
	assert.Equal(t, "wipe at 10%", *review.FailureReason)
	assert.Equal(t, models.RoomStatusInvited, state.Room.Status)

	state, err = svc.Review(ctx, room.ID, owner, services.ReviewInput{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusClosed, state.Room.Status)
	assert.NotNil(t, state.Room.ClosedAt)
	assert.Len(t, state.Reviews, 3)

	again, err := svc.Close(ctx, room.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, state.Room.Version, again.Room.Version)
}

func TestRoomService_Integration_Cancel(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	owner, user := uuid.New(), uuid.New()
	crowded := fixtures.CreateRoom(t, owner)
	_, err := svc.Join(ctx, crowded.ID, user)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, crowded.ID, owner)
	assert.ErrorIs(t, err, services.ErrInvalidState)

	lonely := fixtures.CreateRoom(t, owner)
	_, err = svc.Cancel(ctx, lonely.ID, user)
	assert.ErrorIs(t, err, services.ErrPermissionDenied)

	state, err := svc.Cancel(ctx, lonely.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusCanceled, state.Room.Status)
	assert.NotNil(t, state.Room.CanceledAt)

	_, err = svc.Join(ctx, lonely.ID, user)
	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func TestRoomService_Integration_ReadyRejectedAfterStart(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	owner, user := uuid.New(), uuid.New()
	room := fixtures.CreateRoom(t, owner)
	_, err := svc.Join(ctx, room.ID, user)
	require.NoError(t, err)

	fixtures.ExpireRoom(t, room.ID)

	_, err = svc.SetReady(ctx, room.ID, user, true, nil)
	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func TestRoomService_Integration_ReconcileSweep(t *testing.T) {
	tdb, svc := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	ctx := context.Background()

	owner, user := uuid.New(), uuid.New()
	room := fixtures.CreateRoom(t, owner)
	_, err := svc.Join(ctx, room.ID, user)
	require.NoError(t, err)
	_, err = svc.SetReady(ctx, room.ID, user, true, nil)
	require.NoError(t, err)
	_, err = svc.Invite(ctx, room.ID, owner)
	require.NoError(t, err)

	// reviews written behind the coordinator's back leave the room open
	for _, id := range []uuid.UUID{owner, user} {
		_, err := tdb.DB.Pool.Exec(ctx, `
			INSERT INTO room_reviews (room_id, user_id, rating, comment) VALUES ($1, $2, 4, '')
		`, room.ID, id)
		require.NoError(t, err)
	}

	ids, err := svc.ReconcileCandidates(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{room.ID}, ids)

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, closed, err := svc.Reconcile(ctx, room.ID)
			assert.NoError(t, err)
			results[i] = closed
		}(i)
	}
	wg.Wait()

	closedCount := 0
	for _, closed := range results {
		if closed {
			closedCount++
		}
	}
	assert.Equal(t, 1, closedCount)

	state, err := svc.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusClosed, state.Room.Status)

	ids, err = svc.ReconcileCandidates(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
