package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dimitrije/raidroom-api/internal/cache"
	"github.com/dimitrije/raidroom-api/internal/events"
	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/dimitrije/raidroom-api/internal/repository"
	"github.com/google/uuid"
)

// fakeStore is an in-memory RoomStore. Update holds a single mutex for the
// whole callback, which stands in for the row lock, and works on a copy so a
// failing callback leaves nothing behind.
type fakeStore struct {
	mu        sync.Mutex
	rooms     map[uuid.UUID]*fakeRoom
	updateErr error
}

type fakeRoom struct {
	room    models.Room
	members []models.RoomMember
	reviews []models.RoomReview
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: make(map[uuid.UUID]*fakeRoom)}
}

func (r *fakeRoom) clone() *fakeRoom {
	return &fakeRoom{
		room:    r.room,
		members: append([]models.RoomMember(nil), r.members...),
		reviews: append([]models.RoomReview(nil), r.reviews...),
	}
}

func (r *fakeRoom) state() *models.RoomState {
	c := r.clone()
	return &models.RoomState{Room: c.room, Members: c.members, Reviews: c.reviews}
}

func (s *fakeStore) Create(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	room.ID = uuid.New()
	room.CurrentMembers = 1
	room.Status = models.RoomStatusActive
	room.Version = 1
	room.CreatedAt = now
	room.UpdatedAt = now

	s.rooms[room.ID] = &fakeRoom{
		room: *room,
		members: []models.RoomMember{
			{ID: uuid.New(), RoomID: room.ID, UserID: room.OwnerID, Role: models.RoleOwner, JoinedAt: now},
		},
	}
	return nil
}

func (s *fakeStore) GetState(_ context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.state(), nil
}

func (s *fakeStore) List(_ context.Context, status string, limit int) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rooms []models.Room
	for _, r := range s.rooms {
		if r.room.Status == status {
			rooms = append(rooms, r.room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].StartTime.After(rooms[j].StartTime) })
	if len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

func (s *fakeStore) ListReconcileCandidates(_ context.Context, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, r := range s.rooms {
		if r.room.Status == models.RoomStatusInvited && len(r.members) > 0 && len(r.reviews) >= len(r.members) {
			ids = append(ids, id)
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *fakeStore) Update(ctx context.Context, roomID uuid.UUID, fn func(ctx context.Context, tx repository.RoomTx) error) (*models.RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return nil, s.updateErr
	}

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	tx := &fakeTx{data: r.clone()}
	if err := fn(ctx, tx); err != nil {
		return nil, err
	}
	if tx.dirty {
		tx.data.room.Version++
		tx.data.room.UpdatedAt = time.Now()
	}
	s.rooms[roomID] = tx.data
	return tx.data.state(), nil
}

// seed inserts a room directly, bypassing the coordinator.
func (s *fakeStore) seed(status string, maxMembers int, start time.Time, owner uuid.UUID, members ...uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	id := uuid.New()
	r := &fakeRoom{room: models.Room{
		ID:         id,
		BossID:     "boss-150",
		StartTime:  start,
		MaxMembers: maxMembers,
		Status:     status,
		OwnerID:    owner,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
	r.members = append(r.members, models.RoomMember{ID: uuid.New(), RoomID: id, UserID: owner, Role: models.RoleOwner, JoinedAt: now})
	for _, m := range members {
		r.members = append(r.members, models.RoomMember{ID: uuid.New(), RoomID: id, UserID: m, Role: models.RoleMember, JoinedAt: now})
	}
	r.room.CurrentMembers = len(r.members)
	s.rooms[id] = r
	return id
}

func (s *fakeStore) addReview(roomID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rooms[roomID]
	r.reviews = append(r.reviews, models.RoomReview{ID: uuid.New(), RoomID: roomID, UserID: userID, Rating: 5, Outcome: models.OutcomeSuccess})
}

type fakeTx struct {
	data  *fakeRoom
	dirty bool
}

func (t *fakeTx) Room() *models.Room { return &t.data.room }

func (t *fakeTx) Members(context.Context) ([]models.RoomMember, error) {
	return append([]models.RoomMember(nil), t.data.members...), nil
}

func (t *fakeTx) Member(_ context.Context, userID uuid.UUID) (*models.RoomMember, error) {
	for i := range t.data.members {
		if t.data.members[i].UserID == userID {
			m := t.data.members[i]
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *fakeTx) ReviewCount(context.Context) (int, error) { return len(t.data.reviews), nil }

func (t *fakeTx) HasReview(_ context.Context, userID uuid.UUID) (bool, error) {
	for _, r := range t.data.reviews {
		if r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) AddMember(ctx context.Context, userID uuid.UUID, role string) (*models.RoomMember, error) {
	if t.data.room.CurrentMembers >= t.data.room.MaxMembers {
		return nil, repository.ErrCapacityExceeded
	}
	if _, err := t.Member(ctx, userID); err == nil {
		return nil, repository.ErrDuplicate
	}
	m := models.RoomMember{ID: uuid.New(), RoomID: t.data.room.ID, UserID: userID, Role: role, JoinedAt: time.Now()}
	t.data.members = append(t.data.members, m)
	t.data.room.CurrentMembers++
	t.dirty = true
	return &m, nil
}

func (t *fakeTx) RemoveMember(_ context.Context, userID uuid.UUID) error {
	for i, m := range t.data.members {
		if m.UserID == userID && m.Role != models.RoleOwner {
			t.data.members = append(t.data.members[:i:i], t.data.members[i+1:]...)
			t.data.room.CurrentMembers--
			t.dirty = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *fakeTx) SetFriendReady(_ context.Context, userID uuid.UUID, ready bool) error {
	for i := range t.data.members {
		if t.data.members[i].UserID == userID {
			t.data.members[i].FriendReady = ready
			t.dirty = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *fakeTx) AddReview(_ context.Context, review *models.RoomReview) error {
	for _, r := range t.data.reviews {
		if r.UserID == review.UserID {
			return repository.ErrDuplicate
		}
	}
	review.ID = uuid.New()
	review.RoomID = t.data.room.ID
	review.CreatedAt = time.Now()
	t.data.reviews = append(t.data.reviews, *review)
	t.dirty = true
	return nil
}

func (t *fakeTx) Transition(status string, at time.Time) {
	t.data.room.Status = status
	switch status {
	case models.RoomStatusInvited:
		t.data.room.InvitedAt = &at
	case models.RoomStatusClosed:
		t.data.room.ClosedAt = &at
	case models.RoomStatusCanceled:
		t.data.room.CanceledAt = &at
	}
	t.dirty = true
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.RoomEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.RoomState
	getErr  error
	setErr  error
	sets    int
	deletes int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[uuid.UUID]*models.RoomState)}
}

func (c *recordingCache) Get(_ context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	st, ok := c.entries[roomID]
	if !ok {
		return nil, cache.ErrMiss
	}
	cp := *st
	return &cp, nil
}

func (c *recordingCache) Set(_ context.Context, state *models.RoomState) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return false, c.setErr
	}
	if cur, ok := c.entries[state.Room.ID]; ok && cur.Room.Version >= state.Room.Version {
		return false, nil
	}
	cp := *state
	c.entries[state.Room.ID] = &cp
	return true, nil
}

func (c *recordingCache) Delete(_ context.Context, roomID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, roomID)
	return nil
}

func (c *recordingCache) version(roomID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.entries[roomID]; ok {
		return st.Room.Version
	}
	return 0
}
