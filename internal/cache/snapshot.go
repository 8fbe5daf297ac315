// Package cache keeps the shared part of a room snapshot in Redis so that
// polling clients do not each hit Postgres every few seconds.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/raidroom-api/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

// storeIfNewer only replaces an entry when the incoming room version is
// higher, so a slow reader can never overwrite a fresher write.
var storeIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'state', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type RoomCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRoomCache(client *redis.Client, ttl time.Duration) *RoomCache {
	return &RoomCache{client: client, ttl: ttl, prefix: "raidroom:room:"}
}

func (c *RoomCache) key(roomID uuid.UUID) string {
	return c.prefix + roomID.String()
}

func (c *RoomCache) Get(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	raw, err := c.client.HGet(ctx, c.key(roomID), "state").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var state models.RoomState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &state, nil
}

// Set stores state unless a newer version is already cached. It reports
// whether the entry was written.
func (c *RoomCache) Set(ctx context.Context, state *models.RoomState) (bool, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	n, err := storeIfNewer.Run(ctx, c.client, []string{c.key(state.Room.ID)},
		state.Room.Version, raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return n == 1, nil
}

func (c *RoomCache) Delete(ctx context.Context, roomID uuid.UUID) error {
	return c.client.Del(ctx, c.key(roomID)).Err()
}

// Noop never holds anything.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID) (*models.RoomState, error) { return nil, ErrMiss }
func (Noop) Set(context.Context, *models.RoomState) (bool, error) { return false, nil }
func (Noop) Delete(context.Context, uuid.UUID) error { return nil }
