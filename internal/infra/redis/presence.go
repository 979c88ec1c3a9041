package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore marks live rooms in Redis so external tooling can see which
// rooms exist on this instance. Markers are best-effort: a failed write never
// affects room state, and the TTL reaps markers from crashed processes.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

func (s *PresenceStore) RoomOpened(roomID int) {
	_ = s.client.Set(context.Background(), s.key(roomID), "1", s.ttl).Err()
}

func (s *PresenceStore) RoomClosed(roomID int) {
	_ = s.client.Del(context.Background(), s.key(roomID)).Err()
}

func (s *PresenceStore) key(roomID int) string {
	return "room:" + strconv.Itoa(roomID)
}
