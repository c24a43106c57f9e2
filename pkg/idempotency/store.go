package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store marks units of work as seen so duplicates can be dropped. Entries
// expire after ttl; a retried request outside the window is treated as new.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// RequestKey namespaces a client-supplied Idempotency-Key per caller.
func (s *Store) RequestKey(scope, userID, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", scope, userID, key)
}

// Seen atomically records the key and reports whether it was already present.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Release forgets a key, so the unit of work it marked can be retried after
// a failed attempt.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
