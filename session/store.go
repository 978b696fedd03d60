package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the durable store cannot be
// reached. Load treats it as "no persisted session" at the engine level;
// Save propagates it.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNoSnapshot is returned by Load when no live snapshot exists.
var ErrNoSnapshot = errors.New("no session snapshot")

// Store persists one session snapshot per namespace. The namespace keeps
// independent embedders (or tests) from clobbering each other's sessions
// on a shared backend.
type Store struct {
	redis     *redis.Client
	namespace string
}

// NewStore creates a snapshot store using the given key namespace.
func NewStore(redisClient *redis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = "tg"
	}
	return &Store{
		redis:     redisClient,
		namespace: namespace,
	}
}

func (s *Store) key() string {
	return s.namespace + ":session"
}

// Save persists the snapshot with a TTL equal to its remaining lifetime.
// Snapshots that are already expired are not written.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	ttl := time.Until(time.UnixMilli(snap.ExpiresAt))
	if ttl <= 0 {
		return nil
	}

	encoded, err := Encode(snap)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load reads the persisted snapshot. A missing key, a corrupt blob, or a
// snapshot whose recorded expiry has passed all return ErrNoSnapshot; a
// corrupt or expired entry is deleted on the way out so it is never
// resurrected.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	snap, err := Decode(data)
	if err != nil {
		_ = s.redis.Del(ctx, s.key()).Err()
		return nil, ErrNoSnapshot
	}

	if snap.Expired(time.Now()) {
		_ = s.redis.Del(ctx, s.key()).Err()
		return nil, ErrNoSnapshot
	}

	return snap, nil
}

// Clear removes the persisted snapshot. Idempotent.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
