package tendergate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownTimer persists resend cooldowns as absolute deadlines so the
// remaining wait survives process restarts. The stored value is the
// deadline in unix milliseconds; the key carries a matching TTL so
// expired cooldowns vanish on their own.
type CooldownTimer struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func newCooldownTimer(client *redis.Client, namespace string) *CooldownTimer {
	return &CooldownTimer{
		client: client,
		prefix: namespace + ":cooldown",
		now:    time.Now,
	}
}

func (t *CooldownTimer) key(name string) string {
	return t.prefix + ":" + name
}

// Start records a cooldown deadline d from now under name, replacing
// any deadline already stored there.
func (t *CooldownTimer) Start(ctx context.Context, name string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	deadline := t.now().Add(d).UnixMilli()
	err := t.client.Set(ctx, t.key(name), strconv.FormatInt(deadline, 10), d).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Remaining reports the wait left on the named cooldown. A missing or
// unreadable entry reports zero: an unavailable store must never lock
// the user out of resending.
func (t *CooldownTimer) Remaining(ctx context.Context, name string) time.Duration {
	raw, err := t.client.Get(ctx, t.key(name)).Result()
	if err != nil {
		return 0
	}
	deadline, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	left := time.UnixMilli(deadline).Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}

// CanFire reports whether the named cooldown has elapsed.
func (t *CooldownTimer) CanFire(ctx context.Context, name string) bool {
	return t.Remaining(ctx, name) == 0
}

// Clear removes the named cooldown.
func (t *CooldownTimer) Clear(ctx context.Context, name string) error {
	if err := t.client.Del(ctx, t.key(name)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
