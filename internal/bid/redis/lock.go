package redis

import (
	"context"
	"fmt"
	"time"

	"ms-bidding/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Client is the slice of go-redis used by the gig lock, kept narrow so tests
// can stand in a fake.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// GigLock serializes bid mutations per gig. Two artists racing to undercut
// the same lowest bid must not both pass validation; the loser of the lock
// either waits out the critical section or fails fast with GIG_BUSY.
type GigLock struct {
	Client Client
	TTL    time.Duration
	Wait   time.Duration
	Poll   time.Duration
}

func NewGigLock(client Client, ttl, wait, poll time.Duration) *GigLock {
	return &GigLock{Client: client, TTL: ttl, Wait: wait, Poll: poll}
}

func lockKey(gigID string) string { return "gig_lock:" + gigID }

// Acquire takes the per-gig lock, polling up to the configured wait bound.
// The returned token must be passed back to Release; it stops one holder
// from releasing another's lock after a TTL expiry.
func (l *GigLock) Acquire(ctx context.Context, gigID string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.Client.SetNX(ctx, lockKey(gigID), token, l.TTL).Result()
		if err != nil {
			return "", fmt.Errorf("gig lock acquire: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", models.ErrGigBusy
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.Poll):
		}
	}
}

// Release frees the lock if this token still owns it. A lock that already
// expired and was re-acquired by someone else is left alone.
func (l *GigLock) Release(ctx context.Context, gigID, token string) error {
	key := lockKey(gigID)

	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("gig lock release: %w", err)
	}
	if val != token {
		return nil
	}

	if _, err := l.Client.Del(ctx, key).Result(); err != nil {
		return fmt.Errorf("gig lock release: %w", err)
	}
	return nil
}
