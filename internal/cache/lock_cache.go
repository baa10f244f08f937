package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a participant stays locked past the wait.
var ErrLockTimeout = errors.New("participant lock wait timed out")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ParticipantLock serializes message processing per participant
type ParticipantLock interface {
	// Acquire blocks until the lock is held, ctx ends or the wait elapses.
	// The returned func releases the lock.
	Acquire(ctx context.Context, participantID string) (func(context.Context) error, error)
}

type participantLock struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewParticipantLock creates a lock whose holders expire after ttl
func NewParticipantLock(client *redis.Client, ttl, wait time.Duration) ParticipantLock {
	return &participantLock{
		client: client,
		ttl:    ttl,
		wait:   wait,
		poll:   100 * time.Millisecond,
	}
}

func (l *participantLock) key(participantID string) string {
	return fmt.Sprintf("lock:participant:%s", participantID)
}

func (l *participantLock) Acquire(ctx context.Context, participantID string) (func(context.Context) error, error) {
	key := l.key(participantID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
