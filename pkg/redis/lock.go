package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired means another run holds the identity
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld means the lock expired or was taken over before release
	ErrLockNotHeld = errors.New("lock not held")
)

// compare-and-delete so a run never frees a lock that expired and was re-taken
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// Lock is one held identity lock. Token identifies the holder.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Locker serializes work on one identity across processes. It satisfies
// authority.IdentityLocker.
type Locker struct {
	client *Client
}

func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// Acquire takes the lock for authorityKey with SET NX or fails with ErrLockNotAcquired.
func (l *Locker) Acquire(ctx context.Context, authorityKey string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{
		client: l.client,
		key:    l.client.key("lock", authorityKey),
		token:  uuid.NewString(),
	}

	ok, err := l.client.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).WithField("authority_key", authorityKey).Debug("Acquired identity lock")
	return lock, nil
}

func (lock *Lock) Release(ctx context.Context) error {
	released, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return err
	}
	if released == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock runs fn while holding the lock for authorityKey. A failed release is
// logged; fn's result is returned either way.
func (l *Locker) WithLock(ctx context.Context, authorityKey string, ttl time.Duration, fn func() error) error {
	lock, err := l.Acquire(ctx, authorityKey, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			l.client.logger.WithContext(ctx).WithError(err).WithField("authority_key", authorityKey).Warn("Failed to release identity lock")
		}
	}()

	return fn()
}
