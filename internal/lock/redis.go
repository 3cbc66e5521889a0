package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrExpiryInvalid is returned when the lock expiry is not positive.
	ErrExpiryInvalid = errors.New("lock expiry must be greater than 0")

	// ErrTriesInvalid is returned when fewer than one acquisition attempt is configured.
	ErrTriesInvalid = errors.New("lock tries must be at least 1")
)

// RedisOptions tunes the RedLock mutex.
type RedisOptions struct {
	// Prefix is prepended to every key (e.g. "splitcore:lock:").
	Prefix string

	// Expiry is how long a lock lives if its holder disappears.
	Expiry time.Duration

	// Tries is the number of acquisition attempts before giving up.
	Tries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// DefaultRedisOptions returns options suited to plan regeneration, which
// finishes well within a few seconds.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:     "splitcore:lock:",
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 100 * time.Millisecond,
	}
}

// RedisLocker is a Locker shared by every process talking to the same Redis.
type RedisLocker struct {
	rs   *redsync.Redsync
	opts RedisOptions
}

// NewRedisLocker creates a locker backed by client.
func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if opts.Expiry <= 0 {
		return nil, ErrExpiryInvalid
	}
	if opts.Tries < 1 {
		return nil, ErrTriesInvalid
	}

	return &RedisLocker{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}, nil
}

// WithLock implements Locker.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	name := l.opts.Prefix + key
	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		slog.Error("Failed to acquire lock", "lock_key", name, "error", err)
		return fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	slog.Debug("Lock acquired", "lock_key", name)

	defer func() {
		// Release even if ctx was cancelled while fn ran.
		ok, err := mutex.UnlockContext(context.WithoutCancel(ctx))
		if err != nil || !ok {
			slog.Warn("Lock was not held at release", "lock_key", name, "unlock_ok", ok, "error", err)
			return
		}
		slog.Debug("Lock released", "lock_key", name)
	}()

	return fn(ctx)
}
