package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	opts := DefaultRedisOptions()
	opts.RetryDelay = 5 * time.Millisecond
	opts.Tries = 2000
	locker, err := NewRedisLocker(client, opts)
	require.NoError(t, err)
	return locker, mr
}

// lockers returns every implementation so behavioural tests run against both.
func lockers(t *testing.T) map[string]Locker {
	redisLocker, _ := setupRedisLocker(t)
	return map[string]Locker{
		"memory": NewMemoryLocker(),
		"redis":  redisLocker,
	}
}

func TestLocker_RunsFunction(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			executed := false
			err := locker.WithLock(context.Background(), "group:1", func(context.Context) error {
				executed = true
				return nil
			})
			require.NoError(t, err)
			assert.True(t, executed, "function should have been executed")
		})
	}
}

func TestLocker_PropagatesError(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			err := locker.WithLock(context.Background(), "group:1", func(context.Context) error {
				return assert.AnError
			})
			assert.ErrorIs(t, err, assert.AnError)
		})
	}
}

func TestLocker_EmptyKey(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			err := locker.WithLock(context.Background(), "  ", func(context.Context) error { return nil })
			assert.ErrorIs(t, err, ErrEmptyKey)
		})
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside, total int32
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := locker.WithLock(context.Background(), "group:shared", func(context.Context) error {
						n := atomic.AddInt32(&inside, 1)
						for {
							m := atomic.LoadInt32(&maxInside)
							if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
								break
							}
						}
						time.Sleep(2 * time.Millisecond)
						atomic.AddInt32(&total, 1)
						atomic.AddInt32(&inside, -1)
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside), "critical sections overlapped")
			assert.Equal(t, int32(10), atomic.LoadInt32(&total))
		})
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithLock(ctx, "group:a", func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// A different key must not wait for group:a.
	err := locker.WithLock(ctx, "group:b", func(context.Context) error { return nil })
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	assert.Zero(t, locker.size(), "idle keys should be dropped")
}

func TestMemoryLocker_ContextCancelledWhileWaiting(t *testing.T) {
	locker := NewMemoryLocker()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithLock(context.Background(), "group:a", func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := locker.WithLock(ctx, "group:a", func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, ran)

	close(release)
	require.NoError(t, <-done)
	assert.Zero(t, locker.size())
}

func TestRedisLocker_KeyIsReleased(t *testing.T) {
	locker, mr := setupRedisLocker(t)

	err := locker.WithLock(context.Background(), "group:1", func(context.Context) error {
		assert.True(t, mr.Exists("splitcore:lock:group:1"), "lock key should exist while held")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("splitcore:lock:group:1"), "lock key should be deleted after release")
}

func TestRedisLocker_ContentionTimesOut(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker, err := NewRedisLocker(client, RedisOptions{
		Prefix:     "test:",
		Expiry:     time.Minute,
		Tries:      2,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, mr.Set("test:group:1", "someone-else"))

	ran := false
	err = locker.WithLock(context.Background(), "group:1", func(context.Context) error {
		ran = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, ran)
}

func TestNewRedisLocker_ValidatesOptions(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	_, err := NewRedisLocker(client, RedisOptions{Expiry: 0, Tries: 1})
	assert.ErrorIs(t, err, ErrExpiryInvalid)

	_, err = NewRedisLocker(client, RedisOptions{Expiry: time.Second, Tries: 0})
	assert.ErrorIs(t, err, ErrTriesInvalid)

	_, err = NewRedisLocker(nil, DefaultRedisOptions())
	assert.Error(t, err)
}
