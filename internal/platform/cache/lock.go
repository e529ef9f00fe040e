package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionActive is returned when another process holds the user's lock.
var ErrSessionActive = errors.New("session already active")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

// Locker grants one session per username.
type Locker interface {
	Lock(ctx context.Context, username string) (Unlock, error)
}

// NopLocker grants every lock. Used when no cache is configured.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (Unlock, error) {
	return func(context.Context) error { return nil }, nil
}

// SessionLocker keeps one random token per username in Redis. The key
// expires after ttl so a crashed process does not lock the user out. While
// the lock is held its expiry is pushed back every ttl/3, so sessions longer
// than ttl keep it.
type SessionLocker struct {
	cache *Cache
	ttl   time.Duration
}

// NewSessionLocker creates a locker on an open cache.
func NewSessionLocker(c *Cache, ttl time.Duration) *SessionLocker {
	return &SessionLocker{cache: c, ttl: ttl}
}

func (l *SessionLocker) Lock(ctx context.Context, username string) (Unlock, error) {
	key := l.cache.Key("session", username)
	token := uuid.NewString()

	ok, err := l.cache.Client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, ErrSessionActive)
	}
	slog.Debug("session lock acquired", "username", username, "ttl", l.ttl)

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, username, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		n, err := releaseScript.Run(context.WithoutCancel(ctx), l.cache.Client, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release session lock: %w", err)
		}
		if n == 0 {
			slog.Warn("session lock expired before release", "username", username)
		}
		return nil
	}, nil
}

// keepAlive extends the lock until stop is closed or the key no longer
// holds token.
func (l *SessionLocker) keepAlive(key, token, username string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := max(l.ttl/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := extendScript.Run(ctx, l.cache.Client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			slog.Warn("failed to extend session lock", "username", username, "error", err)
			continue
		}
		if n == 0 {
			slog.Warn("session lock lost", "username", username)
			return
		}
	}
}
