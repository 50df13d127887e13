// Package redis provides a Locker backed by Redis so several engine
// instances sharing one database also share replay serialization.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/lock"
)

var _ lock.Locker = (*Locker)(nil)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Locker implements lock.Locker with SET NX PX and a token-checked release.
type Locker struct {
	client goredis.Cmdable
	ttl    time.Duration
	retry  time.Duration
	token  func() string
}

// Option configures a Locker.
type Option func(*Locker)

// WithTTL sets how long a held key survives without release (default: 30s).
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) { l.ttl = ttl }
}

// WithRetryInterval sets the pause between acquisition attempts (default: 25ms).
func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) { l.retry = d }
}

// WithTokenFunc overrides the per-acquisition token generator.
func WithTokenFunc(fn func() string) Option {
	return func(l *Locker) { l.token = fn }
}

// New creates a Locker on top of an existing client.
func New(client goredis.Cmdable, opts ...Option) *Locker {
	l := &Locker{
		client: client,
		ttl:    30 * time.Second,
		retry:  25 * time.Millisecond,
		token:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock implements lock.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := l.token()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", rewards.ErrLockUnavailable, key, err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) unlockFunc(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// A failed release leaves the key to expire after ttl.
	_ = l.client.Eval(ctx, releaseScript, []string{key}, token).Err() //nolint:errcheck // best-effort release
}
