package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by an UnlockFunc when the lock expired or was
// taken over before release.
var ErrNotHeld = errors.New("lock no longer held")

var releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var refreshScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a compare-and-delete
// release. A held lock is refreshed every third of its TTL until released,
// so the TTL only bounds how long a crashed holder blocks others.
type RedisLocker struct {
	client backend.UniversalClient
	prefix string
	poll   time.Duration
}

// RedisLockerOption configures a RedisLocker.
type RedisLockerOption func(*RedisLocker)

// WithPrefix sets the key prefix. Default "agentrouter:lock:".
func WithPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

// WithPollInterval sets how often a contended lock is retried. Default 50ms.
func WithPollInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) { l.poll = d }
}

// NewRedisLocker creates a RedisLocker on an existing client.
func NewRedisLocker(client backend.UniversalClient, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: "agentrouter:lock:",
		poll:   50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock blocks until key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			stop := l.keepAlive(lockKey, token, ttl)
			return func(ctx context.Context) error {
				stop()
				n, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int()
				if err != nil {
					return fmt.Errorf("redis unlock %s: %w", key, err)
				}
				if n == 0 {
					return ErrNotHeld
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// keepAlive extends the lease until stopped or until the lock is found to
// belong to someone else. A failed refresh is retried on the next tick.
func (l *RedisLocker) keepAlive(key, token string, ttl time.Duration) (stop func()) {
	if ttl < 3*time.Millisecond {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := refreshScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
