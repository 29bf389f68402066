package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("agenda lock not acquired")

// Locker serializes booking attempts for one (practitioner, date, hour) key.
// It is advisory: the database uniqueness constraint remains the guarantee,
// the lock only keeps concurrent writers from burning transactions on a
// conflict that is already decided.
type Locker interface {
	WithAgendaLock(ctx context.Context, practitionerID uuid.UUID, date, hour string, fn func(ctx context.Context) error) error
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

type redisAgendaLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAgendaLocker creates a locker backed by per-key Redis SETNX entries.
func NewRedisAgendaLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisAgendaLocker{client: client, ttl: ttl}
}

func (l *redisAgendaLocker) WithAgendaLock(ctx context.Context, practitionerID uuid.UUID, date, hour string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:agenda:%s:%s:%s", practitionerID, date, hour)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire agenda lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisAgendaLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release agenda lock: %w", err)
	}
	return nil
}

type noopLocker struct{}

// NewNoopLocker returns a locker that runs fn directly. Used when Redis is
// not configured; correctness then rests entirely on the storage constraint.
func NewNoopLocker() Locker { return noopLocker{} }

func (noopLocker) WithAgendaLock(ctx context.Context, _ uuid.UUID, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
