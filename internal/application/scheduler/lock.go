package scheduler

import (
	"context"
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
)

// Locker grants exclusive ownership of a topic for one run. ok is false when
// another process holds the topic.
type Locker interface {
	Acquire(ctx context.Context, topicKey string) (release func(context.Context), ok bool, err error)
}

// RedisLocker implements Locker with a redis mutex per topic, kept alive by
// a watchdog while the run lasts.
type RedisLocker struct {
	factory redis.LockFactory
	ttl     time.Duration
	log     logging.Logger
}

// NewRedisLocker creates a RedisLocker whose locks expire after ttl unless
// extended.
func NewRedisLocker(factory redis.LockFactory, ttl time.Duration, log logging.Logger) *RedisLocker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RedisLocker{factory: factory, ttl: ttl, log: log}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, topicKey string) (func(context.Context), bool, error) {
	m := l.factory.NewMutex("topic:"+topicKey, redis.WithLockTTL(l.ttl), redis.WithWatchdog(true))
	ok, err := m.TryLock(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	release := func(ctx context.Context) {
		if err := m.Unlock(ctx); err != nil {
			l.log.Warn("failed to release topic lock", logging.String("topic", topicKey), logging.Err(err))
		}
	}
	return release, true, nil
}
