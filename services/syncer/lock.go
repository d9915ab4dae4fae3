package syncer

import (
	"context"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/rediskey"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Locker guards a cycle across processes. TryLock reports ok=false when
// another holder owns the lock.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// NopLocker always grants the lock; the in-process flag is the only guard.
type NopLocker struct{}

func (NopLocker) TryLock(context.Context) (func(), bool, error) {
	return func() {}, true, nil
}

const defaultLockTTL = 5 * time.Minute

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type lockClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLocker is a SET NX PX lock shared by every process on the same redis.
type RedisLocker struct {
	client lockClient
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client lockClient, key string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			zap.L().Warn("failed to release sync lock", zap.String("key", l.key), zap.Error(err))
		}
	}
	return release, true, nil
}

type LockerParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

// NewLocker uses redis when a client is available.
func NewLocker(p LockerParams) Locker {
	if p.Redis == nil {
		return NopLocker{}
	}
	return NewRedisLocker(p.Redis, rediskey.BuildSyncLockKey("cycle"), p.Config.Redis.LockTTL)
}
