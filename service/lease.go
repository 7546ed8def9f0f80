package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"VideoPipeline-server/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants exclusive, expiring leases on a key. A stage holds one for
// the duration of a run.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// ProjectLeaseKey and RenderLeaseKey name the two lease scopes in use.
func ProjectLeaseKey(stage, projectID string) string {
	return fmt.Sprintf("lease:%s:project:%s", stage, projectID)
}

func RenderLeaseKey(renderJobID string) string {
	return "lease:render:" + renderJobID
}

// RedisLocker implements Locker with SET NX PX and a token-checked delete.
type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, apperr.Wrap(apperr.ErrLeaseHeld, "lease", "acquire", key, nil)
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}

// LocalLocker is an in-process Locker for single-worker deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localHold
	now  func() time.Time
}

type localHold struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localHold), now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && l.now().Before(h.expires) {
		return nil, apperr.Wrap(apperr.ErrLeaseHeld, "lease", "acquire", key, nil)
	}
	token := uuid.NewString()
	l.held[key] = localHold{token: token, expires: l.now().Add(ttl)}
	return &localLease{owner: l, key: key, token: token}, nil
}

type localLease struct {
	owner *LocalLocker
	key   string
	token string
}

func (l *localLease) Release(ctx context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if h, ok := l.owner.held[l.key]; ok && h.token == l.token {
		delete(l.owner.held, l.key)
	}
	return nil
}
