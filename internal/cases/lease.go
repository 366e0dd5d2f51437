package cases

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"assessment-backend/internal/shared/telemetry"
)

// Lease guards a case against concurrent processing runs.
type Lease interface {
	// Acquire returns ErrCaseBusy when another run holds the case.
	Acquire(ctx context.Context, caseID string) (release func(), err error)
}

// MemoryLease is a process-local Lease.
type MemoryLease struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLease constructs a MemoryLease.
func NewMemoryLease() *MemoryLease {
	return &MemoryLease{held: make(map[string]struct{})}
}

func (l *MemoryLease) Acquire(ctx context.Context, caseID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[caseID]; busy {
		return nil, ErrCaseBusy
	}
	l.held[caseID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, caseID)
			l.mu.Unlock()
		})
	}, nil
}

const defaultLeaseTTL = 15 * time.Minute

// releaseScript deletes the key only when it still holds our token, so an
// expired lease that was taken over by another worker is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLease shares leases across API and worker processes.
type RedisLease struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLease builds a lease on an existing client. ttl bounds how long a
// crashed holder can block the case.
func NewRedisLease(client goredis.UniversalClient, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLease{client: client, prefix: "case-lease:", ttl: ttl}
}

// NewRedisClient parses url and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisLease) Acquire(ctx context.Context, caseID string) (func(), error) {
	key := l.prefix + caseID
	token := leaseToken()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil, ErrCaseBusy
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			telemetry.Warn("case.lease_release_failed", map[string]any{"case_id": caseID, "err": err})
		}
	}, nil
}

func leaseToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
