package cache

import (
	"context"
	"fmt"
	"time"

	"triage_server/core/port/out"
)

// RedisRunLease implements out.RunLease on top of the cache lock.
// Keys look like "runlock:<owner>:<run-type>".
type RedisRunLease struct {
	cache out.Cache
}

func NewRedisRunLease(cache out.Cache) *RedisRunLease {
	return &RedisRunLease{cache: cache}
}

func (l *RedisRunLease) Acquire(ctx context.Context, ownerKey, runType string, ttl time.Duration) (bool, error) {
	return l.cache.Lock(ctx, leaseKey(ownerKey, runType), ttl)
}

func (l *RedisRunLease) Release(ctx context.Context, ownerKey, runType string) error {
	return l.cache.Unlock(ctx, leaseKey(ownerKey, runType))
}

func leaseKey(ownerKey, runType string) string {
	return fmt.Sprintf("runlock:%s:%s", ownerKey, runType)
}

var _ out.RunLease = (*RedisRunLease)(nil)
