package out

import (
	"context"
	"time"
)

// Cache defines the outbound port for caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Lock acquires a lease on key for ttl. Returns false when the
	// lease is already held.
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RunLease serializes triage runs per owner. Acquire fails when a run
// of the same type is already in flight; the TTL bounds how long a
// crashed worker can hold the lease.
type RunLease interface {
	Acquire(ctx context.Context, ownerKey, runType string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, ownerKey, runType string) error
}
