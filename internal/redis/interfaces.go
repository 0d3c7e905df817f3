package redis

import (
	"context"
	"time"
)

// ProfileCache defines the interface for customer profile caching.
type ProfileCache interface {
	GetProfile(ctx context.Context, userID string) (*CachedProfile, error)
	SetProfile(ctx context.Context, profile *CachedProfile) error
	InvalidateProfile(ctx context.Context, userID string) error
}

// TripLocker defines the interface for per-trip distributed locking.
type TripLocker interface {
	AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseTripLock(ctx context.Context, tripID, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ ProfileCache = (*CacheStore)(nil)
	_ TripLocker   = (*LockStore)(nil)
)
