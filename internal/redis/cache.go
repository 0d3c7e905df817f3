package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// ProfileCacheTTL bounds how stale a cached customer profile can be.
const ProfileCacheTTL = 10 * time.Minute

const profileCachePrefix = "cache:profile:"

// CachedProfile is the customer contact snapshot copied onto new bookings.
type CachedProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// GetProfile retrieves a profile from cache. A miss returns nil, nil.
func (s *CacheStore) GetProfile(ctx context.Context, userID string) (*CachedProfile, error) {
	data, err := s.client.Get(ctx, profileCachePrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var profile CachedProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetProfile stores a profile in cache.
func (s *CacheStore) SetProfile(ctx context.Context, profile *CachedProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileCachePrefix+profile.ID, data, ProfileCacheTTL).Err()
}

// InvalidateProfile removes a profile from cache.
func (s *CacheStore) InvalidateProfile(ctx context.Context, userID string) error {
	return s.client.Del(ctx, profileCachePrefix+userID).Err()
}
