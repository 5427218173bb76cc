package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

const folderKeyPrefix = "intake:folder:"

// FolderCacheRepository remembers folder IDs by parent and name so repeat submissions skip the
// remote lookup. A nil client turns every call into a miss.
type FolderCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewFolderCacheRepository constructs a folder cache.
func NewFolderCacheRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *FolderCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &FolderCacheRepository{client: client, ttl: ttl, logger: logger}
}

// FolderKey builds the cache key for a folder lookup.
func FolderKey(parentID, name string) string {
	return folderKeyPrefix + parentID + ":" + name
}

// Get returns the cached folder ID or appErrors.ErrCacheMiss.
func (r *FolderCacheRepository) Get(ctx context.Context, parentID, name string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrCacheMiss
	}
	key := FolderKey(parentID, name)
	id, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return id, nil
}

// Set stores a folder ID with the configured TTL.
func (r *FolderCacheRepository) Set(ctx context.Context, parentID, name, folderID string) error {
	if r.client == nil {
		return nil
	}
	key := FolderKey(parentID, name)
	if err := r.client.Set(ctx, key, folderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Forget drops one entry, used when a cached folder turns out to be gone.
func (r *FolderCacheRepository) Forget(ctx context.Context, parentID, name string) error {
	if r.client == nil {
		return nil
	}
	key := FolderKey(parentID, name)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Purge removes every cached folder entry and returns how many were dropped.
func (r *FolderCacheRepository) Purge(ctx context.Context) (int, error) {
	if r.client == nil {
		return 0, nil
	}
	removed := 0
	iter := r.client.Scan(ctx, 0, folderKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("redis delete %s: %w", key, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan folder keys: %w", err)
	}
	return removed, nil
}

// Close releases the underlying Redis connection if present.
func (r *FolderCacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
