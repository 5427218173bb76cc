package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

func newFolderCache(t *testing.T) (*FolderCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	repo := NewFolderCacheRepository(client, time.Hour, nil)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, srv
}

func TestFolderCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, srv := newFolderCache(t)

	_, err := repo.Get(ctx, "root", "Lincoln")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "root", "Lincoln", "folder-1"))
	id, err := repo.Get(ctx, "root", "Lincoln")
	require.NoError(t, err)
	require.Equal(t, "folder-1", id)
	require.Equal(t, time.Hour, srv.TTL(FolderKey("root", "Lincoln")))

	require.NoError(t, repo.Forget(ctx, "root", "Lincoln"))
	_, err = repo.Get(ctx, "root", "Lincoln")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestFolderCachePurge(t *testing.T) {
	ctx := context.Background()
	repo, srv := newFolderCache(t)
	require.NoError(t, srv.Set("unrelated", "x"))
	require.NoError(t, repo.Set(ctx, "root", "a", "1"))
	require.NoError(t, repo.Set(ctx, "1", "b", "2"))

	removed, err := repo.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	require.True(t, srv.Exists("unrelated"))
}

func TestFolderCacheWithoutClient(t *testing.T) {
	repo := NewFolderCacheRepository(nil, 0, nil)
	_, err := repo.Get(context.Background(), "root", "a")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(context.Background(), "root", "a", "1"))
	require.NoError(t, repo.Close())
}
