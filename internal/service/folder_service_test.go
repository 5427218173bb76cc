package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/config"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/storage"
)

// countingStore wraps a LocalDrive and counts remote-style lookups.
type countingStore struct {
	*storage.LocalDrive
	mu      sync.Mutex
	finds   int
	creates int
}

func (c *countingStore) FindFolder(ctx context.Context, parentID, name string) (*storage.Item, error) {
	c.mu.Lock()
	c.finds++
	c.mu.Unlock()
	return c.LocalDrive.FindFolder(ctx, parentID, name)
}

func (c *countingStore) CreateFolder(ctx context.Context, parentID, name string) (*storage.Item, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.LocalDrive.CreateFolder(ctx, parentID, name)
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func (m *mapCache) Get(_ context.Context, parentID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.entries[parentID+"|"+name]
	if !ok {
		return "", appErrors.ErrCacheMiss
	}
	return id, nil
}

func (m *mapCache) Set(_ context.Context, parentID, name, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[parentID+"|"+name] = folderID
	return nil
}

func newFolderFixture(t *testing.T, cfg FolderConfig, cache folderCache, metrics folderMetrics) (*FolderService, *countingStore) {
	t.Helper()
	drive, err := storage.NewLocalDrive(t.TempDir(), "http://intake.test", storage.NewSignedURLSigner("k", time.Hour))
	require.NoError(t, err)
	store := &countingStore{LocalDrive: drive}
	svc := NewFolderService(store, cache, metrics, cfg, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestGetOrCreateFolderIsIdempotent(t *testing.T) {
	svc, store := newFolderFixture(t, FolderConfig{RootFolderID: "root"}, nil, nil)
	ctx := context.Background()

	first, err := svc.GetOrCreateFolder(ctx, "root", "Lincoln Elementary")
	require.NoError(t, err)
	second, err := svc.GetOrCreateFolder(ctx, "root", "Lincoln Elementary")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.creates)

	entries, err := os.ReadDir(store.Path("root"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

func TestGetOrCreateFolderRejectsBlankName(t *testing.T) {
	svc, _ := newFolderFixture(t, FolderConfig{}, nil, nil)
	_, err := svc.GetOrCreateFolder(context.Background(), "root", "   ")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGetOrCreateFolderUsesCache(t *testing.T) {
	cache := &mapCache{entries: map[string]string{}}
	metrics := NewMetricsService()
	svc, store := newFolderFixture(t, FolderConfig{RootFolderID: "root"}, cache, metrics)
	ctx := context.Background()

	_, err := svc.GetOrCreateFolder(ctx, "root", "Lincoln Elementary")
	require.NoError(t, err)
	item, err := svc.GetOrCreateFolder(ctx, "root", "Lincoln Elementary")
	require.NoError(t, err)

	assert.Equal(t, "root/Lincoln Elementary", item.ID)
	assert.Equal(t, 1, store.finds)
	assert.InDelta(t, 0.5, metrics.Snapshot().FolderCacheHitRatio, 0.001)
}

func TestSubmissionAndTeacherFolders(t *testing.T) {
	svc, store := newFolderFixture(t, FolderConfig{RootFolderID: "root", Layout: config.FolderLayoutPerTeacher}, nil, nil)
	ctx := context.Background()

	day, err := svc.SubmissionFolder(ctx, "Lincoln Elementary")
	require.NoError(t, err)
	assert.Equal(t, "root/Lincoln Elementary/2026-10-19", day.ID)

	teacher, err := svc.TeacherFolder(ctx, "Lincoln Elementary", 1, "902", "555")
	require.NoError(t, err)
	assert.Equal(t, "root/Lincoln Elementary/Teacher 2 - 902 - 555", teacher.ID)
	assert.DirExists(t, store.Path(teacher.ID))
	assert.Equal(t, config.FolderLayoutPerTeacher, svc.Layout())
}

func TestNewFoldersAndUploadsInheritSharing(t *testing.T) {
	svc, store := newFolderFixture(t, FolderConfig{RootFolderID: "root", ShareSourceID: "shared"}, nil, nil)
	ctx := context.Background()
	_, err := store.LocalDrive.CreateFolder(ctx, "", "shared")
	require.NoError(t, err)
	require.NoError(t, store.Grant(ctx, "shared", storage.Permissions{Viewers: []string{"viewer@example.org"}, Editors: []string{"ops@example.org"}}))

	day, err := svc.SubmissionFolder(ctx, "Lincoln")
	require.NoError(t, err)
	item, err := svc.UploadFile(ctx, day.ID, models.Attachment{Name: "calendar.pdf", MimeType: "application/pdf", Data: "aGk="})
	require.NoError(t, err)

	for _, id := range []string{"root/Lincoln", day.ID, item.ID} {
		perms, err := store.Permissions(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, []string{"viewer@example.org"}, perms.Viewers, id)
		assert.Equal(t, []string{"ops@example.org"}, perms.Editors, id)
	}
	data, err := os.ReadFile(filepath.Join(store.Path(day.ID), "calendar.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestUploadFileRejectsInvalidBase64(t *testing.T) {
	svc, _ := newFolderFixture(t, FolderConfig{}, nil, nil)
	_, err := svc.UploadFile(context.Background(), "root", models.Attachment{Name: "x.pdf", MimeType: "application/pdf", Data: "!!not base64!!"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestInheritPermissionsIgnoresMissingSource(t *testing.T) {
	svc, store := newFolderFixture(t, FolderConfig{}, nil, nil)
	ctx := context.Background()
	folder, err := svc.GetOrCreateFolder(ctx, "", "target")
	require.NoError(t, err)

	svc.InheritPermissions(ctx, folder.ID, "does/not/exist")
	perms, err := store.Permissions(ctx, folder.ID)
	require.NoError(t, err)
	assert.True(t, perms.Empty())
}
