package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/config"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/storage"
)

type fileStore interface {
	FindFolder(ctx context.Context, parentID, name string) (*storage.Item, error)
	CreateFolder(ctx context.Context, parentID, name string) (*storage.Item, error)
	Upload(ctx context.Context, folderID, name, mimeType string, data []byte) (*storage.Item, error)
	Permissions(ctx context.Context, id string) (storage.Permissions, error)
	Grant(ctx context.Context, id string, perms storage.Permissions) error
}

type folderCache interface {
	Get(ctx context.Context, parentID, name string) (string, error)
	Set(ctx context.Context, parentID, name, folderID string) error
}

type folderMetrics interface {
	RecordFolderCacheLookup(hit bool)
}

// FolderConfig tunes FolderService.
type FolderConfig struct {
	RootFolderID  string
	ShareSourceID string
	Layout        string
}

// FolderService resolves the submission folder hierarchy and uploads form files into it.
type FolderService struct {
	store   fileStore
	cache   folderCache
	metrics folderMetrics
	cfg     FolderConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewFolderService constructs a FolderService. cache and metrics may be nil.
func NewFolderService(store fileStore, cache folderCache, metrics folderMetrics, cfg FolderConfig, logger *zap.Logger) *FolderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Layout == "" {
		cfg.Layout = config.FolderLayoutDated
	}
	return &FolderService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Layout reports the configured folder layout.
func (s *FolderService) Layout() string {
	return s.cfg.Layout
}

// GetOrCreateFolder returns the first child of parentID named exactly name, creating it when absent.
func (s *FolderService) GetOrCreateFolder(ctx context.Context, parentID, name string) (*storage.Item, error) {
	item, _, err := s.getOrCreate(ctx, parentID, name)
	return item, err
}

func (s *FolderService) getOrCreate(ctx context.Context, parentID, name string) (*storage.Item, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "folder name required")
	}

	if s.cache != nil {
		id, err := s.cache.Get(ctx, parentID, name)
		switch {
		case err == nil && id != "":
			s.recordCache(true)
			return &storage.Item{ID: id, Name: name}, false, nil
		case err != nil && !errors.Is(err, appErrors.ErrCacheMiss):
			s.logger.Warn("folder cache lookup failed", zap.String("parent_id", parentID), zap.String("name", name), zap.Error(err))
		}
		s.recordCache(false)
	}

	item, err := s.store.FindFolder(ctx, parentID, name)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to look up folder")
	}
	created := false
	if item == nil {
		item, err = s.store.CreateFolder(ctx, parentID, name)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create folder")
		}
		created = true
		s.logger.Info("folder created", zap.String("parent_id", parentID), zap.String("name", name), zap.String("folder_id", item.ID))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, parentID, name, item.ID); err != nil {
			s.logger.Warn("folder cache write failed", zap.String("name", name), zap.Error(err))
		}
	}
	return item, created, nil
}

// SubmissionFolder resolves root / schoolName / YYYY-MM-DD for today's date.
func (s *FolderService) SubmissionFolder(ctx context.Context, schoolName string) (*storage.Item, error) {
	school, err := s.schoolFolder(ctx, schoolName)
	if err != nil {
		return nil, err
	}
	day, created, err := s.getOrCreate(ctx, school.ID, s.now().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if created {
		s.InheritPermissions(ctx, day.ID, s.cfg.ShareSourceID)
	}
	return day, nil
}

// TeacherFolder resolves root / schoolName / "Teacher N - childID - parentID" for the per-teacher layout.
// index is zero based.
func (s *FolderService) TeacherFolder(ctx context.Context, schoolName string, index int, childID, parentID string) (*storage.Item, error) {
	school, err := s.schoolFolder(ctx, schoolName)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("Teacher %d - %s - %s", index+1, childID, parentID)
	folder, created, err := s.getOrCreate(ctx, school.ID, name)
	if err != nil {
		return nil, err
	}
	if created {
		s.InheritPermissions(ctx, folder.ID, s.cfg.ShareSourceID)
	}
	return folder, nil
}

func (s *FolderService) schoolFolder(ctx context.Context, schoolName string) (*storage.Item, error) {
	school, created, err := s.getOrCreate(ctx, s.cfg.RootFolderID, schoolName)
	if err != nil {
		return nil, err
	}
	if created {
		s.InheritPermissions(ctx, school.ID, s.cfg.ShareSourceID)
	}
	return school, nil
}

// UploadFile decodes a form attachment and stores it in folderID. The uploaded file inherits the
// share source's permissions.
func (s *FolderService) UploadFile(ctx context.Context, folderID string, att models.Attachment) (*storage.Item, error) {
	data, err := storage.DecodeBase64(att.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("attachment %q is not valid base64", att.Name))
	}
	return s.Store(ctx, folderID, att.Name, att.MimeType, data)
}

// Store uploads raw bytes into folderID.
func (s *FolderService) Store(ctx context.Context, folderID, name, mimeType string, data []byte) (*storage.Item, error) {
	if strings.TrimSpace(name) == "" {
		name = "upload"
	}
	item, err := s.store.Upload(ctx, folderID, name, mimeType, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to upload file")
	}
	s.logger.Info("file uploaded", zap.String("folder_id", folderID), zap.String("name", name), zap.Int("bytes", len(data)))
	s.InheritPermissions(ctx, item.ID, s.cfg.ShareSourceID)
	return item, nil
}

// InheritPermissions copies the viewer and editor lists of sourceID onto targetID without notifying
// anyone. Failures are logged and never returned.
func (s *FolderService) InheritPermissions(ctx context.Context, targetID, sourceID string) {
	if sourceID == "" || targetID == "" || sourceID == targetID {
		return
	}
	perms, err := s.store.Permissions(ctx, sourceID)
	if err != nil {
		s.logger.Sugar().Warnw("read share source permissions failed", "source_id", sourceID, "target_id", targetID, "error", err)
		return
	}
	if perms.Empty() {
		return
	}
	if err := s.store.Grant(ctx, targetID, perms); err != nil {
		s.logger.Sugar().Warnw("inherit permissions failed", "source_id", sourceID, "target_id", targetID, "error", err)
	}
}

func (s *FolderService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordFolderCacheLookup(hit)
	}
}
