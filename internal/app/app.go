// Package app assembles the services shared by the HTTP server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/repository"
	"github.com/noah-isme/school-intake-api/internal/service"
	"github.com/noah-isme/school-intake-api/pkg/cache"
	"github.com/noah-isme/school-intake-api/pkg/config"
	"github.com/noah-isme/school-intake-api/pkg/database"
	"github.com/noah-isme/school-intake-api/pkg/export"
	"github.com/noah-isme/school-intake-api/pkg/jobs"
	"github.com/noah-isme/school-intake-api/pkg/mailer"
	"github.com/noah-isme/school-intake-api/pkg/monday"
	"github.com/noah-isme/school-intake-api/pkg/storage"
)

// App holds every long-lived dependency. Optional pieces (DB, Redis, LocalDrive) stay nil when
// their feature is switched off.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB         *sqlx.DB
	Redis      *redis.Client
	LocalDrive *storage.LocalDrive

	Metrics       *service.MetricsService
	Records       *monday.Client
	FolderCache   *repository.FolderCacheRepository
	Runs          *repository.SubmissionRunRepository
	Folders       *service.FolderService
	Documents     *service.DocumentService
	Notifications *service.NotificationService
	Submissions   *service.SubmissionService
	RunService    *service.RunService
	Tokens        *service.AdminTokenService
}

// New wires the application from cfg. Callers must Close the result.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	a.Metrics = service.NewMetricsService()
	a.Records = monday.New(monday.Config{
		APIURL:       cfg.Monday.APIURL,
		Token:        cfg.Monday.APIToken,
		APIVersion:   cfg.Monday.APIVersion,
		BoardID:      cfg.Monday.BoardID,
		GroupID:      cfg.Monday.GroupID,
		BoardURL:     cfg.Monday.BoardURL,
		Timeout:      cfg.Monday.Timeout,
		CreateLabels: cfg.Monday.CreateLabels,
	}, monday.WithLogger(a.Logger.Named("monday")), monday.WithObserver(a.Metrics))

	columns, err := service.NewColumnMap(cfg.Monday)
	if err != nil {
		return err
	}

	if cfg.Storage.FolderCacheEnabled {
		a.Redis, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect folder cache: %w", err)
		}
	}
	a.FolderCache = repository.NewFolderCacheRepository(a.Redis, cfg.Storage.FolderCacheTTL, a.Logger)

	if cfg.Ledger.Enabled {
		a.DB, err = database.Open(cfg.Ledger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		if err := database.EnsureSchema(ctx, a.DB); err != nil {
			return fmt.Errorf("prepare ledger schema: %w", err)
		}
		a.Runs = repository.NewSubmissionRunRepository(a.DB)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.Folders = service.NewFolderService(store, a.FolderCache, a.Metrics, service.FolderConfig{
		RootFolderID:  cfg.Storage.RootFolderID,
		ShareSourceID: cfg.Storage.ShareSourceID,
		Layout:        cfg.Storage.FolderLayout,
	}, a.Logger.Named("folders"))

	converter, err := export.NewConverter(export.ConverterOptions{
		Engine:      cfg.Documents.Engine,
		ChromiumBin: cfg.Documents.ChromiumBin,
	})
	if err != nil {
		return err
	}
	a.Documents, err = service.NewDocumentService(converter, a.Folders, service.DocumentConfig{
		BrandName:    cfg.Documents.BrandName,
		LogoURL:      cfg.Documents.LogoURL,
		FetchTimeout: cfg.Documents.FetchTimeout,
	}, a.Logger.Named("documents"))
	if err != nil {
		return err
	}

	sender := mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	}, a.Logger.Named("mailer"))
	a.Notifications, err = service.NewNotificationService(sender, service.NotificationConfig{
		From:       cfg.Mail.From,
		Recipients: cfg.Mail.Recipients,
		Subject:    cfg.Mail.Subject,
		BrandName:  cfg.Documents.BrandName,
	}, a.Logger.Named("notifications"))
	if err != nil {
		return err
	}

	deps := service.SubmissionDeps{
		Records:   a.Records,
		Folders:   a.Folders,
		Documents: a.Documents,
		Notifier:  a.Notifications,
		Metrics:   a.Metrics,
	}
	if a.Runs != nil {
		deps.Ledger = a.Runs
		a.RunService = service.NewRunService(a.Runs, a.Logger.Named("runs"))
	} else {
		a.RunService = service.NewRunService(nil, a.Logger.Named("runs"))
	}
	a.Submissions = service.NewSubmissionService(deps, columns, validator.New(), a.Logger.Named("submissions"))

	a.Tokens = service.NewAdminTokenService(service.AdminTokenConfig{
		Secret:     cfg.Admin.JWTSecret,
		Issuer:     cfg.Admin.Issuer,
		Expiration: cfg.Admin.Expiration,
	})
	return nil
}

type fileStore interface {
	FindFolder(ctx context.Context, parentID, name string) (*storage.Item, error)
	CreateFolder(ctx context.Context, parentID, name string) (*storage.Item, error)
	Upload(ctx context.Context, folderID, name, mimeType string, data []byte) (*storage.Item, error)
	Permissions(ctx context.Context, id string) (storage.Permissions, error)
	Grant(ctx context.Context, id string, perms storage.Permissions) error
}

func (a *App) openStore(ctx context.Context) (fileStore, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.StorageDriverDrive:
		drive, err := storage.NewGoogleDrive(ctx, cfg.Storage.CredentialsFile, a.Logger.Named("drive"))
		if err != nil {
			return nil, err
		}
		return drive, nil
	case "", config.StorageDriverLocal:
		signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		local, err := storage.NewLocalDrive(cfg.Storage.LocalDir, cfg.PublicBaseURL+cfg.APIPrefix, signer)
		if err != nil {
			return nil, fmt.Errorf("prepare local storage: %w", err)
		}
		a.LocalDrive = local
		return local, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// ReadinessChecks returns a probe per optional backend that is switched on.
func (a *App) ReadinessChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if a.DB != nil {
		checks["ledger"] = a.DB.PingContext
	}
	if a.Redis != nil {
		checks["folder_cache"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Maintenance returns a scheduler holding the background tasks enabled by configuration. The caller
// starts and stops it.
func (a *App) Maintenance() (*jobs.Scheduler, error) {
	sched := jobs.NewScheduler(a.Logger.Named("jobs"))
	if a.Runs != nil && a.Config.Ledger.Retention > 0 {
		retention := a.Config.Ledger.Retention
		err := sched.Register(jobs.Task{
			Name:       "ledger_prune",
			Interval:   a.Config.Ledger.PruneInterval,
			MaxRetries: 3,
			RetryDelay: time.Minute,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := a.RunService.Prune(ctx, retention)
				return err
			},
		})
		if err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.FolderCache != nil {
		if err := a.FolderCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close folder cache: %w", err))
		}
	} else if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}
	return errors.Join(errs...)
}
