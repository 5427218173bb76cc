package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/export"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

type runRepository interface {
	List(ctx context.Context, filter models.SubmissionRunFilter) ([]models.SubmissionRun, int, error)
	GetByID(ctx context.Context, id string) (*models.SubmissionRun, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunExportHeaders are the columns of a ledger export.
var RunExportHeaders = []string{"run_id", "started_at", "school", "contact_email", "status", "parent_record", "teachers", "children_created", "stage_failures", "document_url", "message"}

// RunService reads the submission ledger for operators. A nil repository means the ledger is off.
type RunService struct {
	repo   runRepository
	logger *zap.Logger
}

// NewRunService constructs the service.
func NewRunService(repo runRepository, logger *zap.Logger) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunService{repo: repo, logger: logger}
}

func (s *RunService) enabled() error {
	if s == nil || s.repo == nil {
		return appErrors.Clone(appErrors.ErrDisabled, "submission ledger disabled")
	}
	return nil
}

// List returns ledger rows newest first with the total count.
func (s *RunService) List(ctx context.Context, filter models.SubmissionRunFilter) ([]models.SubmissionRun, int, error) {
	if err := s.enabled(); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && filter.Status != models.RunStatusSucceeded && filter.Status != models.RunStatusFailed {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "status must be SUCCEEDED or FAILED")
	}
	runs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submission runs")
	}
	return runs, total, nil
}

// Get returns one ledger row.
func (s *RunService) Get(ctx context.Context, id string) (*models.SubmissionRun, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return run, nil
}

// Prune deletes rows older than retention.
func (s *RunService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if err := s.enabled(); err != nil {
		return 0, err
	}
	if retention <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "retention must be positive")
	}
	n, err := s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune submission runs")
	}
	s.logger.Info("submission runs pruned", zap.Int64("removed", n), zap.Duration("retention", retention))
	return n, nil
}

// Export renders matching rows with the exporter for format ("csv" or "pdf").
func (s *RunService) Export(ctx context.Context, filter models.SubmissionRunFilter, format string) ([]byte, export.DatasetExporter, error) {
	exporter, err := export.ExporterFor(format)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	if filter.Limit <= 0 {
		filter.Limit = 500
	}
	runs, _, err := s.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	data, err := exporter.Render(RunDataset(runs), "Submission runs")
	if err != nil {
		return nil, nil, fmt.Errorf("render run export: %w", err)
	}
	return data, exporter, nil
}

// RunDataset flattens ledger rows for the tabular exporters.
func RunDataset(runs []models.SubmissionRun) export.Dataset {
	rows := make([]map[string]string, 0, len(runs))
	for _, r := range runs {
		row := map[string]string{
			"run_id":           r.ID,
			"started_at":       r.StartedAt.UTC().Format(time.RFC3339),
			"school":           r.SchoolName,
			"contact_email":    r.ContactEmail,
			"status":           string(r.Status),
			"teachers":         strconv.Itoa(r.TeacherCount),
			"children_created": strconv.Itoa(r.ChildrenCreated),
			"stage_failures":   strconv.Itoa(r.Stages.Failures()),
			"message":          r.Message,
		}
		if r.ParentRecordID != nil {
			row["parent_record"] = *r.ParentRecordID
		}
		if r.DocumentURL != nil {
			row["document_url"] = *r.DocumentURL
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: RunExportHeaders, Rows: rows}
}
