package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-intake-api/internal/models"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

const submissionRunColumns = `id, school_name, contact_email, parent_record_id, teacher_count, children_created, document_url, status, message, stages, started_at, finished_at`

// SubmissionRunRepository persists one row per pipeline run. Queries use ? placeholders rebound
// for the active driver so the same code serves Postgres and SQLite.
type SubmissionRunRepository struct {
	db *sqlx.DB
}

// NewSubmissionRunRepository constructs the repository.
func NewSubmissionRunRepository(db *sqlx.DB) *SubmissionRunRepository {
	return &SubmissionRunRepository{db: db}
}

// Create inserts a run with generated defaults.
func (r *SubmissionRunRepository) Create(ctx context.Context, run *models.SubmissionRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}
	const query = `INSERT INTO submission_runs (` + submissionRunColumns + `)
VALUES (:id, :school_name, :contact_email, :parent_record_id, :teacher_count, :children_created, :document_url, :status, :message, :stages, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create submission run: %w", err)
	}
	return nil
}

// GetByID returns one run.
func (r *SubmissionRunRepository) GetByID(ctx context.Context, id string) (*models.SubmissionRun, error) {
	query := r.db.Rebind(`SELECT ` + submissionRunColumns + ` FROM submission_runs WHERE id = ?`)
	var run models.SubmissionRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission run not found")
		}
		return nil, fmt.Errorf("get submission run: %w", err)
	}
	return &run, nil
}

// List returns runs newest first together with the unpaginated total.
func (r *SubmissionRunRepository) List(ctx context.Context, filter models.SubmissionRunFilter) ([]models.SubmissionRun, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SchoolName != "" {
		conditions = append(conditions, "LOWER(school_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.SchoolName)+"%")
	}
	if filter.Since != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, *filter.Since)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM submission_runs` + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submission runs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	listQuery := r.db.Rebind(`SELECT ` + submissionRunColumns + ` FROM submission_runs` + where + ` ORDER BY started_at DESC LIMIT ? OFFSET ?`)
	runs := make([]models.SubmissionRun, 0)
	if err := r.db.SelectContext(ctx, &runs, listQuery, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list submission runs: %w", err)
	}
	return runs, total, nil
}

// DeleteOlderThan prunes runs that started before cutoff and returns how many were removed.
func (r *SubmissionRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM submission_runs WHERE started_at < ?`)
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune submission runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune submission runs: %w", err)
	}
	return n, nil
}
