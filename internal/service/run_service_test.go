package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-intake-api/internal/models"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

type stubRunRepo struct {
	runs    []models.SubmissionRun
	filter  models.SubmissionRunFilter
	cutoff  time.Time
	deleted int64
	err     error
}

func (s *stubRunRepo) List(_ context.Context, filter models.SubmissionRunFilter) ([]models.SubmissionRun, int, error) {
	s.filter = filter
	return s.runs, len(s.runs), s.err
}

func (s *stubRunRepo) GetByID(_ context.Context, id string) (*models.SubmissionRun, error) {
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "submission run not found")
}

func (s *stubRunRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, s.err
}

func sampleRuns() []models.SubmissionRun {
	parent := "555"
	doc := "https://files.example.org/summary.pdf"
	return []models.SubmissionRun{{
		ID:              "run-1",
		SchoolName:      "Lincoln Elementary",
		ContactEmail:    "ada@example.org",
		ParentRecordID:  &parent,
		TeacherCount:    3,
		ChildrenCreated: 2,
		DocumentURL:     &doc,
		Status:          models.RunStatusSucceeded,
		Message:         "ok",
		Stages:          models.StageOutcomes{{Stage: models.StageCreateChild, Subject: "B", Error: "boom"}},
		StartedAt:       time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}}
}

func TestRunServiceDisabledWithoutRepository(t *testing.T) {
	svc := NewRunService(nil, nil)
	_, _, err := svc.List(context.Background(), models.SubmissionRunFilter{})
	require.ErrorIs(t, err, appErrors.ErrDisabled)
	_, err = svc.Get(context.Background(), "x")
	require.ErrorIs(t, err, appErrors.ErrDisabled)
}

func TestRunServiceListValidatesStatus(t *testing.T) {
	svc := NewRunService(&stubRunRepo{}, nil)
	_, _, err := svc.List(context.Background(), models.SubmissionRunFilter{Status: "MAYBE"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRunServiceGetNotFound(t *testing.T) {
	svc := NewRunService(&stubRunRepo{runs: sampleRuns()}, nil)
	run, err := svc.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Lincoln Elementary", run.SchoolName)

	_, err = svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRunServiceExportCSV(t *testing.T) {
	repo := &stubRunRepo{runs: sampleRuns()}
	svc := NewRunService(repo, nil)

	data, exporter, err := svc.Export(context.Background(), models.SubmissionRunFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", exporter.ContentType())
	assert.Equal(t, 500, repo.filter.Limit)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, RunExportHeaders, rows[0])
	assert.Equal(t, []string{"run-1", "2026-10-19T09:00:00Z", "Lincoln Elementary", "ada@example.org", "SUCCEEDED", "555", "3", "2", "1", "https://files.example.org/summary.pdf", "ok"}, rows[1])

	_, _, err = svc.Export(context.Background(), models.SubmissionRunFilter{}, "xlsx")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRunServicePrune(t *testing.T) {
	repo := &stubRunRepo{deleted: 4}
	svc := NewRunService(repo, nil)
	n, err := svc.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), repo.cutoff, 5*time.Second)

	_, err = svc.Prune(context.Background(), 0)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
