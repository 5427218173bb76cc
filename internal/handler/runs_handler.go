package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-intake-api/internal/dto"
	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/export"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/response"
)

type runReader interface {
	List(ctx context.Context, filter models.SubmissionRunFilter) ([]models.SubmissionRun, int, error)
	Get(ctx context.Context, id string) (*models.SubmissionRun, error)
	Export(ctx context.Context, filter models.SubmissionRunFilter, format string) ([]byte, export.DatasetExporter, error)
}

// RunsHandler exposes the submission ledger to operators.
type RunsHandler struct {
	service runReader
}

// NewRunsHandler constructs the handler.
func NewRunsHandler(service runReader) *RunsHandler {
	return &RunsHandler{service: service}
}

// List godoc
// @Summary List submission runs
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param status query string false "SUCCEEDED or FAILED"
// @Param school query string false "School name contains"
// @Param since query string false "Started on or after (YYYY-MM-DD or RFC3339)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /admin/runs [get]
func (h *RunsHandler) List(c *gin.Context) {
	filter, _, err := bindRunFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	runs, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get godoc
// @Summary Get one submission run with its stage outcomes
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /admin/runs/{id} [get]
func (h *RunsHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// Export godoc
// @Summary Export submission runs as CSV or PDF
// @Tags Runs
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /admin/runs/export [get]
func (h *RunsHandler) Export(c *gin.Context) {
	filter, format, err := bindRunFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, exporter, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("submission-runs-%s.%s", time.Now().UTC().Format("20060102-150405"), exporter.Extension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, exporter.ContentType(), data)
}

func bindRunFilter(c *gin.Context) (models.SubmissionRunFilter, string, error) {
	var q dto.RunListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return models.SubmissionRunFilter{}, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	filter := models.SubmissionRunFilter{
		Status:     models.RunStatus(strings.ToUpper(strings.TrimSpace(q.Status))),
		SchoolName: strings.TrimSpace(q.School),
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if q.Limit < 0 || q.Offset < 0 {
		return filter, "", appErrors.Clone(appErrors.ErrValidation, "limit and offset must not be negative")
	}
	if raw := strings.TrimSpace(q.Since); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			return filter, "", err
		}
		filter.Since = &since
	}
	return filter, strings.ToLower(strings.TrimSpace(q.Format)), nil
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid since, expected YYYY-MM-DD or RFC3339")
	}
	return t, nil
}
