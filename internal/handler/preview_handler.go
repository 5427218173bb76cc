package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-intake-api/internal/dto"
	"github.com/noah-isme/school-intake-api/internal/models"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/response"
)

type documentPreviewer interface {
	Preview(ctx context.Context, sub models.Submission, withPDF bool) (string, []byte, error)
}

type submissionValidator interface {
	Validate(sub models.Submission) error
}

// PreviewHandler renders the summary document for a payload without creating records.
type PreviewHandler struct {
	documents documentPreviewer
	validator submissionValidator
}

// NewPreviewHandler constructs the handler.
func NewPreviewHandler(documents documentPreviewer, validator submissionValidator) *PreviewHandler {
	return &PreviewHandler{documents: documents, validator: validator}
}

// Preview godoc
// @Summary Preview the summary document for a payload
// @Tags Runs
// @Accept json
// @Produce text/html
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "html (default) or pdf"
// @Param payload body models.Submission true "Form payload"
// @Success 200 {file} binary
// @Router /admin/preview [post]
func (h *PreviewHandler) Preview(c *gin.Context) {
	var q dto.PreviewRequest
	_ = c.ShouldBindQuery(&q)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxSubmissionBytes)
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload"))
		return
	}
	if h.validator != nil {
		if err := h.validator.Validate(sub); err != nil {
			response.Error(c, err)
			return
		}
	}
	withPDF := q.Format == "pdf"
	document, pdf, err := h.documents.Preview(c.Request.Context(), sub, withPDF)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	if withPDF {
		c.Data(http.StatusOK, "application/pdf", pdf)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(document))
}
