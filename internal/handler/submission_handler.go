package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/dto"
	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/internal/service"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/logger"
)

// MaxSubmissionBytes caps request bodies. Attachments arrive base64 encoded inside the JSON.
const MaxSubmissionBytes = 40 << 20

type submissionProcessor interface {
	Process(ctx context.Context, sub models.Submission) (*service.SubmissionResult, error)
}

// SubmissionHandler receives form submissions.
type SubmissionHandler struct {
	service submissionProcessor
	logger  *zap.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service submissionProcessor, logger *zap.Logger) *SubmissionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionHandler{service: service, logger: logger}
}

// Submit godoc
// @Summary Submit a school partnership inquiry
// @Description Creates the parent record, attaches files, creates one child record per teacher, stores the summary PDF and notifies the team. Only parent record failure is reported as an error.
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body models.Submission true "Form payload"
// @Success 200 {object} dto.SubmissionResponse
// @Failure 400 {object} dto.SubmissionResponse
// @Failure 502 {object} dto.SubmissionResponse
// @Router /submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxSubmissionBytes)
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		message := "invalid submission payload"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "submission too large"
		}
		c.JSON(http.StatusBadRequest, dto.SubmissionResponse{Success: false, Message: message})
		return
	}

	// A client disconnect must not cut the pipeline short once the parent record exists.
	result, err := h.service.Process(context.WithoutCancel(c.Request.Context()), sub)
	if err != nil {
		appErr := appErrors.FromError(err)
		body := dto.SubmissionResponse{Success: false, Message: err.Error()}
		if result != nil {
			body.RunID = result.RunID
			if result.Message != "" {
				body.Message = result.Message
			}
		}
		if appErr.Status >= http.StatusInternalServerError {
			logger.ForRequest(h.logger, c).Error("submission failed", zap.Error(err))
			if appErr.Status != http.StatusBadGateway {
				appErr = appErrors.Clone(appErrors.ErrRemoteService, appErr.Message)
			}
		}
		_ = c.Error(err)
		c.JSON(appErr.Status, body)
		return
	}

	c.JSON(http.StatusOK, dto.SubmissionResponse{
		Success:  result.Success,
		Message:  result.Message,
		RecordID: result.RecordID,
		RunID:    result.RunID,
	})
}
