package handler

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/response"
)

type signedFileOpener interface {
	OpenSigned(token string) (*os.File, string, string, error)
}

// FilesHandler serves uploads from local storage through signed links.
type FilesHandler struct {
	files signedFileOpener
}

// NewFilesHandler constructs the handler. files may be nil when a remote drive is used.
func NewFilesHandler(files signedFileOpener) *FilesHandler {
	return &FilesHandler{files: files}
}

// Download godoc
// @Summary Download a stored file via signed token
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FilesHandler) Download(c *gin.Context) {
	if h.files == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrDisabled, "local file downloads disabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, mimeType, err := h.files.OpenSigned(token)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "file not found or link expired"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read file"))
		return
	}
	disposition := "attachment"
	if mimeType == "application/pdf" {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), mimeType, file, nil)
}
