package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-intake-api/internal/dto"
	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/internal/service"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

type processorMock struct {
	result *service.SubmissionResult
	err    error
	got    models.Submission
	ctxErr error
}

func (m *processorMock) Process(ctx context.Context, sub models.Submission) (*service.SubmissionResult, error) {
	m.got = sub
	m.ctxErr = ctx.Err()
	return m.result, m.err
}

func postSubmission(t *testing.T, h *SubmissionHandler, body []byte) (*httptest.ResponseRecorder, dto.SubmissionResponse) {
	t.Helper()
	return postSubmissionWithContext(t, h, context.Background(), body)
}

func postSubmissionWithContext(t *testing.T, h *SubmissionHandler, ctx context.Context, body []byte) (*httptest.ResponseRecorder, dto.SubmissionResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Submit(c)
	var resp dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestSubmitSuccess(t *testing.T) {
	mock := &processorMock{result: &service.SubmissionResult{Success: true, Message: "Thank you!", RecordID: "555", RunID: "run-1"}}
	h := NewSubmissionHandler(mock, nil)

	body := []byte(`{"school":{"name":"Lincoln","contactEmail":"ada@example.org"},"teachers":[{"name":"Ms. Rivera","gradeLevels":["3"]}]}`)
	w, resp := postSubmission(t, h, body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.SubmissionResponse{Success: true, Message: "Thank you!", RecordID: "555", RunID: "run-1"}, resp)
	assert.Equal(t, "Ms. Rivera", mock.got.Teachers[0].Name)
	assert.Equal(t, []string{"3"}, mock.got.Teachers[0].GradeLevels)
}

func TestSubmitMalformedJSON(t *testing.T) {
	h := NewSubmissionHandler(&processorMock{}, nil)
	w, resp := postSubmission(t, h, []byte(`{"school":`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid submission payload", resp.Message)
}

func TestSubmitValidationFailure(t *testing.T) {
	h := NewSubmissionHandler(&processorMock{err: appErrors.Clone(appErrors.ErrValidation, "invalid submission payload")}, nil)
	w, resp := postSubmission(t, h, []byte(`{"school":{"name":""}}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestSubmitFatalFailureReportsCause(t *testing.T) {
	fatal := appErrors.Wrap(errors.New("monday create_item: Column value is invalid"), appErrors.ErrRemoteService.Code, appErrors.ErrRemoteService.Status, "failed to create parent record")
	mock := &processorMock{
		result: &service.SubmissionResult{Success: false, RunID: "run-2", Message: fatal.Error()},
		err:    fatal,
	}
	h := NewSubmissionHandler(mock, nil)
	w, resp := postSubmission(t, h, []byte(`{"school":{"name":"Lincoln","contactEmail":"ada@example.org"}}`))
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.SubmissionResponse{
		Success: false,
		Message: "failed to create parent record: monday create_item: Column value is invalid",
		RunID:   "run-2",
	}, resp)
}

func TestSubmitFatalFailureWithoutResultUsesError(t *testing.T) {
	mock := &processorMock{err: appErrors.Wrap(errors.New("board unreachable"), appErrors.ErrRemoteService.Code, appErrors.ErrRemoteService.Status, "failed to create parent record")}
	h := NewSubmissionHandler(mock, nil)
	w, resp := postSubmission(t, h, []byte(`{"school":{"name":"Lincoln"}}`))
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "failed to create parent record: board unreachable", resp.Message)
}

func TestSubmitIgnoresClientDisconnect(t *testing.T) {
	mock := &processorMock{result: &service.SubmissionResult{Success: true, Message: "Thank you!", RunID: "run-3"}}
	h := NewSubmissionHandler(mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w, resp := postSubmissionWithContext(t, h, ctx, []byte(`{"school":{"name":"Lincoln"}}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NoError(t, mock.ctxErr)
}

func TestSubmitInternalFailureReportsBadGateway(t *testing.T) {
	mock := &processorMock{err: appErrors.Clone(appErrors.ErrInternal, "submission processing failed")}
	h := NewSubmissionHandler(mock, nil)
	w, resp := postSubmission(t, h, []byte(`{"school":{"name":"Lincoln","contactEmail":"ada@example.org"}}`))
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "submission processing failed", resp.Message)
}
