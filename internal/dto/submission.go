package dto

import "time"

// SubmissionResponse is the body returned to the form. It is not wrapped in the response envelope
// because the form script reads success and message at the top level.
type SubmissionResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RecordID string `json:"recordId,omitempty"`
	RunID    string `json:"runId,omitempty"`
}

// RunListQuery binds the ledger listing query string.
type RunListQuery struct {
	Status string `form:"status"`
	School string `form:"school"`
	Since  string `form:"since"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	Format string `form:"format"`
}

// PreviewRequest renders a payload without running the pipeline.
type PreviewRequest struct {
	Format string `form:"format"`
}

// ReadinessReport lists dependency checks for /ready.
type ReadinessReport struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checkedAt"`
}
