package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus describes how a pipeline run ended from the caller's point of view.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Stage names used in outcomes, logs and metrics.
const (
	StageCreateParent = "create_parent"
	StageCalendar     = "attach_calendar"
	StageBellSchedule = "attach_bell_schedule"
	StageCreateChild  = "create_child"
	StageTeacherFile  = "attach_teacher_schedule"
	StageDocument     = "render_document"
	StageNotify       = "notify"
)

// StageOutcome records one stage attempt within a run.
type StageOutcome struct {
	Stage    string `json:"stage"`
	Subject  string `json:"subject,omitempty"`
	OK       bool   `json:"ok"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"durationMs"`
}

// StageOutcomes is stored as a JSON text column.
type StageOutcomes []StageOutcome

// Value implements driver.Valuer.
func (s StageOutcomes) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (s *StageOutcomes) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported stage outcomes type %T", src)
	}
}

// Failures counts stages that ran and failed.
func (s StageOutcomes) Failures() int {
	n := 0
	for _, o := range s {
		if !o.OK && !o.Skipped {
			n++
		}
	}
	return n
}

// SubmissionRun is one ledger row.
type SubmissionRun struct {
	ID              string        `db:"id" json:"id"`
	SchoolName      string        `db:"school_name" json:"schoolName"`
	ContactEmail    string        `db:"contact_email" json:"contactEmail"`
	ParentRecordID  *string       `db:"parent_record_id" json:"parentRecordId,omitempty"`
	TeacherCount    int           `db:"teacher_count" json:"teacherCount"`
	ChildrenCreated int           `db:"children_created" json:"childrenCreated"`
	DocumentURL     *string       `db:"document_url" json:"documentUrl,omitempty"`
	Status          RunStatus     `db:"status" json:"status"`
	Message         string        `db:"message" json:"message"`
	Stages          StageOutcomes `db:"stages" json:"stages"`
	StartedAt       time.Time     `db:"started_at" json:"startedAt"`
	FinishedAt      time.Time     `db:"finished_at" json:"finishedAt"`
}

// SubmissionRunFilter narrows ledger listings.
type SubmissionRunFilter struct {
	Status     RunStatus
	SchoolName string
	Since      *time.Time
	Limit      int
	Offset     int
}
