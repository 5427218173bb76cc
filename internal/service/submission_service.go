package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/config"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
	"github.com/noah-isme/school-intake-api/pkg/monday"
	"github.com/noah-isme/school-intake-api/pkg/storage"
)

const documentLinkText = "Partnership Summary PDF"

var errStageSkipped = errors.New("stage skipped")

type recordClient interface {
	CreateItem(ctx context.Context, name string, columnValues map[string]interface{}) (monday.ItemRef, error)
	CreateSubitem(ctx context.Context, parentID, name string, columnValues map[string]interface{}) (monday.ItemRef, error)
	SetColumnValue(ctx context.Context, ref monday.ItemRef, columnID string, value interface{}) error
	SetLinkValue(ctx context.Context, ref monday.ItemRef, columnID, url, text string) (monday.LinkWrite, error)
	ItemURL(itemID string) string
}

type submissionFolders interface {
	Layout() string
	SubmissionFolder(ctx context.Context, schoolName string) (*storage.Item, error)
	TeacherFolder(ctx context.Context, schoolName string, index int, childID, parentID string) (*storage.Item, error)
	UploadFile(ctx context.Context, folderID string, att models.Attachment) (*storage.Item, error)
}

type documentRenderer interface {
	RenderAndStore(ctx context.Context, folderID string, sub models.Submission, recordID, recordURL string) (*storage.Item, error)
}

type submissionNotifier interface {
	Notify(ctx context.Context, school models.School, teachers []models.Teacher, recordID, recordURL, documentURL string) error
}

type runLedger interface {
	Create(ctx context.Context, run *models.SubmissionRun) error
}

type pipelineMetrics interface {
	ObserveStage(outcome models.StageOutcome)
	ObserveSubmission(status models.RunStatus)
}

// SubmissionResult is what the caller learns about a run. Best-effort stage failures only show up
// in Stages.
type SubmissionResult struct {
	Success         bool                 `json:"success"`
	Message         string               `json:"message"`
	RecordID        string               `json:"recordId,omitempty"`
	RecordURL       string               `json:"recordUrl,omitempty"`
	DocumentURL     string               `json:"documentUrl,omitempty"`
	RunID           string               `json:"runId"`
	ChildrenCreated int                  `json:"childrenCreated"`
	Stages          models.StageOutcomes `json:"-"`
}

// SubmissionService runs the intake pipeline: parent record, school artifacts, child records,
// summary document, notification. Only parent creation is fatal.
type SubmissionService struct {
	records   recordClient
	folders   submissionFolders
	documents documentRenderer
	notifier  submissionNotifier
	ledger    runLedger
	metrics   pipelineMetrics
	columns   ColumnMap
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// SubmissionDeps groups the collaborators of SubmissionService. Ledger and Metrics are optional.
type SubmissionDeps struct {
	Records   recordClient
	Folders   submissionFolders
	Documents documentRenderer
	Notifier  submissionNotifier
	Ledger    runLedger
	Metrics   pipelineMetrics
}

// NewSubmissionService constructs the orchestrator.
func NewSubmissionService(deps SubmissionDeps, columns ColumnMap, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		records:   deps.Records,
		folders:   deps.Folders,
		documents: deps.Documents,
		notifier:  deps.Notifier,
		ledger:    deps.Ledger,
		metrics:   deps.Metrics,
		columns:   columns,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// run carries the mutable state of one pipeline execution.
type run struct {
	id        string
	started   time.Time
	parent    monday.ItemRef
	school    models.School
	teachers  []models.Teacher
	children  int
	document  string
	outcomes  models.StageOutcomes
	logger    *zap.Logger
	folder    *storage.Item
	folderErr error
	folderMu  sync.Mutex
}

// Validate checks a payload without running the pipeline.
func (s *SubmissionService) Validate(sub models.Submission) error {
	if err := s.validator.Struct(sub); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	return nil
}

// Process runs the pipeline for one submission. A validation failure returns only an error. A fatal
// failure returns a result with Success false together with the error. Everything else succeeds.
func (s *SubmissionService) Process(ctx context.Context, sub models.Submission) (result *SubmissionResult, err error) {
	if err := s.Validate(sub); err != nil {
		return nil, err
	}

	r := &run{
		id:       uuid.NewString(),
		started:  s.now().UTC(),
		school:   sub.School,
		teachers: append([]models.Teacher(nil), sub.Teachers...),
	}
	r.logger = s.logger.With(zap.String("run_id", r.id), zap.String("school", sub.School.Name))
	r.logger.Info("submission received", zap.Int("teachers", len(r.teachers)))

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("submission pipeline panicked", zap.Any("panic", rec), zap.Stack("stack"))
			err = appErrors.Wrap(fmt.Errorf("panic: %v", rec), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "submission processing failed")
			result = s.finish(ctx, r, err)
		}
	}()

	if err := s.createParent(ctx, r); err != nil {
		return s.finish(ctx, r, err), err
	}

	s.attachSchoolArtifacts(ctx, r)
	s.createChildren(ctx, r)
	s.bestEffort(ctx, r, models.StageDocument, "", func(ctx context.Context) error {
		return s.renderAndAttachDocument(ctx, r)
	})
	s.bestEffort(ctx, r, models.StageNotify, "", func(ctx context.Context) error {
		if s.notifier == nil {
			return errStageSkipped
		}
		return s.notifier.Notify(ctx, r.school, r.teachers, r.parent.ItemID, s.records.ItemURL(r.parent.ItemID), r.document)
	})

	return s.finish(ctx, r, nil), nil
}

func (s *SubmissionService) createParent(ctx context.Context, r *run) error {
	start := time.Now()
	values, dropped := s.columns.ParentValues(r.school)
	logDropped(r.logger, "school", r.school.Name, dropped)
	ref, err := s.records.CreateItem(ctx, r.school.Name, values)
	outcome := models.StageOutcome{Stage: models.StageCreateParent, OK: err == nil, Duration: time.Since(start).Milliseconds()}
	if err != nil {
		outcome.Error = err.Error()
		s.record(r, outcome)
		r.logger.Error("parent record creation failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrRemoteService.Code, appErrors.ErrRemoteService.Status, "failed to create parent record")
	}
	s.record(r, outcome)
	r.parent = ref
	r.logger = r.logger.With(zap.String("parent_id", ref.ItemID))
	r.logger.Info("parent record created")
	return nil
}

func logDropped(logger *zap.Logger, subject, name string, dropped []DroppedField) {
	for _, d := range dropped {
		logger.Warn("field left off record",
			zap.String("subject", subject),
			zap.String("name", name),
			zap.String("field", d.Field),
			zap.String("value", d.Value),
			zap.String("reason", d.Reason),
		)
	}
}

// attachSchoolArtifacts handles the calendar and the bell schedule independently.
func (s *SubmissionService) attachSchoolArtifacts(ctx context.Context, r *run) {
	s.bestEffort(ctx, r, models.StageCalendar, "", func(ctx context.Context) error {
		url, err := s.attachArtifact(ctx, r, s.columns.CalendarColumn, r.school.CalendarText, r.school.CalendarFile)
		r.school.CalendarURL = url
		return err
	})
	s.bestEffort(ctx, r, models.StageBellSchedule, "", func(ctx context.Context) error {
		url, err := s.attachArtifact(ctx, r, s.columns.BellScheduleColumn, r.school.BellScheduleText, r.school.BellScheduleFile)
		r.school.BellScheduleURL = url
		return err
	})
}

// attachArtifact writes free text to columnID, or uploads file and writes a file marker. The URL of
// an uploaded file is returned even when the column write fails.
func (s *SubmissionService) attachArtifact(ctx context.Context, r *run, columnID, text string, file *models.Attachment) (string, error) {
	if strings.TrimSpace(text) != "" {
		if columnID == "" {
			return "", errStageSkipped
		}
		return "", s.records.SetColumnValue(ctx, r.parent, columnID, text)
	}
	if file == nil {
		return "", errStageSkipped
	}
	folder, err := s.submissionFolder(ctx, r)
	if err != nil {
		return "", err
	}
	item, err := s.folders.UploadFile(ctx, folder.ID, *file)
	if err != nil {
		return "", err
	}
	if columnID == "" {
		return item.URL, nil
	}
	return item.URL, s.records.SetColumnValue(ctx, r.parent, columnID, models.FileMarker(item.URL))
}

// createChildren creates one child record per teacher, in order. Each teacher is isolated.
func (s *SubmissionService) createChildren(ctx context.Context, r *run) {
	perTeacher := s.folders != nil && s.folders.Layout() == config.FolderLayoutPerTeacher
	for i := range r.teachers {
		t := &r.teachers[i]
		if !perTeacher && t.ScheduleFile != nil {
			s.bestEffort(ctx, r, models.StageTeacherFile, t.Name, func(ctx context.Context) error {
				folder, err := s.submissionFolder(ctx, r)
				if err != nil {
					return err
				}
				item, err := s.folders.UploadFile(ctx, folder.ID, *t.ScheduleFile)
				if err != nil {
					return err
				}
				t.ScheduleFileURL = item.URL
				t.Schedule = models.AppendFileMarker(t.Schedule, item.URL)
				return nil
			})
		}

		var child monday.ItemRef
		created := s.bestEffort(ctx, r, models.StageCreateChild, t.Name, func(ctx context.Context) error {
			values, dropped := s.columns.ChildValues(*t)
			logDropped(r.logger, "teacher", t.Name, dropped)
			ref, err := s.records.CreateSubitem(ctx, r.parent.ItemID, t.Name, values)
			if err != nil {
				return err
			}
			child = ref
			t.RecordID = ref.ItemID
			r.children++
			r.logger.Info("child record created", zap.Int("teacher_index", i), zap.String("child_id", ref.ItemID))
			return nil
		})
		if !created {
			r.logger.Warn("teacher skipped after child creation failure", zap.Int("teacher_index", i), zap.String("teacher", t.Name))
			continue
		}
		if perTeacher && t.ScheduleFile != nil {
			s.bestEffort(ctx, r, models.StageTeacherFile, t.Name, func(ctx context.Context) error {
				return s.attachTeacherFolderFile(ctx, r, i, t, child)
			})
		}
	}
}

// attachTeacherFolderFile uploads a schedule into the teacher's own folder and writes the marker on
// the child record.
func (s *SubmissionService) attachTeacherFolderFile(ctx context.Context, r *run, index int, t *models.Teacher, child monday.ItemRef) error {
	folder, err := s.folders.TeacherFolder(ctx, r.school.Name, index, child.ItemID, r.parent.ItemID)
	if err != nil {
		return err
	}
	item, err := s.folders.UploadFile(ctx, folder.ID, *t.ScheduleFile)
	if err != nil {
		return err
	}
	t.ScheduleFileURL = item.URL
	t.Schedule = models.AppendFileMarker(t.Schedule, item.URL)
	if s.columns.ScheduleColumn == "" {
		return nil
	}
	return s.records.SetColumnValue(ctx, child, s.columns.ScheduleColumn, map[string]string{"text": t.Schedule})
}

func (s *SubmissionService) renderAndAttachDocument(ctx context.Context, r *run) error {
	if s.documents == nil {
		return errStageSkipped
	}
	folder, err := s.submissionFolder(ctx, r)
	if err != nil {
		return err
	}
	recordURL := s.records.ItemURL(r.parent.ItemID)
	item, err := s.documents.RenderAndStore(ctx, folder.ID, models.Submission{School: r.school, Teachers: r.teachers}, r.parent.ItemID, recordURL)
	if err != nil {
		return err
	}
	r.document = item.URL
	if s.columns.DocumentColumn == "" {
		return nil
	}
	write, err := s.records.SetLinkValue(ctx, r.parent, s.columns.DocumentColumn, item.URL, documentLinkText)
	if err != nil {
		return err
	}
	r.logger.Info("summary document attached", zap.String("encoder", write.Encoder), zap.Int("attempts", write.Attempts))
	return nil
}

// submissionFolder resolves the run's date folder once. A failure is remembered so later stages
// fail fast instead of asking again.
func (s *SubmissionService) submissionFolder(ctx context.Context, r *run) (*storage.Item, error) {
	if s.folders == nil {
		return nil, appErrors.Clone(appErrors.ErrDisabled, "file storage not configured")
	}
	r.folderMu.Lock()
	defer r.folderMu.Unlock()
	if r.folder == nil && r.folderErr == nil {
		r.folder, r.folderErr = s.folders.SubmissionFolder(ctx, r.school.Name)
	}
	return r.folder, r.folderErr
}

// bestEffort runs fn as an isolated stage. Panics are recovered, failures are logged and counted,
// and the outcome is appended to the run. It reports whether the stage succeeded.
func (s *SubmissionService) bestEffort(ctx context.Context, r *run, stage, subject string, fn func(context.Context) error) bool {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("stage panicked", zap.String("stage", stage), zap.Any("panic", rec), zap.Stack("stack"))
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return fn(ctx)
	}()

	outcome := models.StageOutcome{Stage: stage, Subject: subject, Duration: time.Since(start).Milliseconds()}
	switch {
	case err == nil:
		outcome.OK = true
	case errors.Is(err, errStageSkipped), errors.Is(err, appErrors.ErrDisabled):
		outcome.Skipped = true
	default:
		outcome.Error = err.Error()
		r.logger.Sugar().Warnw("best-effort stage failed", "stage", stage, "subject", subject, "error", err)
	}
	s.record(r, outcome)
	return outcome.OK
}

func (s *SubmissionService) record(r *run, outcome models.StageOutcome) {
	r.outcomes = append(r.outcomes, outcome)
	if s.metrics != nil {
		s.metrics.ObserveStage(outcome)
	}
}

// finish builds the caller's result and writes the ledger row. Ledger failures are only logged.
func (s *SubmissionService) finish(ctx context.Context, r *run, fatal error) *SubmissionResult {
	result := &SubmissionResult{
		Success:         fatal == nil,
		RecordID:        r.parent.ItemID,
		DocumentURL:     r.document,
		RunID:           r.id,
		ChildrenCreated: r.children,
		Stages:          r.outcomes,
	}
	if r.parent.ItemID != "" && s.records != nil {
		result.RecordURL = s.records.ItemURL(r.parent.ItemID)
	}
	status := models.RunStatusSucceeded
	if fatal != nil {
		status = models.RunStatusFailed
		result.Message = fatal.Error()
	} else {
		result.Message = fmt.Sprintf("Thank you! Your inquiry for %s has been received.", r.school.Name)
	}

	r.logger.Info("submission finished",
		zap.String("status", string(status)),
		zap.Int("children_created", r.children),
		zap.Int("teachers", len(r.teachers)),
		zap.Int("stage_failures", r.outcomes.Failures()),
	)
	if s.metrics != nil {
		s.metrics.ObserveSubmission(status)
	}
	if s.ledger != nil {
		row := &models.SubmissionRun{
			ID:              r.id,
			SchoolName:      r.school.Name,
			ContactEmail:    r.school.ContactEmail,
			TeacherCount:    len(r.teachers),
			ChildrenCreated: r.children,
			Status:          status,
			Message:         result.Message,
			Stages:          r.outcomes,
			StartedAt:       r.started,
			FinishedAt:      s.now().UTC(),
		}
		if r.parent.ItemID != "" {
			row.ParentRecordID = &r.parent.ItemID
		}
		if r.document != "" {
			row.DocumentURL = &r.document
		}
		if err := s.ledger.Create(context.WithoutCancel(ctx), row); err != nil {
			r.logger.Warn("ledger write failed", zap.Error(err))
		}
	}
	return result
}
