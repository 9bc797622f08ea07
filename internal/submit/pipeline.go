// Package submit runs the all-or-nothing submission pipeline: validate the
// whole draft, upload every staged asset, then hand the flattened payload to
// the course-creation API. The pipeline stops at the first failing stage and
// never calls the API with missing assets.
package submit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/services"
	"github.com/coursekit/draft-engine/internal/staging"
	"github.com/coursekit/draft-engine/internal/storage"
	"github.com/coursekit/draft-engine/internal/uploads"
	"github.com/coursekit/draft-engine/internal/validate"
)

// Outcome names the stage a submission settled in
type Outcome string

const (
	OutcomeRejected     Outcome = storage.SubmissionRejected
	OutcomeUploadFailed Outcome = storage.SubmissionUploadFailed
	OutcomeAPIFailed    Outcome = storage.SubmissionAPIFailed
	OutcomeCreated      Outcome = storage.SubmissionCreated
)

// Result is the settled report of one submission attempt. FinalDraft always
// reflects any slots that were rewritten to uploaded URLs, so a retry after
// a late failure skips the uploads that already succeeded.
type Result struct {
	Outcome          Outcome                   `json:"outcome"`
	CourseID         string                    `json:"course_id,omitempty"`
	ValidationErrors validate.ErrorMap         `json:"validation_errors,omitempty"`
	UploadFailures   []uploads.Failure         `json:"upload_failures,omitempty"`
	APIError         *services.SubmissionError `json:"api_error,omitempty"`
	FinalDraft       *models.CourseDraft       `json:"-"`
}

// Pipeline wires the three submission stages together
type Pipeline struct {
	uploader *uploads.Orchestrator
	courses  services.CourseAPI
	repo     storage.Repository
}

// NewPipeline creates a submission pipeline. repo may be nil, in which case
// no audit records are written.
func NewPipeline(uploader *uploads.Orchestrator, courses services.CourseAPI, repo storage.Repository) *Pipeline {
	return &Pipeline{uploader: uploader, courses: courses, repo: repo}
}

// Run executes one submission attempt for the given draft on behalf of the
// principal. pending lists the staged files still awaiting upload.
func (p *Pipeline) Run(ctx context.Context, draftID, principal string, d *models.CourseDraft, pending []staging.Pending) *Result {
	result := &Result{FinalDraft: d}

	if errs := validate.CheckAll(d); len(errs) > 0 {
		result.Outcome = OutcomeRejected
		result.ValidationErrors = errs
		slog.Info("submission rejected by validation",
			"draft_id", draftID,
			"errors", len(errs),
		)
		p.audit(ctx, draftID, principal, result)
		return result
	}

	upRes := p.uploader.UploadAll(ctx, pending)

	// Rewrite every successfully uploaded slot before deciding the outcome.
	// Uploaded URLs survive a later failure so retries do not re-upload.
	final := d.Clone()
	for slot, url := range upRes.Uploaded {
		applyUpload(final, slot, url)
	}
	result.FinalDraft = final

	if !upRes.OK() {
		result.Outcome = OutcomeUploadFailed
		result.UploadFailures = upRes.Failures
		slog.Warn("submission halted on upload failures",
			"draft_id", draftID,
			"uploaded", len(upRes.Uploaded),
			"failed", len(upRes.Failures),
		)
		p.audit(ctx, draftID, principal, result)
		return result
	}

	courseID, err := p.courses.CreateCourse(ctx, principal, models.BuildPayload(final))
	if err != nil {
		var serr *services.SubmissionError
		if !errors.As(err, &serr) {
			serr = &services.SubmissionError{Reason: services.SubmitReasonServerError, Message: err.Error()}
		}
		result.Outcome = OutcomeAPIFailed
		result.APIError = serr
		slog.Error("course creation failed",
			"draft_id", draftID,
			"reason", serr.Reason,
			"error", serr.Message,
		)
		p.audit(ctx, draftID, principal, result)
		return result
	}

	result.Outcome = OutcomeCreated
	result.CourseID = courseID
	slog.Info("course created", "draft_id", draftID, "course_id", courseID)
	p.audit(ctx, draftID, principal, result)
	return result
}

// applyUpload writes an uploaded URL into the slot it belongs to. Slots whose
// lesson was removed between staging and upload are skipped.
func applyUpload(d *models.CourseDraft, id models.SlotID, url string) {
	slot := models.UploadedSlot(url)
	switch id {
	case models.SlotCoverImage:
		d.CoverImage = slot
	case models.SlotPreviewVideo:
		d.PreviewVideo = slot
	case models.SlotSourceDocument:
		d.SourceDocument = slot
	default:
		si, li, ok := id.LessonIndexes()
		if !ok || si >= len(d.Curriculum) || li >= len(d.Curriculum[si].Lessons) {
			return
		}
		lesson := &d.Curriculum[si].Lessons[li]
		if kind, _ := id.ExpectedKind(); kind == models.KindVideo {
			lesson.VideoAsset = slot
		} else {
			lesson.MaterialAsset = slot
		}
	}
}

// audit records the attempt; audit failures are logged, never surfaced
func (p *Pipeline) audit(ctx context.Context, draftID, principal string, result *Result) {
	if p.repo == nil {
		return
	}

	record := &storage.SubmissionRecord{
		ID:        uuid.New().String()[:12],
		DraftID:   draftID,
		Principal: principal,
		Status:    string(result.Outcome),
		CourseID:  result.CourseID,
		CreatedAt: time.Now(),
	}

	detail := make(map[string]any)
	if len(result.ValidationErrors) > 0 {
		detail["validation_errors"] = result.ValidationErrors
	}
	if len(result.UploadFailures) > 0 {
		detail["upload_failures"] = result.UploadFailures
	}
	if result.APIError != nil {
		detail["api_error"] = result.APIError
	}
	if len(detail) > 0 {
		record.Detail = detail
	}

	if err := p.repo.RecordSubmission(ctx, record); err != nil {
		slog.Error("failed to record submission", "draft_id", draftID, "error", err)
	}
}
