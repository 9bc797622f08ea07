package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/draft-engine/internal/draft"
	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/services"
)

// DraftAccess is the slice of a draft session the runner needs: read the
// current draft, apply an atomic merge, and discard the staged source
// document once it has been consumed.
type DraftAccess interface {
	DraftID() string
	Snapshot() *models.CourseDraft
	Update(fn func(*models.CourseDraft) *models.CourseDraft)
	ClearStagedSlot(id models.SlotID)
}

// Runner drives enrichment jobs: it uploads the staged source document if
// one exists, calls the enrichment service and merges the result back into
// the draft in the background.
type Runner struct {
	enrichment services.Enrichment
	storage    services.ObjectStorage
	store      Store
	bus        *EventBus
	timeout    time.Duration
}

// NewRunner creates an enrichment runner
func NewRunner(enrichment services.Enrichment, storage services.ObjectStorage, store Store, bus *EventBus, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{
		enrichment: enrichment,
		storage:    storage,
		store:      store,
		bus:        bus,
		timeout:    timeout,
	}
}

// Start validates the enrichment inputs and launches the job in the
// background. The returned job is in the pending state.
func (r *Runner) Start(ctx context.Context, target DraftAccess, mode Mode, confirmReplace bool) (*Job, error) {
	if mode != ModeLessonSet && mode != ModeFullCourse {
		return nil, fmt.Errorf("unknown enrichment mode %q", mode)
	}

	snapshot := target.Snapshot()

	if snapshot.SourceDocument.IsEmpty() && snapshot.TopicText == "" {
		return nil, fmt.Errorf("enrichment needs a staged source document or topic text")
	}
	if !snapshot.SourceDocument.IsEmpty() && snapshot.TopicText != "" {
		return nil, fmt.Errorf("enrichment accepts a source document or topic text, not both")
	}

	// Replacing a hand-built curriculum is destructive and needs an
	// explicit confirmation from the caller.
	if mode == ModeFullCourse && snapshot.ManualSectionCount() > 0 && !confirmReplace {
		return nil, ErrManualSectionsExist
	}

	job := &Job{
		ID:        uuid.New().String()[:12],
		DraftID:   target.DraftID(),
		Mode:      mode,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	if err := r.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	r.publish(job)

	go r.run(*job, target)

	slog.Info("enrichment job started",
		"job_id", job.ID,
		"draft_id", job.DraftID,
		"mode", job.Mode,
	)
	return job, nil
}

// run executes the job lifecycle in the background
func (r *Runner) run(job Job, target DraftAccess) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	r.transition(ctx, &job, StatusRunning, "")

	snapshot := target.Snapshot()

	req := models.EnrichmentRequest{TopicText: snapshot.TopicText}
	usedStagedDocument := false

	switch {
	case snapshot.SourceDocument.State == models.SlotUploaded:
		req.SourceDocumentURL = snapshot.SourceDocument.URL
	case snapshot.SourceDocument.State == models.SlotStaged:
		url, err := r.storage.Upload(ctx, snapshot.SourceDocument.File)
		if err != nil {
			r.fail(ctx, &job, fmt.Errorf("source document upload failed: %w", err))
			return
		}
		req.SourceDocumentURL = url
		usedStagedDocument = true
	}

	result, err := r.enrichment.Generate(ctx, req)
	if err != nil {
		r.fail(ctx, &job, err)
		return
	}

	if err := r.merge(target, job.Mode, result); err != nil {
		r.fail(ctx, &job, err)
		return
	}
	if usedStagedDocument {
		target.ClearStagedSlot(models.SlotSourceDocument)
	}

	r.transition(ctx, &job, StatusMerged, "")
	slog.Info("enrichment job merged", "job_id", job.ID, "draft_id", job.DraftID)
}

// merge applies the result to the draft, guarding against a result shape
// that does not match the requested mode.
func (r *Runner) merge(target DraftAccess, mode Mode, result *models.EnrichmentResult) error {
	switch {
	case mode == ModeLessonSet && result.Kind == models.ResultLessonSet:
		if len(result.Lessons) == 0 {
			return fmt.Errorf("enrichment service returned no lessons")
		}
		target.Update(func(d *models.CourseDraft) *models.CourseDraft {
			return draft.MergeLessons(d, result.Lessons)
		})
	case mode == ModeFullCourse && result.Kind == models.ResultFullCourse:
		if len(result.Sections) == 0 {
			return fmt.Errorf("enrichment service returned no sections")
		}
		target.Update(func(d *models.CourseDraft) *models.CourseDraft {
			return draft.MergeFullCourse(d, result)
		})
	default:
		return fmt.Errorf("enrichment service returned %q for a %q request", result.Kind, mode)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, job *Job, err error) {
	slog.Error("enrichment job failed", "job_id", job.ID, "draft_id", job.DraftID, "error", err)
	r.transition(ctx, job, StatusFailed, err.Error())
}

// transition persists a status change and publishes it on the bus
func (r *Runner) transition(ctx context.Context, job *Job, status Status, errMsg string) {
	job.Status = status
	job.Error = errMsg
	if job.Done() {
		now := time.Now()
		job.FinishedAt = &now
	}

	if err := r.store.Save(ctx, job); err != nil {
		slog.Error("failed to persist job state", "job_id", job.ID, "error", err)
	}
	r.publish(job)
}

func (r *Runner) publish(job *Job) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(Event{
		JobID:   job.ID,
		DraftID: job.DraftID,
		Mode:    job.Mode,
		Status:  job.Status,
		Error:   job.Error,
	})
}
