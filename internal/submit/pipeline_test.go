package submit

import (
	"context"
	"sync"
	"testing"

	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/services"
	"github.com/coursekit/draft-engine/internal/staging"
	"github.com/coursekit/draft-engine/internal/storage"
	"github.com/coursekit/draft-engine/internal/uploads"
)

type fakeStorage struct {
	mu   sync.Mutex
	errs map[string]error // keyed by filename
	urls map[string]string
}

func (f *fakeStorage) Upload(_ context.Context, file *models.StagedFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[file.Filename]; ok {
		return "", err
	}
	if url, ok := f.urls[file.Filename]; ok {
		return url, nil
	}
	return "https://cdn.example.com/" + file.Filename, nil
}

type fakeCourses struct {
	mu       sync.Mutex
	calls    int
	payloads []models.CoursePayload
	courseID string
	err      error
}

func (f *fakeCourses) CreateCourse(_ context.Context, _ string, payload models.CoursePayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls += 1
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return "", f.err
	}
	return f.courseID, nil
}

type fakeRepo struct {
	mu      sync.Mutex
	records []*storage.SubmissionRecord
}

func (f *fakeRepo) RecordSubmission(_ context.Context, rec *storage.SubmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRepo) ListSubmissions(_ context.Context, _, _ int) ([]*storage.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

func completeDraft() *models.CourseDraft {
	d := models.NewCourseDraft()
	d.Title = "Practical Go"
	d.Description = "A hands-on course"
	d.InstructorName = "Jane Doe"
	price := 29.0
	d.Price = &price

	lesson := models.NewLesson("Intro")
	lesson.DurationLabel = "10:00"
	lesson.VideoAsset = models.UploadedSlot("https://cdn.example.com/intro.mp4")
	d.Curriculum = []models.Section{{Title: "Basics", Lessons: []models.Lesson{lesson}}}
	return d
}

func stagedPending(slot models.SlotID, filename string, kind models.AssetKind) staging.Pending {
	return staging.Pending{
		Slot: slot,
		File: &models.StagedFile{Filename: filename, Kind: kind},
	}
}

func newPipeline(st *fakeStorage, courses *fakeCourses, repo storage.Repository) *Pipeline {
	return NewPipeline(uploads.NewOrchestrator(st, 2), courses, repo)
}

func TestRunRejectsInvalidDraft(t *testing.T) {
	courses := &fakeCourses{courseID: "c-1"}
	repo := &fakeRepo{}
	p := newPipeline(&fakeStorage{}, courses, repo)

	d := models.NewCourseDraft() // missing everything
	res := p.Run(context.Background(), "draft-1", "user-1", d, nil)

	if res.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", res.Outcome)
	}
	if len(res.ValidationErrors) == 0 {
		t.Error("expected validation errors")
	}
	if courses.calls != 0 {
		t.Error("API must not be called for an invalid draft")
	}
	if len(repo.records) != 1 || repo.records[0].Status != storage.SubmissionRejected {
		t.Error("expected one rejected audit record")
	}
}

func TestRunHaltsOnUploadFailure(t *testing.T) {
	st := &fakeStorage{errs: map[string]error{
		"cover.png": &services.UploadError{Reason: services.UploadReasonTooLarge, Message: "exceeds limit"},
	}}
	courses := &fakeCourses{courseID: "c-1"}
	repo := &fakeRepo{}
	p := newPipeline(st, courses, repo)

	d := completeDraft()
	pending := []staging.Pending{
		stagedPending(models.SlotCoverImage, "cover.png", models.KindImage),
		stagedPending(models.SlotPreviewVideo, "preview.mp4", models.KindVideo),
	}
	res := p.Run(context.Background(), "draft-1", "user-1", d, pending)

	if res.Outcome != OutcomeUploadFailed {
		t.Fatalf("expected upload_failed, got %s", res.Outcome)
	}
	if courses.calls != 0 {
		t.Error("API must not be called when any upload fails")
	}
	if len(res.UploadFailures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(res.UploadFailures))
	}
	failure := res.UploadFailures[0]
	if failure.Slot != models.SlotCoverImage || failure.Cause != "size-limit" {
		t.Errorf("unexpected failure: %+v", failure)
	}

	// The preview upload succeeded and must survive for the retry
	if !res.FinalDraft.PreviewVideo.IsUploaded() {
		t.Error("successful upload should be written into the draft")
	}
	if res.FinalDraft.CoverImage.IsUploaded() {
		t.Error("failed slot must not be marked uploaded")
	}
	if len(repo.records) != 1 || repo.records[0].Status != storage.SubmissionUploadFailed {
		t.Error("expected one upload_failed audit record")
	}
}

func TestRunKeepsUploadsAcrossAPIFailure(t *testing.T) {
	courses := &fakeCourses{err: &services.SubmissionError{Reason: services.SubmitReasonForbidden, Message: "no publish rights"}}
	repo := &fakeRepo{}
	p := newPipeline(&fakeStorage{}, courses, repo)

	d := completeDraft()
	pending := []staging.Pending{stagedPending(models.SlotCoverImage, "cover.png", models.KindImage)}
	res := p.Run(context.Background(), "draft-1", "user-1", d, pending)

	if res.Outcome != OutcomeAPIFailed {
		t.Fatalf("expected api_failed, got %s", res.Outcome)
	}
	if res.APIError == nil || res.APIError.Reason != services.SubmitReasonForbidden {
		t.Errorf("unexpected api error: %+v", res.APIError)
	}
	// Retry after the API failure must not need a re-upload
	if !res.FinalDraft.CoverImage.IsUploaded() {
		t.Error("uploaded cover must persist across the API failure")
	}

	// Second attempt with the rewritten draft and nothing pending succeeds
	courses.err = nil
	courses.courseID = "c-99"
	res2 := p.Run(context.Background(), "draft-1", "user-1", res.FinalDraft, nil)
	if res2.Outcome != OutcomeCreated || res2.CourseID != "c-99" {
		t.Fatalf("expected created c-99, got %s %s", res2.Outcome, res2.CourseID)
	}
}

func TestRunSuccessBuildsPayloadFromRewrittenDraft(t *testing.T) {
	courses := &fakeCourses{courseID: "c-42"}
	repo := &fakeRepo{}
	p := newPipeline(&fakeStorage{}, courses, repo)

	d := completeDraft()
	lesson := models.NewLesson("Staged Lesson")
	lesson.DurationLabel = "05:00"
	lesson.VideoAsset = models.StagedSlot(&models.StagedFile{Filename: "lesson.mp4", Kind: models.KindVideo})
	d.Curriculum[0].Lessons = append(d.Curriculum[0].Lessons, lesson)

	pending := []staging.Pending{
		stagedPending(models.LessonVideoSlot(0, 1), "lesson.mp4", models.KindVideo),
	}
	res := p.Run(context.Background(), "draft-1", "user-1", d, pending)

	if res.Outcome != OutcomeCreated {
		t.Fatalf("expected created, got %s", res.Outcome)
	}
	if res.CourseID != "c-42" {
		t.Errorf("expected course id c-42, got %s", res.CourseID)
	}

	if len(courses.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(courses.payloads))
	}
	payload := courses.payloads[0]
	got := payload.Curriculum[0].Lessons[1].VideoURL
	if got == nil || *got != "https://cdn.example.com/lesson.mp4" {
		t.Error("payload must carry the rewritten asset URL")
	}

	if len(repo.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(repo.records))
	}
	rec := repo.records[0]
	if rec.Status != storage.SubmissionCreated || rec.CourseID != "c-42" || rec.Principal != "user-1" {
		t.Errorf("unexpected audit record: %+v", rec)
	}
}

func TestRunWrapsPlainAPIError(t *testing.T) {
	courses := &fakeCourses{err: context.DeadlineExceeded}
	p := newPipeline(&fakeStorage{}, courses, nil)

	res := p.Run(context.Background(), "draft-1", "user-1", completeDraft(), nil)
	if res.Outcome != OutcomeAPIFailed {
		t.Fatalf("expected api_failed, got %s", res.Outcome)
	}
	if res.APIError == nil || res.APIError.Reason != services.SubmitReasonServerError {
		t.Errorf("plain errors should map to server-error, got %+v", res.APIError)
	}
}
