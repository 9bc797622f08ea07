// Package session holds the in-memory editing sessions. Each session owns
// one draft, its staged files and its wizard position; nothing about the
// draft itself is persisted across process restarts.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/coursekit/draft-engine/internal/draft"
	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/staging"
	"github.com/coursekit/draft-engine/internal/submit"
	"github.com/coursekit/draft-engine/internal/validate"
	"github.com/coursekit/draft-engine/internal/wizard"
)

// Session is one principal's editing session. All draft access goes through
// the session mutex; concurrent API calls on the same draft serialize here.
type Session struct {
	ID        string    `json:"id"`
	Principal string    `json:"principal"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	mu      sync.Mutex
	store   *draft.Store
	staging *staging.Manager
	wizard  *wizard.Controller
}

func newSession(id, principal string, d *models.CourseDraft, stagingDir string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Principal: principal,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		store:     draft.NewStore(d),
		staging:   staging.NewManager(stagingDir),
		wizard:    wizard.New(),
	}
}

// Expired reports whether the session passed its deadline
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Touch pushes the expiry deadline out from now
func (s *Session) Touch(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExpiresAt = time.Now().Add(ttl)
}

// Draft returns the current draft document
func (s *Session) Draft() *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Current()
}

// Step returns the active wizard step
func (s *Session) Step() validate.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Current()
}

// SetMetadata applies a partial metadata update
func (s *Session) SetMetadata(patch draft.MetadataPatch) *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetMetadata(patch)
}

// AddSection appends an empty section
func (s *Session) AddSection(title string) *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddSection(title)
}

// RemoveSection drops a section with all its lessons. Staged files for the
// dropped lessons stay on disk until submit or cleanup; their slots are gone.
func (s *Session) RemoveSection(index int) *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.store.Current()
	if index >= 0 && index < len(d.Curriculum) {
		for li := range d.Curriculum[index].Lessons {
			s.staging.Clear(models.LessonVideoSlot(index, li))
			s.staging.Clear(models.LessonMaterialSlot(index, li))
		}
	}
	return s.store.RemoveSection(index)
}

// AddLesson appends a lesson to a section
func (s *Session) AddLesson(sectionIdx int, lesson models.Lesson) *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddLesson(sectionIdx, lesson)
}

// RemoveLesson drops a lesson and its staged files
func (s *Session) RemoveLesson(sectionIdx, lessonIdx int) *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging.Clear(models.LessonVideoSlot(sectionIdx, lessonIdx))
	s.staging.Clear(models.LessonMaterialSlot(sectionIdx, lessonIdx))
	return s.store.RemoveLesson(sectionIdx, lessonIdx)
}

// ReplaceLesson overwrites a lesson in place
func (s *Session) ReplaceLesson(sectionIdx, lessonIdx int, lesson models.Lesson) *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ReplaceLesson(sectionIdx, lessonIdx, lesson)
}

// StageAsset stages a binary into a slot and records it on the draft.
// Lesson slots must point at an existing lesson.
func (s *Session) StageAsset(slot models.SlotID, filename, contentType string, r io.Reader) (*models.CourseDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Current().Slot(slot); !ok {
		return nil, fmt.Errorf("slot %s does not exist on this draft", slot)
	}

	staged, err := s.staging.Stage(slot, filename, contentType, r)
	if err != nil {
		return nil, err
	}
	return s.store.SetSlot(slot, models.StagedSlot(staged)), nil
}

// ClearAsset empties a slot and discards any staged bytes for it
func (s *Session) ClearAsset(slot models.SlotID) *models.CourseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging.Clear(slot)
	return s.store.SetSlot(slot, models.EmptySlot())
}

// PendingUploads lists the staged files awaiting upload
func (s *Session) PendingUploads() []staging.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staging.ListPending()
}

// Validate runs one step's checks without moving the wizard
func (s *Session) Validate(step validate.Step) validate.ErrorMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return validate.CheckStep(step, s.store.Current())
}

// Advance moves the wizard forward if the current step validates clean
func (s *Session) Advance() (validate.Step, validate.ErrorMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs, moved := s.wizard.Advance(s.store.Current())
	return s.wizard.Current(), errs, moved
}

// Retreat moves the wizard back unconditionally
func (s *Session) Retreat() (validate.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved := s.wizard.Retreat()
	return s.wizard.Current(), moved
}

// DraftID identifies the draft for enrichment jobs and events
func (s *Session) DraftID() string {
	return s.ID
}

// Snapshot returns the draft for a background reader. Drafts are replaced,
// never mutated in place, so the returned document is stable.
func (s *Session) Snapshot() *models.CourseDraft {
	return s.Draft()
}

// Update applies an atomic draft transformation, used by the enrichment
// runner to merge results.
func (s *Session) Update(fn func(*models.CourseDraft) *models.CourseDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Swap(fn(s.store.Current()))
}

// ClearStagedSlot discards the staged bytes of a consumed slot
func (s *Session) ClearStagedSlot(slot models.SlotID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging.Clear(slot)
}

// Submit runs the submission pipeline against a snapshot of the draft. The
// lock is not held across the upload and course-creation calls; the draft is
// immutable, so the snapshot stays coherent while other requests read the
// session. On success the session resets to a fresh draft on the first step;
// on failure the draft keeps any slots that were rewritten to uploaded URLs.
func (s *Session) Submit(ctx context.Context, pipeline *submit.Pipeline) *submit.Result {
	s.mu.Lock()
	current := s.store.Current()
	pending := s.staging.ListPending()
	s.mu.Unlock()

	result := pipeline.Run(ctx, s.ID, s.Principal, current, pending)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Swap(result.FinalDraft)

	// Staged files that made it to storage are no longer pending
	for _, p := range s.staging.ListPending() {
		if slot, ok := result.FinalDraft.Slot(p.Slot); ok && slot.IsUploaded() {
			s.staging.Clear(p.Slot)
		}
	}

	if result.Outcome == submit.OutcomeCreated {
		s.staging.RemoveAll()
		s.wizard.Reset()
		s.store.ResetAfterSubmit()
	}
	return result
}

// Discard drops every staged file. Called when the session is deleted.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging.RemoveAll()
}
