// Package draft owns the canonical course document of an editing session and
// the merge semantics for enrichment results. All structural operations are
// immutable-update style: they build a new document and return it, so change
// detection is a pointer comparison and old snapshots stay stable.
package draft

import (
	"github.com/coursekit/draft-engine/internal/models"
)

// Store holds the canonical document reference for one editing session.
// It does no locking of its own; callers serialize access.
type Store struct {
	current *models.CourseDraft
}

// NewStore creates a store around an initial document
func NewStore(d *models.CourseDraft) *Store {
	if d == nil {
		d = models.NewCourseDraft()
	}
	return &Store{current: d}
}

// Current returns the canonical document
func (s *Store) Current() *models.CourseDraft {
	return s.current
}

// Swap replaces the canonical document wholesale and returns it.
// Used by merge operations and the submission rewrite.
func (s *Store) Swap(d *models.CourseDraft) *models.CourseDraft {
	s.current = d
	return s.current
}

// MetadataPatch carries partial updates to the draft's basic fields.
// Nil members leave the current value untouched.
type MetadataPatch struct {
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	InstructorName *string  `json:"instructor_name,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	TopicText      *string  `json:"topic_text,omitempty"`
}

// SetMetadata applies a partial metadata update
func (s *Store) SetMetadata(patch MetadataPatch) *models.CourseDraft {
	next := s.current.Clone()
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.InstructorName != nil {
		next.InstructorName = *patch.InstructorName
	}
	if patch.Price != nil {
		p := *patch.Price
		next.Price = &p
	}
	if patch.TopicText != nil {
		next.TopicText = *patch.TopicText
	}
	return s.Swap(next)
}

// AddSection appends a section to the curriculum
func (s *Store) AddSection(title string) *models.CourseDraft {
	next := s.current.Clone()
	next.Curriculum = append(next.Curriculum, models.Section{Title: title})
	return s.Swap(next)
}

// RemoveSection deletes a section by index. Out-of-range indexes are a no-op
// returning the unchanged document: indexes may race with in-flight UI edits.
func (s *Store) RemoveSection(index int) *models.CourseDraft {
	if index < 0 || index >= len(s.current.Curriculum) {
		return s.current
	}
	next := s.current.Clone()
	next.Curriculum = append(next.Curriculum[:index], next.Curriculum[index+1:]...)
	return s.Swap(next)
}

// AddLesson appends a lesson to a section. A bad section index is a no-op.
func (s *Store) AddLesson(sectionIdx int, lesson models.Lesson) *models.CourseDraft {
	if sectionIdx < 0 || sectionIdx >= len(s.current.Curriculum) {
		return s.current
	}
	if lesson.VideoAsset.State == "" {
		lesson.VideoAsset = models.EmptySlot()
	}
	if lesson.MaterialAsset.State == "" {
		lesson.MaterialAsset = models.EmptySlot()
	}
	next := s.current.Clone()
	sec := &next.Curriculum[sectionIdx]
	sec.Lessons = append(sec.Lessons, lesson)
	return s.Swap(next)
}

// RemoveLesson deletes a lesson. Out-of-range indexes are a no-op.
func (s *Store) RemoveLesson(sectionIdx, lessonIdx int) *models.CourseDraft {
	if sectionIdx < 0 || sectionIdx >= len(s.current.Curriculum) {
		return s.current
	}
	if lessonIdx < 0 || lessonIdx >= len(s.current.Curriculum[sectionIdx].Lessons) {
		return s.current
	}
	next := s.current.Clone()
	sec := &next.Curriculum[sectionIdx]
	sec.Lessons = append(sec.Lessons[:lessonIdx], sec.Lessons[lessonIdx+1:]...)
	return s.Swap(next)
}

// ReplaceLesson overwrites a lesson in place. Out-of-range indexes are a no-op.
func (s *Store) ReplaceLesson(sectionIdx, lessonIdx int, lesson models.Lesson) *models.CourseDraft {
	if sectionIdx < 0 || sectionIdx >= len(s.current.Curriculum) {
		return s.current
	}
	if lessonIdx < 0 || lessonIdx >= len(s.current.Curriculum[sectionIdx].Lessons) {
		return s.current
	}
	if lesson.VideoAsset.State == "" {
		lesson.VideoAsset = models.EmptySlot()
	}
	if lesson.MaterialAsset.State == "" {
		lesson.MaterialAsset = models.EmptySlot()
	}
	next := s.current.Clone()
	next.Curriculum[sectionIdx].Lessons[lessonIdx] = lesson
	return s.Swap(next)
}

// SetSlot writes an asset slot addressed by slot ID. Lesson slots with
// out-of-range indexes are a no-op.
func (s *Store) SetSlot(id models.SlotID, slot models.AssetSlot) *models.CourseDraft {
	next := s.current.Clone()
	switch id {
	case models.SlotCoverImage:
		next.CoverImage = slot
	case models.SlotPreviewVideo:
		next.PreviewVideo = slot
	case models.SlotSourceDocument:
		next.SourceDocument = slot
	default:
		si, li, ok := id.LessonIndexes()
		if !ok || si >= len(next.Curriculum) || li >= len(next.Curriculum[si].Lessons) {
			return s.current
		}
		lesson := &next.Curriculum[si].Lessons[li]
		if kind, _ := id.ExpectedKind(); kind == models.KindVideo {
			lesson.VideoAsset = slot
		} else {
			lesson.MaterialAsset = slot
		}
	}
	return s.Swap(next)
}

// ResetAfterSubmit discards the submitted document and installs a fresh empty
// draft. Freshly uploaded cover and preview URLs carry over so the next draft
// does not force a re-upload of session-level media.
func (s *Store) ResetAfterSubmit() *models.CourseDraft {
	prev := s.current
	next := models.NewCourseDraft()
	if prev.CoverImage.IsUploaded() {
		next.CoverImage = prev.CoverImage
	}
	if prev.PreviewVideo.IsUploaded() {
		next.PreviewVideo = prev.PreviewVideo
	}
	return s.Swap(next)
}
