// Package validate evaluates a course draft against provenance-aware rules.
// Everything here is a pure function of its inputs: errors accumulate into a
// field-keyed map and are returned for the caller to render, never thrown.
package validate

import (
	"fmt"

	"github.com/coursekit/draft-engine/internal/models"
)

// Step is one of the three sequential wizard phases
type Step string

const (
	StepBasicInfo  Step = "basic_info"
	StepCurriculum Step = "curriculum"
	StepReview     Step = "review"
)

// ParseStep validates a step name coming in over the API
func ParseStep(raw string) (Step, error) {
	switch Step(raw) {
	case StepBasicInfo, StepCurriculum, StepReview:
		return Step(raw), nil
	}
	return "", fmt.Errorf("unknown wizard step: %q", raw)
}

// ErrorMap collects validation errors keyed by a stable field path,
// e.g. "section[2].lesson[0].duration". An empty map means the input is valid.
type ErrorMap map[string]string

// Add records an error for a field path, keeping the first message per path
func (m ErrorMap) Add(path, message string) {
	if _, exists := m[path]; !exists {
		m[path] = message
	}
}

// Merge folds another error map into this one
func (m ErrorMap) Merge(other ErrorMap) {
	for path, msg := range other {
		m.Add(path, msg)
	}
}

// CheckStep runs one wizard step's validators over the draft.
// The review step re-runs both prior steps.
func CheckStep(step Step, d *models.CourseDraft) ErrorMap {
	errs := ErrorMap{}
	switch step {
	case StepBasicInfo:
		checkBasicInfo(d, errs)
	case StepCurriculum:
		checkCurriculum(d, errs)
	case StepReview:
		checkBasicInfo(d, errs)
		checkCurriculum(d, errs)
	}
	return errs
}

// CheckAll validates every step; submission is blocked while any error exists
func CheckAll(d *models.CourseDraft) ErrorMap {
	return CheckStep(StepReview, d)
}

func checkBasicInfo(d *models.CourseDraft, errs ErrorMap) {
	if d.Title == "" {
		errs.Add("title", "title is required")
	}
	if d.Description == "" {
		errs.Add("description", "description is required")
	}
	if d.InstructorName == "" {
		errs.Add("instructorName", "instructor name is required")
	}
	if d.Price == nil {
		errs.Add("price", "price is required")
	} else if *d.Price < 0 {
		errs.Add("price", "price must be a non-negative number")
	}

	checkStagedKind(d.CoverImage, models.KindImage, "coverImage", errs)
	checkStagedKind(d.PreviewVideo, models.KindVideo, "previewVideo", errs)
}

func checkCurriculum(d *models.CourseDraft, errs ErrorMap) {
	if len(d.Curriculum) == 0 {
		errs.Add("curriculum", "add at least one section")
		return
	}

	for i, sec := range d.Curriculum {
		if sec.Title == "" {
			errs.Add(fmt.Sprintf("section[%d].title", i), "section title is required")
		}
		if len(sec.Lessons) == 0 {
			errs.Add(fmt.Sprintf("section[%d].lessons", i), "section needs at least one lesson")
			continue
		}
		for j, lesson := range sec.Lessons {
			checkLesson(lesson, i, j, errs)
		}
	}
}

func checkLesson(l models.Lesson, sectionIdx, lessonIdx int, errs ErrorMap) {
	path := func(field string) string {
		return fmt.Sprintf("section[%d].lesson[%d].%s", sectionIdx, lessonIdx, field)
	}

	if l.Title == "" {
		errs.Add(path("title"), "lesson title is required")
	}

	// File-kind mismatches are reported for every staged lesson asset,
	// regardless of provenance.
	checkStagedKind(l.VideoAsset, models.KindVideo, path("video"), errs)
	checkStagedKind(l.MaterialAsset, models.KindDocument, path("material"), errs)

	// Generated lessons only need a title
	if l.IsGenerated() {
		return
	}

	if l.DurationLabel == "" {
		errs.Add(path("duration"), "lesson duration is required")
	}
	if l.VideoAsset.IsEmpty() && l.MaterialAsset.IsEmpty() {
		errs.Add(path("asset"), "lesson needs a video or course material")
	}
}

func checkStagedKind(slot models.AssetSlot, expected models.AssetKind, path string, errs ErrorMap) {
	if !slot.IsStaged() || slot.File == nil {
		return
	}
	if slot.File.Kind != expected {
		errs.Add(path, fmt.Sprintf("staged file is %s, slot expects %s", slot.File.Kind, expected))
	}
}
