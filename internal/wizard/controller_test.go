package wizard

import (
	"testing"

	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/validate"
)

func completeDraft() *models.CourseDraft {
	d := models.NewCourseDraft()
	d.Title = "Go from scratch"
	d.Description = "A course about Go"
	d.InstructorName = "A. Instructor"
	price := 49.0
	d.Price = &price

	lesson := models.NewLesson("Intro")
	lesson.DurationLabel = "30 min"
	lesson.VideoAsset = models.UploadedSlot("https://cdn.example.com/v.mp4")
	d.Curriculum = []models.Section{{Title: "Basics", Lessons: []models.Lesson{lesson}}}
	return d
}

func TestAdvanceBlockedByValidation(t *testing.T) {
	c := New()
	empty := models.NewCourseDraft()

	errs, moved := c.Advance(empty)
	if moved {
		t.Error("advance must not move with validation errors")
	}
	if len(errs) == 0 {
		t.Error("advance should return the error map")
	}
	if c.Current() != validate.StepBasicInfo {
		t.Errorf("step changed despite errors: %s", c.Current())
	}
}

func TestAdvanceThroughAllSteps(t *testing.T) {
	c := New()
	d := completeDraft()

	if errs, moved := c.Advance(d); !moved {
		t.Fatalf("basic info advance failed: %v", errs)
	}
	if c.Current() != validate.StepCurriculum {
		t.Fatalf("expected curriculum step, got %s", c.Current())
	}
	if errs, moved := c.Advance(d); !moved {
		t.Fatalf("curriculum advance failed: %v", errs)
	}
	if c.Current() != validate.StepReview {
		t.Fatalf("expected review step, got %s", c.Current())
	}

	// review is the last step; a clean advance stays put
	if _, moved := c.Advance(d); moved {
		t.Error("advancing past review should be a no-op")
	}
	if c.Current() != validate.StepReview {
		t.Errorf("step moved past review: %s", c.Current())
	}
}

func TestRetreatAlwaysPermitted(t *testing.T) {
	c := New()
	d := completeDraft()
	c.Advance(d)
	c.Advance(d)

	// draft becomes invalid; retreat still works
	d.Title = ""
	if !c.Retreat() {
		t.Error("retreat from review should succeed")
	}
	if c.Current() != validate.StepCurriculum {
		t.Errorf("expected curriculum, got %s", c.Current())
	}
	if !c.Retreat() {
		t.Error("retreat to first step should succeed")
	}
	if c.Retreat() {
		t.Error("retreat on first step should be a no-op")
	}
}

func TestReset(t *testing.T) {
	c := New()
	d := completeDraft()
	c.Advance(d)
	c.Reset()
	if c.Current() != validate.StepBasicInfo {
		t.Errorf("reset should return to basic info, got %s", c.Current())
	}
}
