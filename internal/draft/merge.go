package draft

import (
	"github.com/coursekit/draft-engine/internal/models"
)

// AutoSectionTitle is the reserved title of the section holding generated
// lessons. Regenerating from updated source material replaces that section's
// lessons wholesale instead of accumulating duplicates.
const AutoSectionTitle = "Auto-Generated Lessons"

// MergeLessons folds a lesson-set enrichment result into the draft. If a
// section with the reserved title already exists its lesson list is replaced;
// otherwise a new section is appended. Enrichment input scratch fields are
// cleared on success.
func MergeLessons(d *models.CourseDraft, lessons []models.GeneratedLesson) *models.CourseDraft {
	next := d.Clone()

	converted := make([]models.Lesson, len(lessons))
	for i, g := range lessons {
		converted[i] = g.ToLesson()
	}

	replaced := false
	for i := range next.Curriculum {
		if next.Curriculum[i].Title == AutoSectionTitle {
			next.Curriculum[i].Lessons = converted
			replaced = true
			break
		}
	}
	if !replaced {
		next.Curriculum = append(next.Curriculum, models.Section{
			Title:   AutoSectionTitle,
			Lessons: converted,
		})
	}

	clearEnrichmentInputs(next)
	return next
}

// MergeFullCourse overwrites the draft's metadata and replaces the entire
// curriculum with the generated sections. This is deliberately destructive:
// manually authored sections are discarded. Callers must confirm with the
// user before invoking it when manual sections exist.
func MergeFullCourse(d *models.CourseDraft, result *models.EnrichmentResult) *models.CourseDraft {
	next := d.Clone()

	next.Title = result.Title
	next.Description = result.Description
	next.LearningOutcomes = append([]string(nil), result.LearningOutcomes...)

	next.Curriculum = make([]models.Section, len(result.Sections))
	for i, gs := range result.Sections {
		section := models.Section{Title: gs.Title, Lessons: make([]models.Lesson, len(gs.Lessons))}
		for j, g := range gs.Lessons {
			section.Lessons[j] = g.ToLesson()
		}
		next.Curriculum[i] = section
	}

	clearEnrichmentInputs(next)
	return next
}

func clearEnrichmentInputs(d *models.CourseDraft) {
	d.SourceDocument = models.EmptySlot()
	d.TopicText = ""
}
