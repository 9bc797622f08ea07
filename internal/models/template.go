package models

// DraftTemplate is a starter skeleton for a new draft, loaded from a YAML
// catalog. Template lessons are always manual: they never carry generated
// summaries or questions.
type DraftTemplate struct {
	Name           string            `yaml:"name" json:"name"`
	Description    string            `yaml:"description" json:"description"`
	Title          string            `yaml:"title" json:"title"`
	CourseSummary  string            `yaml:"course_summary" json:"course_summary"`
	InstructorName string            `yaml:"instructor_name" json:"instructor_name"`
	Price          *float64          `yaml:"price" json:"price,omitempty"`
	Sections       []TemplateSection `yaml:"sections" json:"sections"`
}

// TemplateSection is a section outline within a template
type TemplateSection struct {
	Title   string           `yaml:"title" json:"title"`
	Lessons []TemplateLesson `yaml:"lessons" json:"lessons"`
}

// TemplateLesson is a lesson outline within a template
type TemplateLesson struct {
	Title         string `yaml:"title" json:"title"`
	DurationLabel string `yaml:"duration" json:"duration"`
}

// Instantiate builds a fresh draft from the template skeleton
func (t *DraftTemplate) Instantiate() *CourseDraft {
	d := NewCourseDraft()
	d.Title = t.Title
	d.Description = t.CourseSummary
	d.InstructorName = t.InstructorName
	if t.Price != nil {
		p := *t.Price
		d.Price = &p
	}
	for _, sec := range t.Sections {
		section := Section{Title: sec.Title}
		for _, l := range sec.Lessons {
			lesson := NewLesson(l.Title)
			lesson.DurationLabel = l.DurationLabel
			section.Lessons = append(section.Lessons, lesson)
		}
		d.Curriculum = append(d.Curriculum, section)
	}
	return d
}
