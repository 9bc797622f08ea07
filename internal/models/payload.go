package models

// CoursePayload is the flattened document sent to the course-creation API
// once every staged asset has been uploaded. Slots serialize to their URL or
// null; generated lesson content carries over verbatim.
type CoursePayload struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	LearningOutcomes []string         `json:"learning_outcomes,omitempty"`
	InstructorName   string           `json:"instructor_name"`
	Price            float64          `json:"price"`
	CoverImageURL    *string          `json:"cover_image_url"`
	PreviewVideoURL  *string          `json:"preview_video_url"`
	Curriculum       []PayloadSection `json:"curriculum"`
}

// PayloadSection mirrors Section in the flattened payload
type PayloadSection struct {
	Title   string          `json:"title"`
	Lessons []PayloadLesson `json:"lessons"`
}

// PayloadLesson mirrors Lesson with asset slots resolved to URLs
type PayloadLesson struct {
	Title         string   `json:"title"`
	DurationLabel string   `json:"duration_label,omitempty"`
	VideoURL      *string  `json:"video_url"`
	MaterialURL   *string  `json:"material_url"`
	Summary       string   `json:"summary,omitempty"`
	Questions     []string `json:"questions,omitempty"`
}

// BuildPayload flattens a fully uploaded draft into the course-creation
// payload. It assumes validation has passed and no slot is still staged.
func BuildPayload(d *CourseDraft) CoursePayload {
	price := 0.0
	if d.Price != nil {
		price = *d.Price
	}

	payload := CoursePayload{
		Title:            d.Title,
		Description:      d.Description,
		LearningOutcomes: d.LearningOutcomes,
		InstructorName:   d.InstructorName,
		Price:            price,
		CoverImageURL:    d.CoverImage.ResolvedURL(),
		PreviewVideoURL:  d.PreviewVideo.ResolvedURL(),
		Curriculum:       make([]PayloadSection, len(d.Curriculum)),
	}

	for i, sec := range d.Curriculum {
		ps := PayloadSection{Title: sec.Title, Lessons: make([]PayloadLesson, len(sec.Lessons))}
		for j, l := range sec.Lessons {
			ps.Lessons[j] = PayloadLesson{
				Title:         l.Title,
				DurationLabel: l.DurationLabel,
				VideoURL:      l.VideoAsset.ResolvedURL(),
				MaterialURL:   l.MaterialAsset.ResolvedURL(),
				Summary:       l.Summary,
				Questions:     l.Questions,
			}
		}
		payload.Curriculum[i] = ps
	}

	return payload
}
