package models

import (
	"fmt"
	"strings"
	"time"
)

// AssetKind classifies the media a slot accepts
type AssetKind string

const (
	KindImage    AssetKind = "image"
	KindVideo    AssetKind = "video"
	KindDocument AssetKind = "document"
)

// KindFromContentType maps a declared MIME type to an asset kind.
// Anything that is not an image or a video counts as a document
// (PDFs, archives, plain text course material).
func KindFromContentType(contentType string) AssetKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	default:
		return KindDocument
	}
}

// SlotState is the discriminator of the AssetSlot tagged union
type SlotState string

const (
	SlotEmpty    SlotState = "empty"
	SlotStaged   SlotState = "staged"
	SlotUploaded SlotState = "uploaded"
)

// StagedFile describes a locally staged binary that has not been uploaded yet
type StagedFile struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Kind        AssetKind `json:"kind"`
	Size        int64     `json:"size"`
	Path        string    `json:"-"` // location in the staging directory, never serialized
	StagedAt    time.Time `json:"staged_at"`
}

// AssetSlot holds either nothing, a staged local file, or an uploaded asset URL.
// A slot is never staged and uploaded at the same time: uploading transitions
// staged → uploaded and drops the local file reference.
type AssetSlot struct {
	State SlotState   `json:"state"`
	File  *StagedFile `json:"file,omitempty"`
	URL   string      `json:"url,omitempty"`
}

// EmptySlot returns a slot holding nothing
func EmptySlot() AssetSlot {
	return AssetSlot{State: SlotEmpty}
}

// StagedSlot returns a slot holding a staged local file
func StagedSlot(f *StagedFile) AssetSlot {
	return AssetSlot{State: SlotStaged, File: f}
}

// UploadedSlot returns a slot holding a durable asset URL
func UploadedSlot(url string) AssetSlot {
	return AssetSlot{State: SlotUploaded, URL: url}
}

// IsEmpty reports whether the slot holds nothing.
// The zero value of AssetSlot counts as empty.
func (s AssetSlot) IsEmpty() bool {
	return s.State != SlotStaged && s.State != SlotUploaded
}

// IsStaged reports whether the slot holds a staged local file
func (s AssetSlot) IsStaged() bool {
	return s.State == SlotStaged
}

// IsUploaded reports whether the slot holds an uploaded asset URL
func (s AssetSlot) IsUploaded() bool {
	return s.State == SlotUploaded
}

// ResolvedURL returns the uploaded URL, or nil for any other state.
// Used when serializing the final course payload.
func (s AssetSlot) ResolvedURL() *string {
	if s.State == SlotUploaded {
		url := s.URL
		return &url
	}
	return nil
}

// Lesson is a single curriculum entry. Provenance is derived, not stored:
// a lesson with a summary or questions came from the enrichment service.
type Lesson struct {
	Title         string    `json:"title"`
	DurationLabel string    `json:"duration_label"`
	VideoAsset    AssetSlot `json:"video_asset"`
	MaterialAsset AssetSlot `json:"material_asset"`
	Summary       string    `json:"summary,omitempty"`
	Questions     []string  `json:"questions,omitempty"`
}

// IsGenerated reports whether the lesson originated from the enrichment
// service. Generated lessons are exempt from duration and asset requirements.
func (l Lesson) IsGenerated() bool {
	return l.Summary != "" || len(l.Questions) > 0
}

// NewLesson returns a manual lesson with both asset slots empty
func NewLesson(title string) Lesson {
	return Lesson{
		Title:         title,
		VideoAsset:    EmptySlot(),
		MaterialAsset: EmptySlot(),
	}
}

// Section groups lessons. Order within Curriculum is presentation order.
type Section struct {
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

// CourseDraft is the root document of an editing session
type CourseDraft struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	LearningOutcomes []string  `json:"learning_outcomes,omitempty"`
	InstructorName   string    `json:"instructor_name"`
	Price            *float64  `json:"price,omitempty"`
	CoverImage       AssetSlot `json:"cover_image"`
	PreviewVideo     AssetSlot `json:"preview_video"`
	Curriculum       []Section `json:"curriculum"`

	// Enrichment input scratch fields, cleared by a successful merge
	SourceDocument AssetSlot `json:"source_document"`
	TopicText      string    `json:"topic_text,omitempty"`
}

// NewCourseDraft returns an empty draft with all slots empty
func NewCourseDraft() *CourseDraft {
	return &CourseDraft{
		CoverImage:     EmptySlot(),
		PreviewVideo:   EmptySlot(),
		SourceDocument: EmptySlot(),
	}
}

// Clone returns a deep copy of the draft. Structural edit operations work on
// copies so that callers holding the previous document never observe changes.
func (d *CourseDraft) Clone() *CourseDraft {
	out := *d
	if d.LearningOutcomes != nil {
		out.LearningOutcomes = append([]string(nil), d.LearningOutcomes...)
	}
	if d.Price != nil {
		p := *d.Price
		out.Price = &p
	}
	out.Curriculum = make([]Section, len(d.Curriculum))
	for i, sec := range d.Curriculum {
		copied := Section{Title: sec.Title, Lessons: make([]Lesson, len(sec.Lessons))}
		for j, l := range sec.Lessons {
			if l.Questions != nil {
				l.Questions = append([]string(nil), l.Questions...)
			}
			copied.Lessons[j] = l
		}
		out.Curriculum[i] = copied
	}
	return &out
}

// ManualSectionCount returns the number of sections holding at least one
// manual lesson (or no lessons at all). Used to gate the destructive
// full-course merge behind an explicit confirmation.
func (d *CourseDraft) ManualSectionCount() int {
	count := 0
	for _, sec := range d.Curriculum {
		manual := len(sec.Lessons) == 0
		for _, l := range sec.Lessons {
			if !l.IsGenerated() {
				manual = true
				break
			}
		}
		if manual {
			count++
		}
	}
	return count
}

// SlotID identifies a logical asset slot inside a draft. Lesson slots use the
// same path grammar as validation error keys: section[i].lesson[j].video.
type SlotID string

const (
	SlotCoverImage     SlotID = "coverImage"
	SlotPreviewVideo   SlotID = "previewVideo"
	SlotSourceDocument SlotID = "sourceDocument"
)

// LessonVideoSlot returns the slot ID for a lesson's video asset
func LessonVideoSlot(sectionIdx, lessonIdx int) SlotID {
	return SlotID(fmt.Sprintf("section[%d].lesson[%d].video", sectionIdx, lessonIdx))
}

// LessonMaterialSlot returns the slot ID for a lesson's course material asset
func LessonMaterialSlot(sectionIdx, lessonIdx int) SlotID {
	return SlotID(fmt.Sprintf("section[%d].lesson[%d].material", sectionIdx, lessonIdx))
}

// ExpectedKind returns the media kind a slot accepts
func (id SlotID) ExpectedKind() (AssetKind, error) {
	switch id {
	case SlotCoverImage:
		return KindImage, nil
	case SlotPreviewVideo:
		return KindVideo, nil
	case SlotSourceDocument:
		return KindDocument, nil
	}
	if _, _, field, err := parseLessonSlot(id); err == nil {
		if field == "video" {
			return KindVideo, nil
		}
		return KindDocument, nil
	}
	return "", fmt.Errorf("unknown slot id: %s", id)
}

// LessonIndexes returns the section/lesson indexes for a lesson slot,
// or ok=false for the top-level slots.
func (id SlotID) LessonIndexes() (sectionIdx, lessonIdx int, ok bool) {
	si, li, _, err := parseLessonSlot(id)
	if err != nil {
		return 0, 0, false
	}
	return si, li, true
}

// ParseSlotID validates a slot identifier coming in over the API
func ParseSlotID(raw string) (SlotID, error) {
	switch SlotID(raw) {
	case SlotCoverImage, SlotPreviewVideo, SlotSourceDocument:
		return SlotID(raw), nil
	}
	if _, _, _, err := parseLessonSlot(SlotID(raw)); err != nil {
		return "", err
	}
	return SlotID(raw), nil
}

func parseLessonSlot(id SlotID) (sectionIdx, lessonIdx int, field string, err error) {
	var si, li int
	var f string
	n, err := fmt.Sscanf(string(id), "section[%d].lesson[%d].%s", &si, &li, &f)
	if err != nil || n != 3 {
		return 0, 0, "", fmt.Errorf("invalid slot id: %s", id)
	}
	if f != "video" && f != "material" {
		return 0, 0, "", fmt.Errorf("invalid slot field: %s", f)
	}
	if si < 0 || li < 0 {
		return 0, 0, "", fmt.Errorf("invalid slot indexes in %s", id)
	}
	return si, li, f, nil
}

// Slot returns the asset slot a slot ID points at inside the draft.
// Lesson slots with out-of-range indexes return ok=false.
func (d *CourseDraft) Slot(id SlotID) (AssetSlot, bool) {
	switch id {
	case SlotCoverImage:
		return d.CoverImage, true
	case SlotPreviewVideo:
		return d.PreviewVideo, true
	case SlotSourceDocument:
		return d.SourceDocument, true
	}
	si, li, field, err := parseLessonSlot(id)
	if err != nil || si >= len(d.Curriculum) || li >= len(d.Curriculum[si].Lessons) {
		return AssetSlot{}, false
	}
	lesson := d.Curriculum[si].Lessons[li]
	if field == "video" {
		return lesson.VideoAsset, true
	}
	return lesson.MaterialAsset, true
}
