package models

import "fmt"

// EnrichmentRequest is the wire request sent to the content-generation
// service. Exactly one of SourceDocumentURL / TopicText is set.
type EnrichmentRequest struct {
	SourceDocumentURL string `json:"source_document_url,omitempty"`
	TopicText         string `json:"topic_text,omitempty"`
}

// Validate checks the either/or constraint on the request inputs
func (r EnrichmentRequest) Validate() error {
	if r.SourceDocumentURL == "" && r.TopicText == "" {
		return fmt.Errorf("enrichment request needs a source document or topic text")
	}
	if r.SourceDocumentURL != "" && r.TopicText != "" {
		return fmt.Errorf("enrichment request accepts a source document or topic text, not both")
	}
	return nil
}

// EnrichmentResultKind discriminates the two result shapes
type EnrichmentResultKind string

const (
	ResultLessonSet  EnrichmentResultKind = "lesson_set"
	ResultFullCourse EnrichmentResultKind = "full_course"
)

// GeneratedLesson is one lesson produced by the enrichment service
type GeneratedLesson struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Questions []string `json:"questions,omitempty"`
}

// GeneratedSection is one section of a full-course result
type GeneratedSection struct {
	Title   string            `json:"title"`
	Lessons []GeneratedLesson `json:"lessons"`
}

// EnrichmentResult is the tagged union returned by the enrichment service:
// either a flat lesson set or an entire course outline.
type EnrichmentResult struct {
	Kind EnrichmentResultKind `json:"kind"`

	// lesson_set
	Lessons []GeneratedLesson `json:"lessons,omitempty"`

	// full_course
	Title            string             `json:"title,omitempty"`
	Description      string             `json:"description,omitempty"`
	LearningOutcomes []string           `json:"learning_outcomes,omitempty"`
	Sections         []GeneratedSection `json:"sections,omitempty"`
}

// ToLesson converts a generated lesson into a curriculum lesson.
// Summary and questions carry over verbatim; both asset slots start empty.
func (g GeneratedLesson) ToLesson() Lesson {
	l := NewLesson(g.Title)
	l.Summary = g.Summary
	if len(g.Questions) > 0 {
		l.Questions = append([]string(nil), g.Questions...)
	}
	return l
}
