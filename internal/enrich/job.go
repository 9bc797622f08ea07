package enrich

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrJobNotFound         = errors.New("enrichment job not found")
	ErrManualSectionsExist = errors.New("draft has manually authored sections; full-course enrichment requires confirmation")
)

// Mode selects which enrichment result shape is requested
type Mode string

const (
	ModeLessonSet  Mode = "lesson_set"
	ModeFullCourse Mode = "full_course"
)

// Status is the lifecycle state of an enrichment job
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusMerged  Status = "merged"
	StatusFailed  Status = "failed"
)

// Job tracks one asynchronous enrichment run against a draft
type Job struct {
	ID         string     `json:"id"`
	DraftID    string     `json:"draft_id"`
	Mode       Mode       `json:"mode"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Done reports whether the job reached a terminal state
func (j *Job) Done() bool {
	return j.Status == StatusMerged || j.Status == StatusFailed
}

// Store persists job state across its lifecycle. Jobs are transient;
// implementations may expire terminal jobs after a retention window.
type Store interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Close() error
}
