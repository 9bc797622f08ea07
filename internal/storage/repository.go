package storage

import (
	"context"
	"time"
)

// Submission outcome statuses
const (
	SubmissionRejected     = "rejected"      // blocked by validation
	SubmissionUploadFailed = "upload_failed" // one or more assets failed to upload
	SubmissionAPIFailed    = "api_failed"    // course-creation API refused the payload
	SubmissionCreated      = "created"       // course created
)

// SubmissionRecord is one audit row for a submission attempt. Drafts
// themselves are never persisted; only the attempt and its outcome are.
type SubmissionRecord struct {
	ID        string         `json:"id"`
	DraftID   string         `json:"draft_id"`
	Principal string         `json:"principal"`
	Status    string         `json:"status"`
	CourseID  string         `json:"course_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Repository defines the interface for submission-audit persistence
type Repository interface {
	RecordSubmission(ctx context.Context, rec *SubmissionRecord) error
	ListSubmissions(ctx context.Context, limit, offset int) ([]*SubmissionRecord, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
