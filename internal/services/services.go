// Package services holds the clients for the three external collaborators:
// the object-storage upload endpoint, the content-enrichment service and the
// course-creation API. Each is consumed as an opaque remote call; only the
// wire contract is known here.
package services

import (
	"context"
	"fmt"

	"github.com/coursekit/draft-engine/internal/models"
)

// ObjectStorage turns a staged local file into a durable asset URL.
// Implementations must be idempotent-safe to retry on the same file.
type ObjectStorage interface {
	Upload(ctx context.Context, file *models.StagedFile) (string, error)
}

// Enrichment generates course content from a source document URL or topic
// text. Calls may take tens of seconds and may fail; the caller decides how
// the result is merged.
type Enrichment interface {
	Generate(ctx context.Context, req models.EnrichmentRequest) (*models.EnrichmentResult, error)
}

// CourseAPI accepts the final flattened payload on behalf of a principal and
// returns the created course ID.
type CourseAPI interface {
	CreateCourse(ctx context.Context, principal string, payload models.CoursePayload) (string, error)
}

// Upload failure reasons from the storage contract
const (
	UploadReasonInvalidType = "invalid-type"
	UploadReasonTooLarge    = "too-large"
	UploadReasonServerError = "server-error"
	UploadReasonNetwork     = "network"
)

// UploadError is a machine-readable storage rejection. Status carries the
// HTTP status when the rejection had no structured body.
type UploadError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload rejected (%s): %s", e.Reason, e.Message)
}

// Submission failure reasons from the course-creation contract
const (
	SubmitReasonValidation      = "validation"
	SubmitReasonForbidden       = "forbidden"
	SubmitReasonUnauthenticated = "unauthenticated"
	SubmitReasonServerError     = "server-error"
)

// SubmissionError is a structured course-creation failure. It is surfaced
// verbatim to the user with the draft preserved so retry skips re-uploads.
type SubmissionError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("course creation failed (%s): %s", e.Reason, e.Message)
}
