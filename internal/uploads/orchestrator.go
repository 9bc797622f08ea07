// Package uploads turns staged local files into durable asset references.
// Uploads for unrelated slots run concurrently with no mutual ordering; the
// orchestrator waits for every upload to settle and reports partial results
// instead of aborting early. Whether partial success is acceptable is the
// caller's decision.
package uploads

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/services"
	"github.com/coursekit/draft-engine/internal/staging"
)

// Failure describes one asset that could not be uploaded
type Failure struct {
	Slot    models.SlotID `json:"slot"`
	Cause   string        `json:"cause"` // network | rejected-kind | size-limit | server-error
	Message string        `json:"message"`
}

// Result is the settled report of one UploadAll invocation. Successes and
// failures are both always populated; neither is ever silently dropped.
type Result struct {
	Uploaded map[models.SlotID]string `json:"uploaded"`
	Failures []Failure                `json:"failures,omitempty"`
}

// OK reports whether every pending asset uploaded
func (r *Result) OK() bool {
	return len(r.Failures) == 0
}

// Orchestrator fans staged files out to the object-storage collaborator
type Orchestrator struct {
	storage    services.ObjectStorage
	maxWorkers int
}

// NewOrchestrator creates an orchestrator with a bounded worker pool
func NewOrchestrator(storage services.ObjectStorage, maxWorkers int) *Orchestrator {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Orchestrator{storage: storage, maxWorkers: maxWorkers}
}

// UploadAll uploads every pending asset and joins all results. An individual
// failure does not stop the remaining uploads.
func (o *Orchestrator) UploadAll(ctx context.Context, pending []staging.Pending) *Result {
	result := &Result{Uploaded: make(map[models.SlotID]string, len(pending))}
	if len(pending) == 0 {
		return result
	}

	workers := o.maxWorkers
	if workers > len(pending) {
		workers = len(pending)
	}

	type settled struct {
		slot models.SlotID
		url  string
		err  error
	}

	jobs := make(chan staging.Pending, len(pending))
	outcomes := make(chan settled, len(pending))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				url, err := o.storage.Upload(ctx, p.File)
				outcomes <- settled{slot: p.Slot, url: url, err: err}
			}
		}()
	}

	for _, p := range pending {
		jobs <- p
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for s := range outcomes {
		if s.err != nil {
			failure := classify(s.slot, s.err)
			slog.Warn("asset upload failed",
				"slot", s.slot,
				"cause", failure.Cause,
				"error", s.err,
			)
			result.Failures = append(result.Failures, failure)
			continue
		}
		result.Uploaded[s.slot] = s.url
	}

	return result
}

// classify maps a storage error onto the failure taxonomy
func classify(slot models.SlotID, err error) Failure {
	var uerr *services.UploadError
	if errors.As(err, &uerr) {
		cause := uerr.Reason
		switch uerr.Reason {
		case services.UploadReasonInvalidType:
			cause = "rejected-kind"
		case services.UploadReasonTooLarge:
			cause = "size-limit"
		}
		return Failure{Slot: slot, Cause: cause, Message: uerr.Message}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Failure{Slot: slot, Cause: "network", Message: err.Error()}
	}
	return Failure{Slot: slot, Cause: "server-error", Message: err.Error()}
}
