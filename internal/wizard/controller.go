// Package wizard drives the three sequential editing steps. Forward movement
// is gated on the current step validating clean; moving back never is, since
// editing an earlier already-valid step must not be blocked.
package wizard

import (
	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/validate"
)

var order = []validate.Step{
	validate.StepBasicInfo,
	validate.StepCurriculum,
	validate.StepReview,
}

// Controller is the linear step machine of one editing session.
// There is no terminal submitted state: a successful submission resets the
// controller to the first step with a fresh draft.
type Controller struct {
	index int
}

// New creates a controller on the first step
func New() *Controller {
	return &Controller{}
}

// Current returns the active step
func (c *Controller) Current() validate.Step {
	return order[c.index]
}

// Advance moves to the next step when the current one validates clean.
// On validation errors the controller stays put and returns the error map.
// Advancing past the last step is a no-op.
func (c *Controller) Advance(d *models.CourseDraft) (validate.ErrorMap, bool) {
	errs := validate.CheckStep(c.Current(), d)
	if len(errs) > 0 {
		return errs, false
	}
	if c.index >= len(order)-1 {
		return nil, false
	}
	c.index++
	return nil, true
}

// Retreat moves to the previous step without validating.
// On the first step it is a no-op.
func (c *Controller) Retreat() bool {
	if c.index == 0 {
		return false
	}
	c.index--
	return true
}

// Reset returns the controller to the first step
func (c *Controller) Reset() {
	c.index = 0
}
