// Package trigger evaluates version-control events against workflow
// trigger declarations.
package trigger

import (
	"fmt"

	"github.com/harrison/stagehand/internal/models"
)

// Matches reports whether the event activates the given trigger.
//
// A push event matches when a push trigger is declared and the event's
// branch appears in its branch list. A pull-request event matches whenever
// a pull_request trigger is declared; no further conditions apply.
func Matches(event models.Event, trig models.Trigger) bool {
	switch event.Kind {
	case models.EventPush:
		if trig.Push == nil {
			return false
		}
		for _, branch := range trig.Push.Branches {
			if branch == event.Branch {
				return true
			}
		}
		return false
	case models.EventPullRequest:
		return trig.PullRequest != nil
	default:
		return false
	}
}

// Evaluate validates the event and checks it against the workflow's
// triggers. Returns nil when the workflow should run, a NotTriggeredError
// when the event does not activate it, and a plain error for malformed
// events.
func Evaluate(event models.Event, workflow *models.Workflow) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if !Matches(event, workflow.On) {
		return &NotTriggeredError{Event: event, Workflow: workflow.Name}
	}
	return nil
}

// NotTriggeredError indicates an event did not activate a workflow.
// It is not a failure: callers typically report it and exit cleanly.
type NotTriggeredError struct {
	Event    models.Event
	Workflow string
}

// Error implements the error interface
func (e *NotTriggeredError) Error() string {
	return fmt.Sprintf("event %s does not trigger workflow %q", e.Event, e.Workflow)
}
