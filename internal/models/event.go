package models

import (
	"errors"
	"fmt"
)

// EventKind identifies the type of version-control event
type EventKind string

// Supported event kinds
const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
)

// Event is a version-control event presented to trigger evaluation
type Event struct {
	Kind   EventKind // push or pull_request
	Branch string    // Branch the event refers to
	Commit string    // Commit SHA (optional, informational)
}

// Validate checks that the event is well formed
func (e *Event) Validate() error {
	switch e.Kind {
	case EventPush:
		if e.Branch == "" {
			return errors.New("push event requires a branch")
		}
	case EventPullRequest:
		// Any pull-request event is acceptable; branch is optional
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// String returns a short human-readable description of the event
func (e Event) String() string {
	if e.Branch != "" {
		return fmt.Sprintf("%s on %s", e.Kind, e.Branch)
	}
	return string(e.Kind)
}
