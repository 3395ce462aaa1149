package audit

import (
	"context"
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event represents a single audit log entry
type Event struct {
	ID           string         `json:"id"`
	Organization string         `json:"organization"`
	ActorID      string         `json:"actor_id,omitempty"`
	Action       string         `json:"action"`
	Resource     string         `json:"resource"`
	ResourceID   string         `json:"resource_id"`
	Result       Result         `json:"result"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	if e.Organization == "" {
		return fmt.Errorf("%w: organization is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// Criteria selects events for Query. Zero values match everything.
type Criteria struct {
	Organization string
	Action       string
	Resource     string
	ResourceID   string
	ActorID      string
	Since        time.Time
	Until        time.Time
	Limit        int
	Offset       int
}

// Matches reports whether the event satisfies the criteria, ignoring Limit and Offset.
func (c Criteria) Matches(e Event) bool {
	switch {
	case c.Organization != "" && e.Organization != c.Organization,
		c.Action != "" && e.Action != c.Action,
		c.Resource != "" && e.Resource != c.Resource,
		c.ResourceID != "" && e.ResourceID != c.ResourceID,
		c.ActorID != "" && e.ActorID != c.ActorID,
		!c.Since.IsZero() && e.CreatedAt.Before(c.Since),
		!c.Until.IsZero() && !e.CreatedAt.Before(c.Until):
		return false
	}
	return true
}

// Writer persists single events.
type Writer interface {
	Store(ctx context.Context, event Event) error
}

// BatchWriter persists many events in one call. Implementations must be all-or-nothing.
type BatchWriter interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// Reader queries stored events, newest first.
type Reader interface {
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}
