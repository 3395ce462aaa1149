package revision

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/statemachine"
)

// Event drives a revision status transition.
type Event string

const (
	EventSubmit         Event = "submit"
	EventApprove        Event = "approve"
	EventRequestChanges Event = "request-changes"
	EventEdit           Event = "edit"
	EventPublish        Event = "publish"
	EventDiscard        Event = "discard"
)

// ReviewDecision is the outcome a reviewer chooses.
type ReviewDecision string

const (
	ReviewApprove        ReviewDecision = "approve"
	ReviewRequestChanges ReviewDecision = "request-changes"
	ReviewComment        ReviewDecision = "comment"
)

var activeStatuses = []Status{StatusDraft, StatusPendingReview, StatusChangesRequested, StatusApproved}

type transitionInput struct {
	rev   *Revision
	actor Actor
}

func notAuthor(_ context.Context, _ Status, _ Event, data any) bool {
	in, ok := data.(transitionInput)
	return ok && in.actor.ID != in.rev.CreatedBy.ID
}

var lifecycle = statemachine.MustNew(
	statemachine.WithTransitionsFrom([]Status{StatusDraft, StatusChangesRequested}, StatusPendingReview, EventSubmit),
	statemachine.WithTransition(StatusPendingReview, StatusApproved, EventApprove,
		statemachine.WithGuard(notAuthor),
	),
	statemachine.WithTransition(StatusPendingReview, StatusChangesRequested, EventRequestChanges,
		statemachine.WithGuard(notAuthor),
	),
	statemachine.WithTransitionsFrom([]Status{StatusPendingReview, StatusApproved, StatusChangesRequested}, StatusDraft, EventEdit),
	statemachine.WithTransitionsFrom(activeStatuses, StatusPublished, EventPublish),
	statemachine.WithTransitionsFrom(activeStatuses, StatusDiscarded, EventDiscard),
)

// Can reports whether the event is allowed from the revision's current status for actor.
func (r *Revision) Can(ev Event, actor Actor) bool {
	return lifecycle.CanFire(context.Background(), r.Status, ev, transitionInput{rev: r, actor: actor})
}

// Fire returns a copy of the revision moved along ev with a log entry appended.
func (r *Revision) Fire(ctx context.Context, ev Event, actor Actor, comment string, now time.Time) (*Revision, error) {
	next, err := lifecycle.Fire(ctx, r.Status, ev, transitionInput{rev: r, actor: actor})
	if err != nil {
		if errors.Is(err, statemachine.ErrRejected) {
			return nil, errors.Join(ErrSelfReview, err)
		}
		return nil, errors.Join(ErrInvalidRevisionState, err)
	}

	out := r.Clone()
	out.Status = next
	out.DateUpdated = now
	out.Log = append(out.Log, LogEntry{Action: string(ev), Value: comment, Actor: actor, Timestamp: now})
	if ev == EventPublish {
		by := actor
		at := now
		out.PublishedBy = &by
		out.DatePublished = &at
		if comment != "" {
			out.Comment = comment
		}
	}
	return out, nil
}

// Review applies a reviewer's decision. A plain comment only appends a log entry.
func (r *Revision) Review(ctx context.Context, decision ReviewDecision, actor Actor, comment string, now time.Time) (*Revision, error) {
	switch decision {
	case ReviewApprove:
		return r.Fire(ctx, EventApprove, actor, comment, now)
	case ReviewRequestChanges:
		return r.Fire(ctx, EventRequestChanges, actor, comment, now)
	case ReviewComment:
		if !r.Status.Active() {
			return nil, errorf(ErrInvalidRevisionState, "cannot comment on %s revision", r.Status)
		}
		out := r.Clone()
		out.DateUpdated = now
		out.Log = append(out.Log, LogEntry{Action: "comment", Value: comment, Actor: actor, Timestamp: now})
		return out, nil
	}
	return nil, errorf(ErrInvalidRevisionState, "unknown review decision %q", decision)
}
