// Package statemachine provides a typed finite-state-machine transition table.
//
// A Table holds no current state. Callers keep state on their own entities (for example
// a persisted status column) and ask the table to resolve a transition:
//
//	type Status string
//	type Event string
//
//	var lifecycle = statemachine.MustNew(
//		statemachine.WithTransition[Status, Event]("draft", "review", "submit"),
//		statemachine.WithTransition[Status, Event]("review", "published", "publish",
//			statemachine.WithGuard(func(ctx context.Context, from Status, ev Event, data any) bool {
//				return data.(*Doc).Approved
//			}),
//		),
//	)
//
//	next, err := lifecycle.Fire(ctx, doc.Status, "publish", doc)
//
// Guards veto a transition; the first transition whose guards all pass wins, which allows
// guard-based branching on one event. Actions run in order before the new state is returned
// and any action error aborts the transition.
//
// Fire errors are *TransitionError values wrapping ErrNoTransition for an undefined
// transition and ErrRejected when every guard refused it.
package statemachine
