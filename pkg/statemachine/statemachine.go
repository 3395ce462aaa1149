package statemachine

import (
	"context"
	"fmt"
	"slices"
)

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S, E ~string] func(ctx context.Context, from S, event E, data any) bool

// Action executes side effects during a transition. Returning an error prevents it.
type Action[S, E ~string] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition[S, E ~string] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // All must pass for transition to proceed
	Actions []Action[S, E] // Executed in order before state change
}

// Table is an immutable set of transitions. It is safe for concurrent use once built.
type Table[S, E ~string] struct {
	transitions map[S]map[E][]Transition[S, E]
}

// Option configures a table during construction.
type Option[S, E ~string] func(*Table[S, E]) error

// TransitionOption configures a single transition.
type TransitionOption[S, E ~string] func(*Transition[S, E])

// New builds a table from the given options.
func New[S, E ~string](opts ...Option[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{transitions: make(map[S]map[E][]Transition[S, E])}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew works like New but panics on invalid configuration.
func MustNew[S, E ~string](opts ...Option[S, E]) *Table[S, E] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

// WithTransition adds a transition from -> to on event.
func WithTransition[S, E ~string](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		if from == "" || to == "" || event == "" {
			return ErrInvalidTransition
		}
		tr := Transition[S, E]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		if _, ok := t.transitions[from]; !ok {
			t.transitions[from] = make(map[E][]Transition[S, E])
		}
		// Multiple transitions allowed for same from/event to support guard-based branching
		t.transitions[from][event] = append(t.transitions[from][event], tr)
		return nil
	}
}

// WithTransitionsFrom adds the same event transition from every listed state.
func WithTransitionsFrom[S, E ~string](froms []S, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		for _, from := range froms {
			if err := WithTransition(from, to, event, opts...)(t); err != nil {
				return fmt.Errorf("transition %s->%s on %s: %w", from, to, event, err)
			}
		}
		return nil
	}
}

// WithGuard adds a guard to a transition. Nil guards are ignored.
func WithGuard[S, E ~string](guard Guard[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		if guard != nil {
			tr.Guards = append(tr.Guards, guard)
		}
	}
}

// WithAction adds an action to a transition. Nil actions are ignored.
func WithAction[S, E ~string](action Action[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		if action != nil {
			tr.Actions = append(tr.Actions, action)
		}
	}
}

// Fire resolves event from current and returns the target state after running actions.
func (t *Table[S, E]) Fire(ctx context.Context, current S, event E, data any) (S, error) {
	candidates := t.transitions[current][event]
	if len(candidates) == 0 {
		return current, &TransitionError{From: string(current), Event: string(event), Err: ErrNoTransition}
	}

	// First transition with passing guards wins (enables priority ordering)
	tr, ok := t.firstAllowed(ctx, candidates, current, event, data)
	if !ok {
		return current, &TransitionError{From: string(current), Event: string(event), Err: ErrRejected}
	}

	for _, action := range tr.Actions {
		if err := action(ctx, current, tr.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}
	return tr.To, nil
}

// CanFire reports whether Fire would find an allowed transition. Actions are not run.
func (t *Table[S, E]) CanFire(ctx context.Context, current S, event E, data any) bool {
	_, ok := t.firstAllowed(ctx, t.transitions[current][event], current, event, data)
	return ok
}

// Events lists the events defined from a state, sorted.
func (t *Table[S, E]) Events(current S) []E {
	events := make([]E, 0, len(t.transitions[current]))
	for ev := range t.transitions[current] {
		events = append(events, ev)
	}
	slices.Sort(events)
	return events
}

func (t *Table[S, E]) firstAllowed(ctx context.Context, candidates []Transition[S, E], current S, event E, data any) (Transition[S, E], bool) {
	for _, tr := range candidates {
		allowed := true
		for _, guard := range tr.Guards {
			if !guard(ctx, current, event, data) {
				allowed = false
				break
			}
		}
		if allowed {
			return tr, true
		}
	}
	return Transition[S, E]{}, false
}
