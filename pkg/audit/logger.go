package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextExtractor extracts string values from context.
// It returns (value, found) where found indicates if extraction succeeded.
type contextExtractor func(context.Context) (string, bool)

// Logger builds events and hands them to a Writer.
type Logger struct {
	writer                Writer
	organizationExtractor contextExtractor
	actorExtractor        contextExtractor
	now                   func() time.Time
}

// Option configures Logger behavior during initialization
type Option func(*Logger)

// WithOrganizationExtractor fills Organization from the context when no option sets it.
func WithOrganizationExtractor(fn contextExtractor) Option {
	return func(l *Logger) {
		l.organizationExtractor = fn
	}
}

// WithActorExtractor fills ActorID from the context when no option sets it.
func WithActorExtractor(fn contextExtractor) Option {
	return func(l *Logger) {
		l.actorExtractor = fn
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates a new audit logger
func NewLogger(writer Writer, opts ...Option) *Logger {
	if writer == nil {
		panic("audit: writer cannot be nil")
	}

	l := &Logger{writer: writer, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.store(ctx, action, ResultSuccess, nil, opts)
}

// LogError records a failed action
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	return l.store(ctx, action, ResultError, err, opts)
}

func (l *Logger) store(ctx context.Context, action string, result Result, cause error, opts []EventOption) error {
	event := l.eventFromContext(ctx)
	event.ID = uuid.New().String()
	event.CreatedAt = l.now().UTC()
	event.Action = action
	event.Result = result
	if cause != nil {
		event.Error = cause.Error()
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}

	return l.writer.Store(ctx, event)
}

// eventFromContext extracts event data from context
func (l *Logger) eventFromContext(ctx context.Context) Event {
	event := Event{}

	if l.organizationExtractor != nil {
		if org, ok := l.organizationExtractor(ctx); ok {
			event.Organization = org
		}
	}

	if l.actorExtractor != nil {
		if actor, ok := l.actorExtractor(ctx); ok {
			event.ActorID = actor
		}
	}

	return event
}
