package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/flagkit/pkg/audit"
	"github.com/dmitrymomot/flagkit/pkg/logger"
)

// Invalidator drops cached payloads so they are rebuilt on the next read.
type Invalidator interface {
	Invalidate(ctx context.Context, partitions []Partition) error
}

// Auditor records audit events. *audit.Logger implements it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
}

// NoOpInvalidator discards invalidations.
type NoOpInvalidator struct{}

func (NoOpInvalidator) Invalidate(context.Context, []Partition) error { return nil }

// Notifier refreshes serving caches and records an audit event for each change.
type Notifier struct {
	invalidator Invalidator
	auditor     Auditor
	logger      *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierLogger sets the logger for the Notifier.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNotifier creates a notifier. A nil invalidator skips cache invalidation;
// a nil auditor skips audit records.
func NewNotifier(invalidator Invalidator, auditor Auditor, opts ...NotifierOption) *Notifier {
	if invalidator == nil {
		invalidator = NoOpInvalidator{}
	}
	n := &Notifier{
		invalidator: invalidator,
		auditor:     auditor,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify invalidates the partitions affected by c and then records a
// "feature.<action>" audit event. The audit record is written even when
// invalidation fails; both failures are returned joined.
func (n *Notifier) Notify(ctx context.Context, c Change) error {
	partitions := AffectedPartitions(c)

	var errs []error
	if len(partitions) > 0 {
		if err := n.invalidator.Invalidate(ctx, partitions); err != nil {
			errs = append(errs, errors.Join(ErrInvalidationFailed, err))
		}
	}

	if n.auditor != nil {
		if err := n.auditor.Log(ctx, "feature."+string(c.Action), auditOptions(c, partitions)...); err != nil {
			errs = append(errs, errors.Join(ErrAuditFailed, err))
		}
	}

	n.logger.LogAttrs(ctx, slog.LevelDebug, "feature change notified",
		logger.Action(string(c.Action)),
		logger.Organization(c.Organization),
		logger.FeatureID(c.FeatureID),
		slog.Int("partitions", len(partitions)),
	)

	return errors.Join(errs...)
}

func auditOptions(c Change, partitions []Partition) []audit.EventOption {
	var prevTags, curTags []string
	var prevProject, curProject string
	if c.Previous != nil {
		prevTags, prevProject = c.Previous.Tags, c.Previous.Project
	}
	if c.Current != nil {
		curTags, curProject = c.Current.Tags, c.Current.Project
	}

	envs := make([]string, 0, len(partitions))
	for _, p := range partitions {
		envs = append(envs, p.Environment)
	}

	opts := []audit.EventOption{
		audit.WithOrganization(c.Organization),
		audit.WithResource("feature", c.FeatureID),
		audit.WithMetadata("tags", union(prevTags, curTags)),
		audit.WithMetadata("projects", union([]string{prevProject}, []string{curProject})),
		audit.WithMetadata("environments", union(envs, nil)),
	}
	if c.Actor != "" {
		opts = append(opts, audit.WithActor(c.Actor))
	}
	if c.Previous != nil {
		opts = append(opts, audit.WithMetadata("before", c.Previous))
	}
	if c.Current != nil {
		opts = append(opts, audit.WithMetadata("after", c.Current))
	}
	return opts
}
