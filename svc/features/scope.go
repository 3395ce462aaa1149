package features

import (
	"context"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/organization"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

// Scope carries everything an operation needs to know about who is acting where.
// It is passed explicitly into every Service method.
type Scope struct {
	Org   organization.Settings
	Actor revision.Actor
	Auth  organization.Authorizer
	Now   func() time.Time
}

// SystemActor is recorded for changes made by background processing.
var SystemActor = revision.Actor{ID: "system", Name: "Scheduler"}

// SystemScope returns a scope for background work in org. It is allowed every project.
func SystemScope(org organization.Settings, now func() time.Time) Scope {
	return Scope{Org: org, Actor: SystemActor, Auth: organization.AllowAll, Now: now}
}

func (sc Scope) now() time.Time {
	if sc.Now != nil {
		return sc.Now().UTC()
	}
	return time.Now().UTC()
}

// logContext tags ctx with the acting user for logger.ActorExtractor.
func (sc Scope) logContext(ctx context.Context) context.Context {
	return logger.WithActor(ctx, sc.Actor.ID)
}

// authorize fails with organization.ErrForbidden when the actor cannot read the project.
// A scope without an Authorizer is denied.
func (sc Scope) authorize(project string) error {
	if sc.Auth == nil || !sc.Auth.CanReadSingleProjectResource(project) {
		return errorf(organization.ErrForbidden, "project %q", project)
	}
	return nil
}

func (sc Scope) envIDs() []string {
	return sc.Org.EnvironmentIDs()
}

// Outcome is the result of a committed mutation: the new feature snapshot and the
// side effects to dispatch. Effects hold exactly one Change per committed feature write.
type Outcome struct {
	Feature *feature.Feature
	Effects notify.Effects
}

// RevisionOutcome is an Outcome that also carries the revision the operation acted on.
type RevisionOutcome struct {
	Outcome
	Revision *revision.Revision
}
