// Package features orchestrates feature flag mutations: direct updates, environment
// toggles, the draft, review and publish workflow, bulk tag and project removal and
// scheduled rule updates.
//
// Every operation takes an explicit Scope naming the organization, the acting user and
// what that user may read. Mutations return an Outcome whose Effects must be handed to a
// notify.Dispatcher; the Service itself never notifies anyone.
//
//	svc := features.New(featureStore, revisionStore, rolloutStore,
//		features.WithOrganizations(orgs),
//		features.WithLogger(log),
//	)
//	out, err := svc.PublishDraft(ctx, scope, "checkout-v2", 7, "ship it")
//	if err != nil {
//		return err
//	}
//	dispatcher.Dispatch(ctx, out.Effects)
//
// Writes to a feature are conditional on the version that was read, so concurrent
// writers fail with feature.ErrVersionConflict instead of overwriting each other.
// Publishing commits the feature first and then marks the revision published; a
// failure between the two returns ErrPartialPublish and publishing the same revision
// again completes it.
//
// Runner drives ProcessScheduledUpdates on an interval for the worker binary.
package features
