// Package notify carries committed feature changes to the systems that depend on them.
//
// Every mutation returns Effects: one Change per committed feature write and an
// optional Sync for the organization's experimentation integration. A Dispatcher
// runs them in the background:
//
//	notifier := notify.NewNotifier(notify.NewRedisInvalidator(rdb, "flagkit"), auditLogger)
//	dispatcher := notify.NewDispatcher(notifier, notify.WithSyncer(notify.NewWebhookSyncer(sender, orgs)))
//	dispatcher.Dispatch(ctx, outcome.Effects)
//
// Notifier computes the cache partitions (organization, environment, project) whose
// served payload changed, invalidates them and records a "feature.<action>" audit
// event. Failures are logged by the Dispatcher and never reach the caller.
package notify
