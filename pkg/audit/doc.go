// Package audit records who changed what, for compliance and debugging.
//
// A Logger builds an Event (id, timestamp, result, organization and actor pulled from the
// context or set through options) and hands it to a Writer:
//
//	storage := audit.NewPGStorage(pool)
//	writer := audit.NewAsyncWriter(storage, audit.AsyncOptions{BatchSize: 200})
//	defer writer.Close(ctx)
//
//	log := audit.NewLogger(writer)
//	err := log.Log(ctx, "feature.updated",
//		audit.WithOrganization("org_1"),
//		audit.WithResource("feature", "checkout-v2"),
//		audit.WithMetadata("before", prev),
//	)
//
// Storage backends:
//
//   - MemoryStorage keeps events in a slice; it also implements Reader.
//   - PGStorage writes to the audit_events table with COPY. Its schema ships as the embedded
//     Migrations filesystem, applied with pg.Migrate.
//   - AsyncWriter batches events in front of any BatchWriter. Store still waits for the batch
//     holding its event, and falls back to a direct write when the queue is full.
package audit
