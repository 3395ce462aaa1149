// Package mongo provides the MongoDB connection and the MongoDB-backed stores for
// features, revisions and safe rollouts.
//
// Connect retries the initial ping according to Config, which is read from
// MONGODB_* environment variables. EnsureIndexes creates the unique keys that the
// stores depend on to report duplicates:
//
//	client, err := mongo.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	db := client.Database(cfg.Database)
//	if err := mongo.EnsureIndexes(ctx, db); err != nil {
//		return err
//	}
//	features := mongo.NewFeatureStore(db)
//	revisions := mongo.NewRevisionStore(db)
//	rollouts := mongo.NewSafeRolloutStore(db)
//
// FeatureStore.Update only replaces a document whose version still equals the
// expected one, and returns feature.ErrVersionConflict otherwise. RevisionStore
// writes only touch revisions that are still active. Rules are stored in their
// flattened feature.RuleRecord form.
package mongo
