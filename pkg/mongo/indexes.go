package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// EnsureIndexes creates the unique keys the stores rely on for duplicate detection,
// plus the lookup indexes used by List and FindDue. Safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		FeaturesCollection: {
			{
				Keys:    bson.D{{Key: "organization", Value: 1}, {Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "next_scheduled_update", Value: 1}}},
			{Keys: bson.D{{Key: "organization", Value: 1}, {Key: "linked_experiments", Value: 1}}},
		},
		RevisionsCollection: {
			{
				Keys: bson.D{
					{Key: "organization", Value: 1},
					{Key: "feature_id", Value: 1},
					{Key: "version", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
		SafeRolloutsCollection: {
			{Keys: bson.D{{Key: "organization", Value: 1}, {Key: "feature_id", Value: 1}}},
		},
	}

	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
