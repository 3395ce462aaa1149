package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/flagkit/pkg/feature"
)

// FeaturesCollection is the collection name used by FeatureStore.
const FeaturesCollection = "features"

// FeatureStore implements feature.Store on a MongoDB collection.
// Update is a compare-and-swap on the stored version.
type FeatureStore struct {
	coll *mongo.Collection
}

// NewFeatureStore returns a store backed by the features collection of db.
func NewFeatureStore(db *mongo.Database) *FeatureStore {
	return &FeatureStore{coll: db.Collection(FeaturesCollection)}
}

var _ feature.Store = (*FeatureStore)(nil)

func featureKey(org, id string) bson.D {
	return bson.D{{Key: "organization", Value: org}, {Key: "id", Value: id}}
}

func (s *FeatureStore) Create(ctx context.Context, f *feature.Feature) error {
	if err := f.Validate(); err != nil {
		return err
	}
	doc, err := toFeatureDoc(f)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return feature.ErrFeatureExists
		}
		return fmt.Errorf("insert feature %s: %w", f.ID, err)
	}
	return nil
}

func (s *FeatureStore) Get(ctx context.Context, org, id string) (*feature.Feature, error) {
	var doc featureDoc
	if err := s.coll.FindOne(ctx, featureKey(org, id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, feature.ErrFeatureNotFound
		}
		return nil, fmt.Errorf("find feature %s: %w", id, err)
	}
	return doc.toFeature()
}

func (s *FeatureStore) List(ctx context.Context, org string, filter feature.Filter) ([]*feature.Feature, error) {
	q := bson.D{{Key: "organization", Value: org}}
	if !filter.IncludeArchived {
		q = append(q, bson.E{Key: "archived", Value: bson.M{"$ne": true}})
	}
	if filter.Project != "" {
		q = append(q, bson.E{Key: "project", Value: filter.Project})
	}
	if filter.Tag != "" {
		q = append(q, bson.E{Key: "tags", Value: filter.Tag})
	}
	if len(filter.IDs) > 0 {
		q = append(q, bson.E{Key: "id", Value: bson.M{"$in": filter.IDs}})
	}
	if filter.ExperimentID != "" {
		q = append(q, bson.E{Key: "linked_experiments", Value: filter.ExperimentID})
	}
	return s.find(ctx, q)
}

func (s *FeatureStore) Update(ctx context.Context, next *feature.Feature, expectedVersion int) error {
	if err := next.Validate(); err != nil {
		return err
	}
	doc, err := toFeatureDoc(next)
	if err != nil {
		return err
	}

	filter := append(featureKey(next.Organization, next.ID), bson.E{Key: "version", Value: expectedVersion})
	res, err := s.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("update feature %s: %w", next.ID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: the feature is gone or another writer bumped the version.
	n, err := s.coll.CountDocuments(ctx, featureKey(next.Organization, next.ID))
	if err != nil {
		return fmt.Errorf("count feature %s: %w", next.ID, err)
	}
	if n == 0 {
		return feature.ErrFeatureNotFound
	}
	return feature.ErrVersionConflict
}

func (s *FeatureStore) Delete(ctx context.Context, org, id string) error {
	res, err := s.coll.DeleteOne(ctx, featureKey(org, id))
	if err != nil {
		return fmt.Errorf("delete feature %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return feature.ErrFeatureNotFound
	}
	return nil
}

func (s *FeatureStore) FindDue(ctx context.Context, now time.Time) ([]*feature.Feature, error) {
	return s.find(ctx, bson.D{{Key: "next_scheduled_update", Value: bson.M{"$lt": now}}})
}

func (s *FeatureStore) find(ctx context.Context, q bson.D) ([]*feature.Feature, error) {
	opts := options.Find().SetSort(bson.D{{Key: "organization", Value: 1}, {Key: "id", Value: 1}})
	cur, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find features: %w", err)
	}
	var docs []featureDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}

	result := make([]*feature.Feature, 0, len(docs))
	for i := range docs {
		f, err := docs[i].toFeature()
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, nil
}
