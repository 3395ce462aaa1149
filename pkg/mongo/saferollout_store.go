package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/flagkit/pkg/saferollout"
)

// SafeRolloutsCollection is the collection name used by SafeRolloutStore.
const SafeRolloutsCollection = "safe_rollouts"

// SafeRolloutStore implements saferollout.Store on a MongoDB collection.
type SafeRolloutStore struct {
	coll *mongo.Collection
}

// NewSafeRolloutStore returns a store backed by the safe_rollouts collection of db.
func NewSafeRolloutStore(db *mongo.Database) *SafeRolloutStore {
	return &SafeRolloutStore{coll: db.Collection(SafeRolloutsCollection)}
}

var _ saferollout.Store = (*SafeRolloutStore)(nil)

func (s *SafeRolloutStore) Create(ctx context.Context, r *saferollout.SafeRollout) error {
	if r == nil || r.ID == "" || r.Organization == "" {
		return errors.Join(saferollout.ErrInvalidRollout, errors.New("id and organization are required"))
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return saferollout.ErrExists
		}
		return fmt.Errorf("insert safe rollout %s: %w", r.ID, err)
	}
	return nil
}

func (s *SafeRolloutStore) GetByIDs(ctx context.Context, org string, ids []string) ([]*saferollout.SafeRollout, error) {
	if len(ids) == 0 {
		return []*saferollout.SafeRollout{}, nil
	}
	q := bson.D{
		{Key: "organization", Value: org},
		{Key: "_id", Value: bson.M{"$in": ids}},
	}
	cur, err := s.coll.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find safe rollouts: %w", err)
	}

	result := make([]*saferollout.SafeRollout, 0, len(ids))
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode safe rollouts: %w", err)
	}
	return result, nil
}

func (s *SafeRolloutStore) Update(ctx context.Context, r *saferollout.SafeRollout) error {
	if r == nil || r.ID == "" {
		return errors.Join(saferollout.ErrInvalidRollout, errors.New("id is required"))
	}
	q := bson.D{{Key: "_id", Value: r.ID}, {Key: "organization", Value: r.Organization}}
	res, err := s.coll.ReplaceOne(ctx, q, r)
	if err != nil {
		return fmt.Errorf("update safe rollout %s: %w", r.ID, err)
	}
	if res.MatchedCount == 0 {
		return saferollout.ErrNotFound
	}
	return nil
}
