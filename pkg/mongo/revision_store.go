package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/flagkit/pkg/revision"
)

// RevisionsCollection is the collection name used by RevisionStore.
const RevisionsCollection = "feature_revisions"

var activeStatuses = bson.A{
	string(revision.StatusDraft),
	string(revision.StatusPendingReview),
	string(revision.StatusChangesRequested),
	string(revision.StatusApproved),
}

// RevisionStore implements revision.Store on a MongoDB collection.
// Writes to a revision are conditional on its stored status still being active.
type RevisionStore struct {
	coll *mongo.Collection
}

// NewRevisionStore returns a store backed by the feature_revisions collection of db.
func NewRevisionStore(db *mongo.Database) *RevisionStore {
	return &RevisionStore{coll: db.Collection(RevisionsCollection)}
}

var _ revision.Store = (*RevisionStore)(nil)

func revisionKey(org, featureID string, version int) bson.D {
	return bson.D{
		{Key: "organization", Value: org},
		{Key: "feature_id", Value: featureID},
		{Key: "version", Value: version},
	}
}

func (s *RevisionStore) Create(ctx context.Context, r *revision.Revision) error {
	if r == nil {
		return errors.New("revision cannot be nil")
	}
	doc, err := toRevisionDoc(r)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return revision.ErrRevisionExists
		}
		return fmt.Errorf("insert revision %s@%d: %w", r.FeatureID, r.Version, err)
	}
	return nil
}

func (s *RevisionStore) Get(ctx context.Context, org, featureID string, version int) (*revision.Revision, error) {
	var doc revisionDoc
	if err := s.coll.FindOne(ctx, revisionKey(org, featureID, version)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, revision.ErrRevisionNotFound
		}
		return nil, fmt.Errorf("find revision %s@%d: %w", featureID, version, err)
	}
	return doc.toRevision()
}

func (s *RevisionStore) List(ctx context.Context, org, featureID string) ([]*revision.Revision, error) {
	q := bson.D{{Key: "organization", Value: org}, {Key: "feature_id", Value: featureID}}
	cur, err := s.coll.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find revisions of %s: %w", featureID, err)
	}
	var docs []revisionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode revisions of %s: %w", featureID, err)
	}

	result := make([]*revision.Revision, 0, len(docs))
	for i := range docs {
		r, err := docs[i].toRevision()
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *RevisionStore) Update(ctx context.Context, r *revision.Revision) error {
	if r == nil {
		return errors.New("revision cannot be nil")
	}
	doc, err := toRevisionDoc(r)
	if err != nil {
		return err
	}

	filter := append(revisionKey(r.Organization, r.FeatureID, r.Version),
		bson.E{Key: "status", Value: bson.M{"$in": activeStatuses}})
	res, err := s.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("update revision %s@%d: %w", r.FeatureID, r.Version, err)
	}
	if res.MatchedCount == 0 {
		return s.explainMiss(ctx, r.Organization, r.FeatureID, r.Version)
	}
	return nil
}

func (s *RevisionStore) MarkPublished(ctx context.Context, org, featureID string, version int, by revision.Actor, comment string, at time.Time) error {
	set := bson.D{
		{Key: "status", Value: string(revision.StatusPublished)},
		{Key: "published_by", Value: toActorDoc(by)},
		{Key: "date_published", Value: at},
		{Key: "date_updated", Value: at},
	}
	if comment != "" {
		set = append(set, bson.E{Key: "comment", Value: comment})
	}
	entry := toLogEntryDoc(revision.LogEntry{
		Action:    string(revision.EventPublish),
		Value:     comment,
		Actor:     by,
		Timestamp: at,
	})
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$push", Value: bson.D{{Key: "log", Value: entry}}},
	}

	filter := append(revisionKey(org, featureID, version),
		bson.E{Key: "status", Value: bson.M{"$in": activeStatuses}})
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("publish revision %s@%d: %w", featureID, version, err)
	}
	if res.MatchedCount == 0 {
		return s.explainMiss(ctx, org, featureID, version)
	}
	return nil
}

func (s *RevisionStore) DeleteAll(ctx context.Context, org, featureID string) error {
	q := bson.D{{Key: "organization", Value: org}, {Key: "feature_id", Value: featureID}}
	if _, err := s.coll.DeleteMany(ctx, q); err != nil {
		return fmt.Errorf("delete revisions of %s: %w", featureID, err)
	}
	return nil
}

func (s *RevisionStore) LatestVersion(ctx context.Context, org, featureID string) (int, error) {
	q := bson.D{{Key: "organization", Value: org}, {Key: "feature_id", Value: featureID}}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.D{{Key: "version", Value: 1}})

	var doc struct {
		Version int `bson:"version"`
	}
	if err := s.coll.FindOne(ctx, q, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest revision of %s: %w", featureID, err)
	}
	return doc.Version, nil
}

// explainMiss tells a missing revision apart from one that already left the active states.
func (s *RevisionStore) explainMiss(ctx context.Context, org, featureID string, version int) error {
	current, err := s.Get(ctx, org, featureID, version)
	if err != nil {
		return err
	}
	return errors.Join(revision.ErrInvalidRevisionState,
		fmt.Errorf("revision %d is %s", version, current.Status))
}
