package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mediflow/clinic/pkg/database"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

type accessDocument struct {
	ID     bson.ObjectID `bson:"_id,omitempty"`
	User   string        `bson:"user"`
	Doctor string        `bson:"doctor"`
}

// AccessListStore implements interfaces.AccessListRepository
type AccessListStore struct {
	coll   *mongo.Collection
	obs    Observer
	logger *logger.Logger
}

// NewAccessListStore creates an access list repository
func NewAccessListStore(db *database.MongoDB, obs Observer, log *logger.Logger) *AccessListStore {
	return &AccessListStore{
		coll:   db.Collection(database.AccessListCollection),
		obs:    observerOrDefault(obs),
		logger: log,
	}
}

// EnsureIndexes makes (user, doctor) unique so concurrent grants cannot both land
func (s *AccessListStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "doctor", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create access list index: %w", err)
	}
	return nil
}

// ListByUser returns the doctors a patient has granted access to
func (s *AccessListStore) ListByUser(ctx context.Context, userID string) ([]*types.AccessEntry, error) {
	var docs []accessDocument
	err := s.obs.StoreOperation(ctx, systemMongo, "find", database.AccessListCollection, func(ctx context.Context) error {
		cursor, err := s.coll.Find(ctx, bson.M{"user": userID})
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list access entries: %w", err)
	}

	out := make([]*types.AccessEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, &types.AccessEntry{ID: hexOrEmpty(d.ID), User: d.User, Doctor: d.Doctor})
	}
	return out, nil
}

// Exists reports whether doctorID may read userID's records
func (s *AccessListStore) Exists(ctx context.Context, userID, doctorID string) (bool, error) {
	var count int64
	err := s.obs.StoreOperation(ctx, systemMongo, "count", database.AccessListCollection, func(ctx context.Context) error {
		var err error
		count, err = s.coll.CountDocuments(ctx, bson.M{"user": userID, "doctor": doctorID})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}
	return count > 0, nil
}

// Add grants access. A duplicate grant is a conflict.
func (s *AccessListStore) Add(ctx context.Context, userID, doctorID string) error {
	exists, err := s.Exists(ctx, userID, doctorID)
	if err != nil {
		return err
	}
	if exists {
		return types.NewConflictError(types.ErrCodeConflict, "doctor already in access list")
	}

	err = s.obs.StoreOperation(ctx, systemMongo, "insert", database.AccessListCollection, func(ctx context.Context) error {
		_, err := s.coll.InsertOne(ctx, &accessDocument{User: userID, Doctor: doctorID})
		return err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.NewConflictError(types.ErrCodeConflict, "doctor already in access list")
		}
		return fmt.Errorf("failed to add access entry: %w", err)
	}
	return nil
}

// Remove revokes access; revoking a missing grant is not an error
func (s *AccessListStore) Remove(ctx context.Context, userID, doctorID string) error {
	err := s.obs.StoreOperation(ctx, systemMongo, "delete", database.AccessListCollection, func(ctx context.Context) error {
		_, err := s.coll.DeleteOne(ctx, bson.M{"user": userID, "doctor": doctorID})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to remove access entry: %w", err)
	}
	return nil
}
