package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mediflow/clinic/pkg/database"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

// ActivityStore appends to the logs collection
type ActivityStore struct {
	coll   *mongo.Collection
	obs    Observer
	logger *logger.Logger
	now    func() time.Time
}

// NewActivityStore creates the activity trail writer
func NewActivityStore(db *database.MongoDB, obs Observer, log *logger.Logger) *ActivityStore {
	return &ActivityStore{
		coll:   db.Collection(database.LogsCollection),
		obs:    observerOrDefault(obs),
		logger: log,
		now:    time.Now,
	}
}

// Record appends one message
func (s *ActivityStore) Record(ctx context.Context, message string) error {
	entry := types.ActivityLog{Message: message, Timestamp: s.now().UTC()}

	err := s.obs.StoreOperation(ctx, systemMongo, "insert", database.LogsCollection, func(ctx context.Context) error {
		_, err := s.coll.InsertOne(ctx, entry)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}
