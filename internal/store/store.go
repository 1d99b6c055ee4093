// Package store holds the document and relational repositories behind the
// interfaces in pkg/interfaces.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mediflow/clinic/pkg/types"
)

// Observer wraps a storage call with tracing and latency metrics.
// *monitoring.MonitoringMiddleware satisfies it.
type Observer interface {
	StoreOperation(ctx context.Context, system, operation, collection string, fn func(ctx context.Context) error) error
}

type passthrough struct{}

func (passthrough) StoreOperation(ctx context.Context, _, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func observerOrDefault(obs Observer) Observer {
	if obs == nil {
		return passthrough{}
	}
	return obs
}

const (
	systemMongo    = "mongodb"
	systemPostgres = "postgresql"
)

// objectID parses a hex identifier, reporting a validation error for garbage
func objectID(field, id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("invalid %s", field), map[string]interface{}{field: id})
	}
	return oid, nil
}

// hexOrEmpty renders a reference, empty for the nil id
func hexOrEmpty(oid bson.ObjectID) string {
	if oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

// notFound converts the driver's empty result into the shared sentinel
func notFound(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("%s not found: %s", what, id))
	}
	return err
}

func insertedHex(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(res.InsertedID)
}
