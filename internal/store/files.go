package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mediflow/clinic/pkg/database"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

type fileDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	User         string        `bson:"user"`
	Filename     string        `bson:"filename"`
	URL          string        `bson:"url"`
	PublicID     string        `bson:"public_id"`
	Format       string        `bson:"format"`
	ResourceType string        `bson:"resource_type"`
	CreatedAt    time.Time     `bson:"created_at"`
}

func (d *fileDocument) toFile() *types.FileRecord {
	return &types.FileRecord{
		ID:           hexOrEmpty(d.ID),
		User:         d.User,
		Filename:     d.Filename,
		URL:          d.URL,
		PublicID:     d.PublicID,
		Format:       d.Format,
		ResourceType: d.ResourceType,
		CreatedAt:    d.CreatedAt,
	}
}

// FileStore implements interfaces.FileRepository
type FileStore struct {
	coll   *mongo.Collection
	obs    Observer
	logger *logger.Logger
}

// NewFileStore creates a file repository
func NewFileStore(db *database.MongoDB, obs Observer, log *logger.Logger) *FileStore {
	return &FileStore{
		coll:   db.Collection(database.FilesCollection),
		obs:    observerOrDefault(obs),
		logger: log,
	}
}

// Insert saves an uploaded file record
func (s *FileStore) Insert(ctx context.Context, f *types.FileRecord) (string, error) {
	doc := &fileDocument{
		User:         f.User,
		Filename:     f.Filename,
		URL:          f.URL,
		PublicID:     f.PublicID,
		Format:       f.Format,
		ResourceType: f.ResourceType,
		CreatedAt:    f.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	var id string
	err := s.obs.StoreOperation(ctx, systemMongo, "insert", database.FilesCollection, func(ctx context.Context) error {
		res, err := s.coll.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		id = insertedHex(res)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert file: %w", err)
	}

	f.ID = id
	return id, nil
}

// ListByUser returns up to limit files of a user; limit <= 0 means all
func (s *FileStore) ListByUser(ctx context.Context, userID string, limit int64) ([]*types.FileRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	var docs []fileDocument
	err := s.obs.StoreOperation(ctx, systemMongo, "find", database.FilesCollection, func(ctx context.Context) error {
		cursor, err := s.coll.Find(ctx, bson.M{"user": userID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	out := make([]*types.FileRecord, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toFile())
	}
	return out, nil
}

// GetForUser returns a file only when it belongs to userID
func (s *FileStore) GetForUser(ctx context.Context, id, userID string) (*types.FileRecord, error) {
	oid, err := objectID("fileId", id)
	if err != nil {
		return nil, err
	}

	var doc fileDocument
	err = s.obs.StoreOperation(ctx, systemMongo, "find", database.FilesCollection, func(ctx context.Context) error {
		return notFound(s.coll.FindOne(ctx, bson.M{"_id": oid, "user": userID}).Decode(&doc), "file", id)
	})
	if err != nil {
		if types.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return doc.toFile(), nil
}

// DeleteForUser removes a file record owned by userID
func (s *FileStore) DeleteForUser(ctx context.Context, id, userID string) error {
	oid, err := objectID("fileId", id)
	if err != nil {
		return err
	}

	err = s.obs.StoreOperation(ctx, systemMongo, "delete", database.FilesCollection, func(ctx context.Context) error {
		_, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid, "user": userID})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
