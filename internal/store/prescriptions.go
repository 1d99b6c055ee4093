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

type audioDocument struct {
	URL      string `bson:"url"`
	PublicID string `bson:"public_id"`
	Format   string `bson:"format,omitempty"`
}

type prescriptionDocument struct {
	ID         bson.ObjectID            `bson:"_id,omitempty"`
	User       string                   `bson:"user"`
	Doctor     string                   `bson:"doctor,omitempty"`
	DoctorName string                   `bson:"doctorName,omitempty"`
	Title      string                   `bson:"title,omitempty"`
	Details    string                   `bson:"details,omitempty"`
	Text       string                   `bson:"prescription,omitempty"`
	Audio      *audioDocument           `bson:"audio,omitempty"`
	CreatedAt  time.Time                `bson:"createdAt"`
	Status     types.PrescriptionStatus `bson:"status"`
}

func (d *prescriptionDocument) toPrescription() *types.Prescription {
	p := &types.Prescription{
		ID:         hexOrEmpty(d.ID),
		User:       d.User,
		Doctor:     d.Doctor,
		DoctorName: d.DoctorName,
		Title:      d.Title,
		Details:    d.Details,
		Text:       d.Text,
		CreatedAt:  d.CreatedAt,
		Status:     d.Status,
	}
	if d.Audio != nil {
		p.Audio = &types.AudioAttachment{URL: d.Audio.URL, PublicID: d.Audio.PublicID, Format: d.Audio.Format}
	}
	return p
}

func prescriptionToDocument(p *types.Prescription) (*prescriptionDocument, error) {
	if p.User == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "prescription has no patient", nil)
	}

	doc := &prescriptionDocument{
		User:       p.User,
		Doctor:     p.Doctor,
		DoctorName: p.DoctorName,
		Title:      p.Title,
		Details:    p.Details,
		Text:       p.Text,
		CreatedAt:  p.CreatedAt,
		Status:     p.Status,
	}
	if p.Audio != nil {
		doc.Audio = &audioDocument{URL: p.Audio.URL, PublicID: p.Audio.PublicID, Format: p.Audio.Format}
	}
	if doc.Status == "" {
		doc.Status = types.PrescriptionActive
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	return doc, nil
}

// PrescriptionStore implements interfaces.PrescriptionRepository on MongoDB
type PrescriptionStore struct {
	coll   *mongo.Collection
	obs    Observer
	logger *logger.Logger
}

// NewPrescriptionStore creates a prescription repository
func NewPrescriptionStore(db *database.MongoDB, obs Observer, log *logger.Logger) *PrescriptionStore {
	return &PrescriptionStore{
		coll:   db.Collection(database.PrescriptionsCollection),
		obs:    observerOrDefault(obs),
		logger: log,
	}
}

// Insert writes one record. A single InsertOne either lands entirely or not at all.
func (s *PrescriptionStore) Insert(ctx context.Context, p *types.Prescription) (string, error) {
	doc, err := prescriptionToDocument(p)
	if err != nil {
		return "", err
	}

	var id string
	err = s.obs.StoreOperation(ctx, systemMongo, "insert", database.PrescriptionsCollection, func(ctx context.Context) error {
		res, err := s.coll.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		id = insertedHex(res)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert prescription: %w", err)
	}

	p.ID = id
	return id, nil
}

// ListByUser returns a patient's prescriptions, newest first
func (s *PrescriptionStore) ListByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	return s.list(ctx, bson.M{"user": userID})
}

// ListActiveByUser returns a patient's Active prescriptions
func (s *PrescriptionStore) ListActiveByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	return s.list(ctx, bson.M{"user": userID, "status": types.PrescriptionActive})
}

func (s *PrescriptionStore) list(ctx context.Context, filter bson.M) ([]*types.Prescription, error) {
	var docs []prescriptionDocument
	err := s.obs.StoreOperation(ctx, systemMongo, "find", database.PrescriptionsCollection, func(ctx context.Context) error {
		cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}

	out := make([]*types.Prescription, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toPrescription())
	}
	return out, nil
}

// Complete moves an Active record to Completed
func (s *PrescriptionStore) Complete(ctx context.Context, id string) error {
	oid, err := objectID("id", id)
	if err != nil {
		return err
	}

	var matched, existing int64
	err = s.obs.StoreOperation(ctx, systemMongo, "update", database.PrescriptionsCollection, func(ctx context.Context) error {
		res, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": oid, "status": types.PrescriptionActive},
			bson.M{"$set": bson.M{"status": types.PrescriptionCompleted}},
		)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		if matched == 0 {
			existing, err = s.coll.CountDocuments(ctx, bson.M{"_id": oid})
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to complete prescription: %w", err)
	}

	switch {
	case matched == 1:
		return nil
	case existing == 0:
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("prescription not found: %s", id))
	default:
		return types.NewConflictError(types.ErrCodeConflict, "prescription is already completed")
	}
}
