package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mediflow/clinic/pkg/database"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

type userDocument struct {
	ID                 bson.ObjectID  `bson:"_id,omitempty"`
	Name               string         `bson:"name"`
	Email              string         `bson:"email"`
	Password           string         `bson:"password,omitempty"`
	Role               types.UserRole `bson:"role"`
	RegistrationNumber string         `bson:"registrationNumber,omitempty"`
	Receptionist       string         `bson:"receptionist,omitempty"`
	Provider           string         `bson:"provider,omitempty"`
	CreatedAt          time.Time      `bson:"createdAt"`
	UpdatedAt          time.Time      `bson:"updatedAt"`
}

func (d *userDocument) toUser() *types.User {
	return &types.User{
		ID:                 hexOrEmpty(d.ID),
		Name:               d.Name,
		Email:              d.Email,
		Password:           d.Password,
		Role:               d.Role,
		RegistrationNumber: d.RegistrationNumber,
		Receptionist:       d.Receptionist,
		Provider:           d.Provider,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func userToDocument(u *types.User) *userDocument {
	return &userDocument{
		Name:               u.Name,
		Email:              strings.ToLower(strings.TrimSpace(u.Email)),
		Password:           u.Password,
		Role:               u.Role,
		RegistrationNumber: u.RegistrationNumber,
		Receptionist:       u.Receptionist,
		Provider:           u.Provider,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// UserStore implements interfaces.UserRepository on the users collection
type UserStore struct {
	coll   *mongo.Collection
	obs    Observer
	logger *logger.Logger
}

// NewUserStore creates a user repository
func NewUserStore(db *database.MongoDB, obs Observer, log *logger.Logger) *UserStore {
	return &UserStore{
		coll:   db.Collection(database.UsersCollection),
		obs:    observerOrDefault(obs),
		logger: log,
	}
}

// EnsureIndexes creates the unique email index
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}
	return nil
}

// Create inserts a user and returns its id. A duplicate email is a conflict.
func (s *UserStore) Create(ctx context.Context, user *types.User) (string, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	var id string
	err := s.obs.StoreOperation(ctx, systemMongo, "insert", database.UsersCollection, func(ctx context.Context) error {
		res, err := s.coll.InsertOne(ctx, userToDocument(user))
		if err != nil {
			return err
		}
		id = insertedHex(res)
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", types.NewConflictError(types.ErrCodeConflict, "user already exists")
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	s.logger.WithUserID(id).WithField("role", user.Role).Info("Created user")
	return id, nil
}

// GetByID retrieves a user by id
func (s *UserStore) GetByID(ctx context.Context, id string) (*types.User, error) {
	oid, err := objectID("id", id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid}, id)
}

// GetByEmail retrieves a user by case-insensitive email
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return s.findOne(ctx, bson.M{"email": normalized}, normalized)
}

// GetByIDAndRole retrieves a user only when it has the given role
func (s *UserStore) GetByIDAndRole(ctx context.Context, id string, role types.UserRole) (*types.User, error) {
	oid, err := objectID("id", id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid, "role": role}, id)
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M, key string) (*types.User, error) {
	var doc userDocument
	err := s.obs.StoreOperation(ctx, systemMongo, "find", database.UsersCollection, func(ctx context.Context) error {
		return notFound(s.coll.FindOne(ctx, filter).Decode(&doc), "user", key)
	})
	if err != nil {
		if types.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toUser(), nil
}

// Update applies the non-nil fields of updates
func (s *UserStore) Update(ctx context.Context, id string, updates *types.UserUpdates) error {
	oid, err := objectID("id", id)
	if err != nil {
		return err
	}
	updates.UpdatedAt = time.Now().UTC()

	var matched int64
	err = s.obs.StoreOperation(ctx, systemMongo, "update", database.UsersCollection, func(ctx context.Context) error {
		res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": updates})
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if matched == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("user not found: %s", id))
	}
	return nil
}

// Delete removes a user document
func (s *UserStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID("id", id)
	if err != nil {
		return err
	}

	var deleted int64
	err = s.obs.StoreOperation(ctx, systemMongo, "delete", database.UsersCollection, func(ctx context.Context) error {
		res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if deleted == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("user not found: %s", id))
	}

	s.logger.WithUserID(id).Info("Deleted user")
	return nil
}
