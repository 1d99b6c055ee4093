package interfaces

import (
	"context"

	"github.com/mediflow/clinic/pkg/types"
)

// UserRepository persists user documents
type UserRepository interface {
	Create(ctx context.Context, user *types.User) (string, error)
	GetByID(ctx context.Context, id string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	GetByIDAndRole(ctx context.Context, id string, role types.UserRole) (*types.User, error)
	Update(ctx context.Context, id string, updates *types.UserUpdates) error
	Delete(ctx context.Context, id string) error
}

// PrescriptionRepository persists prescription records.
// Insert is all-or-nothing; a failed insert leaves nothing behind.
type PrescriptionRepository interface {
	Insert(ctx context.Context, p *types.Prescription) (string, error)
	ListByUser(ctx context.Context, userID string) ([]*types.Prescription, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*types.Prescription, error)
	// Complete moves an Active record to Completed and fails with a conflict
	// error when the record is already Completed.
	Complete(ctx context.Context, id string) error
}

// FileRepository persists uploaded file records
type FileRepository interface {
	Insert(ctx context.Context, f *types.FileRecord) (string, error)
	ListByUser(ctx context.Context, userID string, limit int64) ([]*types.FileRecord, error)
	GetForUser(ctx context.Context, id, userID string) (*types.FileRecord, error)
	DeleteForUser(ctx context.Context, id, userID string) error
}

// AccessListRepository persists doctor grants on patient records
type AccessListRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*types.AccessEntry, error)
	Exists(ctx context.Context, userID, doctorID string) (bool, error)
	Add(ctx context.Context, userID, doctorID string) error
	Remove(ctx context.Context, userID, doctorID string) error
}

// ActivityLogger appends to the activity trail
type ActivityLogger interface {
	Record(ctx context.Context, message string) error
}
