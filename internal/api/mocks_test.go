package api

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/mediflow/clinic/pkg/interfaces"
	"github.com/mediflow/clinic/pkg/types"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *types.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDAndRole(ctx context.Context, id string, role types.UserRole) (*types.User, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id string, updates *types.UserUpdates) error {
	args := m.Called(ctx, id, updates)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPrescriptionRepository is a mock implementation of PrescriptionRepository
type MockPrescriptionRepository struct {
	mock.Mock
}

func (m *MockPrescriptionRepository) Insert(ctx context.Context, p *types.Prescription) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *MockPrescriptionRepository) ListByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Prescription), args.Error(1)
}

func (m *MockPrescriptionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*types.Prescription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Prescription), args.Error(1)
}

func (m *MockPrescriptionRepository) Complete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockFileRepository is a mock implementation of FileRepository
type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Insert(ctx context.Context, f *types.FileRecord) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

func (m *MockFileRepository) ListByUser(ctx context.Context, userID string, limit int64) ([]*types.FileRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.FileRecord), args.Error(1)
}

func (m *MockFileRepository) GetForUser(ctx context.Context, id, userID string) (*types.FileRecord, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FileRecord), args.Error(1)
}

func (m *MockFileRepository) DeleteForUser(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockAccessListRepository is a mock implementation of AccessListRepository
type MockAccessListRepository struct {
	mock.Mock
}

func (m *MockAccessListRepository) ListByUser(ctx context.Context, userID string) ([]*types.AccessEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.AccessEntry), args.Error(1)
}

func (m *MockAccessListRepository) Exists(ctx context.Context, userID, doctorID string) (bool, error) {
	args := m.Called(ctx, userID, doctorID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccessListRepository) Add(ctx context.Context, userID, doctorID string) error {
	args := m.Called(ctx, userID, doctorID)
	return args.Error(0)
}

func (m *MockAccessListRepository) Remove(ctx context.Context, userID, doctorID string) error {
	args := m.Called(ctx, userID, doctorID)
	return args.Error(0)
}

// activityRecorder keeps activity messages in memory
type activityRecorder struct {
	messages []string
}

func (a *activityRecorder) Record(ctx context.Context, message string) error {
	a.messages = append(a.messages, message)
	return nil
}

// MockPasswordHasher is a mock implementation of PasswordHasher
type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) HashPassword(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) VerifyPassword(hashedPassword, password string) (bool, error) {
	args := m.Called(hashedPassword, password)
	return args.Bool(0), args.Error(1)
}

// MockResetCodeStore is a mock implementation of ResetCodeStore
type MockResetCodeStore struct {
	mock.Mock
}

func (m *MockResetCodeStore) Save(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

func (m *MockResetCodeStore) Consume(ctx context.Context, email, code string) (bool, error) {
	args := m.Called(ctx, email, code)
	return args.Bool(0), args.Error(1)
}

// MockMailer is a mock implementation of Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendResetCode(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

// MockBlobStore is a mock implementation of BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Upload(ctx context.Context, kind types.BlobKind, r io.Reader) (*types.BlobUploadResult, error) {
	args := m.Called(ctx, kind, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BlobUploadResult), args.Error(1)
}

func (m *MockBlobStore) Destroy(ctx context.Context, publicID, resourceType string) error {
	args := m.Called(ctx, publicID, resourceType)
	return args.Error(0)
}

// MockAssistant is a mock implementation of Assistant
type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockGoogleVerifier is a mock implementation of GoogleVerifier
type MockGoogleVerifier struct {
	mock.Mock
}

func (m *MockGoogleVerifier) Verify(ctx context.Context, idToken string) (*interfaces.GoogleIdentity, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.GoogleIdentity), args.Error(1)
}
