package interfaces

import (
	"context"
	"io"

	"github.com/mediflow/clinic/pkg/types"
)

// BlobStore uploads and destroys files held by the external blob service
type BlobStore interface {
	Upload(ctx context.Context, kind types.BlobKind, r io.Reader) (*types.BlobUploadResult, error)
	Destroy(ctx context.Context, publicID, resourceType string) error
}

// Mailer delivers outbound email
type Mailer interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// Assistant answers a medication question from a prepared prompt
type Assistant interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GoogleIdentity is the verified content of a Google ID token
type GoogleIdentity struct {
	Email         string
	Name          string
	EmailVerified bool
}

// GoogleVerifier validates Google ID tokens
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// ResetCodeStore holds short-lived password reset codes
type ResetCodeStore interface {
	Save(ctx context.Context, email, code string) error
	// Consume checks code and deletes it on a match
	Consume(ctx context.Context, email, code string) (bool, error)
}
