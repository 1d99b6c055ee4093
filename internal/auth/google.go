// Package auth issues session tokens and verifies the credentials behind them.
package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"

	"github.com/mediflow/clinic/pkg/interfaces"
	"github.com/mediflow/clinic/pkg/types"
)

// GoogleVerifier validates Google ID tokens issued for clientID
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleVerifier creates a verifier for the configured OAuth client
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

// Verify checks idToken and extracts the identity it asserts
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*interfaces.GoogleIdentity, error) {
	if v.clientID == "" {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "google sign-in is not configured", nil)
	}

	payload, err := v.validate(ctx, idToken, v.clientID)
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, fmt.Sprintf("invalid google token: %v", err))
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "google token carries no email")
	}
	name, _ := payload.Claims["name"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)

	return &interfaces.GoogleIdentity{
		Email:         email,
		Name:          name,
		EmailVerified: verified,
	}, nil
}
