package interfaces

import "github.com/mediflow/clinic/pkg/types"

// TokenService issues and validates session tokens
type TokenService interface {
	Issue(claims *types.UserClaims) (string, error)
	ValidateToken(token string) (*types.UserClaims, error)
}

// PasswordHasher hashes and verifies account passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hashedPassword, password string) (bool, error)
}
