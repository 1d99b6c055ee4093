package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/types"
)

// TokenManager issues and validates HS256 session tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenManager creates a token manager from the jwt config section
func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	ttl := time.Duration(cfg.AccessTokenTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.SecretKey),
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// JWTClaims is the token payload
type JWTClaims struct {
	UserID       string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Receptionist string `json:"receptionist,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Incomplete   bool   `json:"incomplete,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for claims
func (tm *TokenManager) Issue(claims *types.UserClaims) (string, error) {
	now := tm.now()
	jwtClaims := &JWTClaims{
		UserID:       claims.UserID,
		Name:         claims.Name,
		Email:        claims.Email,
		Role:         string(claims.Role),
		Receptionist: claims.Receptionist,
		Provider:     claims.Provider,
		Incomplete:   claims.Incomplete,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tm.issuer,
			Subject:   claims.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature and expiry of tokenString
func (tm *TokenManager) ValidateToken(tokenString string) (*types.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, fmt.Sprintf("invalid token: %v", err))
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid token claims")
	}
	if tm.issuer != "" && claims.Issuer != tm.issuer {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "unexpected token issuer")
	}

	return &types.UserClaims{
		UserID:       claims.UserID,
		Name:         claims.Name,
		Email:        claims.Email,
		Role:         types.UserRole(claims.Role),
		Receptionist: claims.Receptionist,
		Provider:     claims.Provider,
		Incomplete:   claims.Incomplete,
	}, nil
}
