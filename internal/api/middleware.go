package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

type claimsKey struct{}

// ClaimsFromContext returns the caller's claims stored by the auth middleware
func ClaimsFromContext(ctx context.Context) (*types.UserClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*types.UserClaims)
	return claims, ok
}

// corsMiddleware handles CORS headers for the configured origins
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) originAllowed(origin string) bool {
	for _, allowed := range s.config.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// authenticated validates the bearer token and stores the claims in the request context
func (s *Service) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized access... Missing token")
			return
		}

		claims, err := s.deps.Tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Debug("Token validation failed")
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = context.WithValue(ctx, logger.UserIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireProfile rejects tokens issued before a Google sign-up was completed
func (s *Service) requireProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized access... Missing token")
			return
		}
		if claims.Incomplete || !claims.Role.Valid() {
			s.writeErrorResponse(w, http.StatusForbidden, "Profile completion required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole admits only callers holding one of roles
func (s *Service) requireRole(next http.Handler, roles ...types.UserRole) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized access... Missing token")
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		s.logger.Security("role_denied", claims.UserID, map[string]interface{}{
			"path": r.URL.Path,
			"role": claims.Role,
		})
		s.writeErrorResponse(w, http.StatusForbidden, "Access denied")
	})
}

// rateLimited applies limiter per authenticated user
func (s *Service) rateLimited(limiter *RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized access... Missing token")
			return
		}
		if !limiter.Allow(claims.UserID) {
			s.logger.WithUserID(claims.UserID).WithField("path", r.URL.Path).Warn("Rate limit exceeded")
			s.writeErrorResponse(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
