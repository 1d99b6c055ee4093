package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mediflow/clinic/pkg/types"
)

func (s *Service) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req types.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		s.writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if !req.Role.Valid() {
		s.writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if req.Role == types.RoleDoctor && req.RegistrationNumber == "" {
		s.writeMessage(w, http.StatusBadRequest, "Registration number is required for doctors")
		return
	}

	hash, err := s.deps.Passwords.HashPassword(req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	user := &types.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
		Role:     req.Role,
	}
	if req.Role == types.RoleDoctor {
		user.RegistrationNumber = req.RegistrationNumber
	}

	id, err := s.deps.Users.Create(r.Context(), user)
	if err != nil {
		if types.ErrorTypeOf(err) == types.ErrorTypeConflict {
			s.writeMessage(w, http.StatusConflict, "User already exists")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	s.logger.Audit(id, "signup", "user", true, map[string]interface{}{"role": req.Role})
	s.writeMessage(w, http.StatusCreated, "User registered successfully")
}

func (s *Service) loginHandler(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if err := decodeJSON(r, &creds); err != nil || creds.Email == "" || creds.Password == "" {
		s.writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	if !s.loginLimiter.Allow(email) {
		s.logger.Security("login_rate_limited", "", map[string]interface{}{"email": email})
		s.writeMessage(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
		return
	}

	var user *types.User
	status, msg := http.StatusOK, ""
	_ = s.monitoring.AuthOperation(r.Context(), "password", func(ctx context.Context) error {
		found, err := s.deps.Users.GetByEmail(ctx, email)
		if err != nil {
			if types.ErrorTypeOf(err) == types.ErrorTypeNotFound {
				status, msg = http.StatusNotFound, "User not found"
			} else {
				status, msg = http.StatusInternalServerError, "Internal server error"
				s.logger.WithContext(ctx).WithError(err).Error("Failed to look up user")
			}
			return err
		}
		ok, err := s.deps.Passwords.VerifyPassword(found.Password, creds.Password)
		if err != nil || !ok {
			status, msg = http.StatusUnauthorized, "Invalid credentials"
			return types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid credentials")
		}
		user = found
		return nil
	})
	if user == nil {
		s.writeMessage(w, status, msg)
		return
	}

	s.issueLogin(w, r, http.StatusOK, "Login successful", user.Claims(), nil)
}

func (s *Service) resetCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req types.ResetCodeRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		s.writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.deps.Users.GetByEmail(r.Context(), email); err != nil {
		if types.ErrorTypeOf(err) == types.ErrorTypeNotFound {
			s.writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	code, err := s.newResetCode()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.deps.ResetCodes.Save(r.Context(), email, code); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.deps.Mailer.SendResetCode(r.Context(), email, code); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("Failed to send reset code")
		s.writeMessage(w, http.StatusBadGateway, "Failed to send reset code")
		return
	}

	s.writeMessage(w, http.StatusOK, "Reset code sent")
}

func (s *Service) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req types.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Code == "" || req.NewPassword == "" {
		s.writeMessage(w, http.StatusBadRequest, "Email, code and new password are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !s.loginLimiter.Allow(email) {
		s.logger.Security("reset_rate_limited", "", map[string]interface{}{"email": email})
		s.writeMessage(w, http.StatusTooManyRequests, "Too many attempts, try again later")
		return
	}

	ok, err := s.deps.ResetCodes.Consume(r.Context(), email, req.Code)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !ok {
		s.logger.Security("reset_code_rejected", "", map[string]interface{}{"email": email})
		s.writeMessage(w, http.StatusBadRequest, "Invalid or expired code")
		return
	}

	user, err := s.deps.Users.GetByEmail(r.Context(), email)
	if err != nil {
		if types.ErrorTypeOf(err) == types.ErrorTypeNotFound {
			s.writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		s.writeAppError(w, r, err)
		return
	}

	hash, err := s.deps.Passwords.HashPassword(req.NewPassword)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.deps.Users.Update(r.Context(), user.ID, &types.UserUpdates{Password: &hash, UpdatedAt: time.Now().UTC()}); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.logger.Audit(user.ID, "password_reset", "user", true, nil)
	s.writeMessage(w, http.StatusOK, "Password reset successful")
}

type googleAuthRequest struct {
	Token string `json:"token"`
}

func (s *Service) googleAuthHandler(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		s.writeMessage(w, http.StatusBadRequest, "Google token missing")
		return
	}

	var identity struct {
		email, name string
		verified    bool
	}
	err := s.monitoring.AuthOperation(r.Context(), "google", func(ctx context.Context) error {
		id, err := s.deps.Google.Verify(ctx, req.Token)
		if err != nil {
			return err
		}
		identity.email = strings.ToLower(id.Email)
		identity.name = id.Name
		identity.verified = id.EmailVerified
		return nil
	})
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Warn("Google token rejected")
		s.writeMessage(w, http.StatusUnauthorized, "Invalid Google token")
		return
	}
	if !identity.verified {
		s.writeMessage(w, http.StatusForbidden, "Email not verified by Google")
		return
	}

	existing, err := s.deps.Users.GetByEmail(r.Context(), identity.email)
	switch {
	case err == nil:
		s.recordActivity(r.Context(), "Google login successful: %s", existing.ID)
		needsMoreInfo := !existing.Role.Valid()
		claims := existing.Claims()
		claims.Incomplete = needsMoreInfo
		s.issueLogin(w, r, http.StatusOK, "Login successful", claims, &needsMoreInfo)
		return
	case types.ErrorTypeOf(err) != types.ErrorTypeNotFound:
		s.writeAppError(w, r, err)
		return
	}

	user := &types.User{
		Name:     identity.name,
		Email:    identity.email,
		Role:     types.RoleNone,
		Provider: "google",
	}
	id, err := s.deps.Users.Create(r.Context(), user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	user.ID = id

	s.recordActivity(r.Context(), "Google signup initiated: %s", identity.email)
	claims := user.Claims()
	claims.Incomplete = true
	needsMoreInfo := true
	s.issueLogin(w, r, http.StatusCreated, "Signup incomplete: additional info required", claims, &needsMoreInfo)
}

func (s *Service) completeProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	current, err := s.deps.Users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	// A role is chosen once, by an account that has none yet.
	if current.Role != types.RoleNone {
		s.logger.Security("profile_recompletion_denied", claims.UserID, map[string]interface{}{"role": string(current.Role)})
		s.writeMessage(w, http.StatusForbidden, "Profile already completed")
		return
	}

	var req types.CompleteProfileRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Role == "" {
		s.writeMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !req.Role.Valid() {
		s.writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if req.Role == types.RoleDoctor && req.RegistrationNumber == "" {
		s.writeMessage(w, http.StatusBadRequest, "Registration number is required for doctors")
		return
	}

	updates := &types.UserUpdates{
		Name:      &req.Username,
		Role:      &req.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if req.Role == types.RoleDoctor {
		updates.RegistrationNumber = &req.RegistrationNumber
	}
	if err := s.deps.Users.Update(r.Context(), claims.UserID, updates); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	user, err := s.deps.Users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.recordActivity(r.Context(), "Google profile completed: %s", user.ID)
	s.issueLogin(w, r, http.StatusOK, "Profile completion successful", user.Claims(), nil)
}

func (s *Service) meHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	s.writeJSONResponse(w, http.StatusOK, claims)
}

func (s *Service) deleteMeHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	if err := s.deps.Users.Delete(r.Context(), claims.UserID); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.logger.Audit(claims.UserID, "delete_account", "user", true, nil)
	s.recordActivity(r.Context(), "User deleted: %s", claims.UserID)
	s.writeJSONResponse(w, http.StatusOK, response{Success: true, Message: "User deleted successfully"})
}

// issueLogin signs claims and writes the login response
func (s *Service) issueLogin(w http.ResponseWriter, r *http.Request, status int, msg string, claims *types.UserClaims, needsMoreInfo *bool) {
	token, err := s.deps.Tokens.Issue(claims)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeJSONResponse(w, status, types.LoginResponse{
		Message:       msg,
		Token:         token,
		User:          claims,
		NeedsMoreInfo: needsMoreInfo,
	})
}
