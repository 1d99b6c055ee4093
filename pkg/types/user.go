package types

import "time"

// UserRole represents the different user roles in the clinic
type UserRole string

const (
	RolePatient      UserRole = "patient"
	RoleDoctor       UserRole = "doctor"
	RoleReceptionist UserRole = "receptionist"
	// RoleNone marks a Google sign-up that has not picked a role yet
	RoleNone UserRole = "NONE"
)

// Valid reports whether r is one of the roles a profile can be completed with
func (r UserRole) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleReceptionist:
		return true
	}
	return false
}

// User represents a clinic user document
type User struct {
	ID                 string    `json:"id" bson:"-"`
	Name               string    `json:"name" bson:"name"`
	Email              string    `json:"email" bson:"email"`
	Password           string    `json:"-" bson:"password,omitempty"`
	Role               UserRole  `json:"role" bson:"role"`
	RegistrationNumber string    `json:"registrationNumber,omitempty" bson:"registrationNumber,omitempty"`
	Receptionist       string    `json:"receptionist,omitempty" bson:"receptionist,omitempty"`
	Provider           string    `json:"provider,omitempty" bson:"provider,omitempty"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt" bson:"updatedAt"`
}

// UserClaims represents JWT token claims
type UserClaims struct {
	UserID       string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         UserRole `json:"role"`
	Receptionist string   `json:"receptionist,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Incomplete   bool     `json:"incomplete,omitempty"`
}

// SignupRequest represents user registration data
type SignupRequest struct {
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	Password           string   `json:"password"`
	Role               UserRole `json:"role"`
	RegistrationNumber string   `json:"registrationNumber"`
}

// Credentials represents user login credentials
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by every route that issues a token
type LoginResponse struct {
	Message       string      `json:"message"`
	Token         string      `json:"token"`
	User          *UserClaims `json:"user"`
	NeedsMoreInfo *bool       `json:"needsMoreInfo,omitempty"`
}

// ResetCodeRequest asks for a password reset code
type ResetCodeRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest carries the emailed code and the new password
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// CompleteProfileRequest finishes a Google sign-up
type CompleteProfileRequest struct {
	Username           string   `json:"username"`
	Role               UserRole `json:"role"`
	RegistrationNumber string   `json:"registrationNumber"`
}

// UserUpdates represents updates to user information
type UserUpdates struct {
	Name               *string   `bson:"name,omitempty"`
	Role               *UserRole `bson:"role,omitempty"`
	RegistrationNumber *string   `bson:"registrationNumber,omitempty"`
	Receptionist       *string   `bson:"receptionist,omitempty"`
	Password           *string   `bson:"password,omitempty"`
	UpdatedAt          time.Time `bson:"updatedAt"`
}

// Claims returns the token claims for u
func (u *User) Claims() *UserClaims {
	return &UserClaims{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Receptionist: u.Receptionist,
		Provider:     u.Provider,
	}
}
