package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailAlreadyUsed  = errors.New("email already used")
	ErrConfirmationStale = errors.New("confirmation token invalid or expired")
)

type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	PasswordHash  string `json:"-"` // never expose hash in JSON
	Authenticated bool   `json:"authenticated"`

	EmailConfirmTokenHash *string    `json:"-"`
	EmailConfirmExpiresAt *time.Time `json:"-"`
	PasswordChangedAt     *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser is what the store needs to create an unauthenticated account.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Name *string
}

type SignupInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (in SignupInput) Normalize() SignupInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	return in
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate lists every field a client may send to PATCH /me. Email and
// password are accepted in the shape only so they can be refused.
type ProfileUpdate struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (p ProfileUpdate) TouchesCredentials() bool {
	return p.Email != nil || p.Password != nil || p.PasswordConfirm != nil
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IssuedBeforePasswordChange reports whether a session issued at iat predates
// the last password change.
func (u User) IssuedBeforePasswordChange(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Before(*u.PasswordChangedAt)
}
