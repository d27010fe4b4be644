// Package user manages accounts: registration, email verification, login
// and password resets.
package user

import (
	"context"
	"time"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/auth"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Sentinel errors for account operations.
var (
	ErrNotFound           = apperr.New(apperr.NotFound, "User not found")
	ErrEmailTaken         = apperr.New(apperr.Conflict, "Email already exist")
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "Invalid email or password")
	ErrAlreadyVerified    = apperr.New(apperr.Conflict, "User is already verified")
	ErrTokenNotFound      = apperr.New(apperr.Validation, "Token is invalid or expired")
)

// User is an account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token is a stored single-use or refresh token.
type Token struct {
	ID        string
	UserID    string
	Token     string
	Type      auth.TokenType
	ExpiresAt time.Time
}

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// TokenRepository defines persistence operations for tokens.
type TokenRepository interface {
	Create(ctx context.Context, t *Token) error
	// Find returns an unexpired token, or ErrTokenNotFound.
	Find(ctx context.Context, token string, typ auth.TokenType, now time.Time) (*Token, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string, typ auth.TokenType) error
}

// Message is an outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}
