package user

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/auth"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

// Session is the token pair returned by Login.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Config tunes the Service.
type Config struct {
	// VerifyURL is the page a verification link points to; the token is
	// appended as the "token" query parameter.
	VerifyURL string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Retry      txn.Policy
}

// Service implements account workflows.
type Service struct {
	users    Repository
	tokens   TokenRepository
	tx       txn.Runner
	issuer   *auth.Issuer
	mailer   Mailer
	validate *validator.Validate
	cfg      Config
	now      func() time.Time
	newID    func() string
}

// NewService creates a user Service.
func NewService(
	users Repository,
	tokens TokenRepository,
	tx txn.Runner,
	issuer *auth.Issuer,
	mailer Mailer,
	cfg Config,
) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = txn.DefaultPolicy
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		tx:       tx,
		issuer:   issuer,
		mailer:   mailer,
		validate: newValidator(),
		cfg:      cfg,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Register creates an unverified account and emails a verification token.
// Registering again with an unverified email replaces the pending account's
// name, password and verification token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	return txn.Do(ctx, s.tx, func(ctx context.Context) (*User, error) {
		u, err := s.users.GetByEmail(ctx, req.Email)
		switch {
		case errors.Is(err, ErrNotFound):
			u = &User{
				ID:           s.newID(),
				Name:         req.Name,
				Email:        req.Email,
				PasswordHash: string(hash),
				Role:         RoleUser,
			}
			if err := s.users.Create(ctx, u); err != nil {
				return nil, errors.Wrap(err, "create user")
			}
		case err != nil:
			return nil, errors.Wrap(err, "get user")
		case u.IsVerified:
			return nil, ErrEmailTaken
		default:
			u.Name = req.Name
			u.PasswordHash = string(hash)
			if err := s.users.Update(ctx, u); err != nil {
				return nil, errors.Wrap(err, "update user")
			}
			if err := s.tokens.DeleteForUser(ctx, u.ID, auth.TypeVerification); err != nil {
				return nil, errors.Wrap(err, "delete verification tokens")
			}
		}

		token, err := s.storeToken(ctx, u, auth.TypeVerification)
		if err != nil {
			return nil, err
		}
		if err := s.mailer.Send(ctx, Message{
			To:      u.Email,
			Subject: "Email verification",
			Body:    s.verifyLink(token),
		}); err != nil {
			return nil, errors.Wrap(err, "send verification email")
		}
		return u, nil
	})
}

// Login checks credentials of a verified account and returns a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.New(apperr.Validation, "All fields are required")
	}

	return txn.Do(ctx, s.tx, func(ctx context.Context) (*Session, error) {
		u, err := s.users.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrInvalidCredentials
		case err != nil:
			return nil, errors.Wrap(err, "get user")
		case !u.IsVerified:
			return nil, ErrInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}

		access, _, err := s.issuer.Issue(subject(u), auth.TypeAccess)
		if err != nil {
			return nil, err
		}
		refresh, err := s.storeToken(ctx, u, auth.TypeRefresh)
		if err != nil {
			return nil, err
		}
		return &Session{AccessToken: access, RefreshToken: refresh}, nil
	})
}

// VerifyEmail marks the token's user verified and consumes the token.
// Concurrent verifications of the same account can collide on the user row,
// so the unit of work is retried on write conflicts.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if _, err := s.issuer.Parse(token, auth.TypeVerification); err != nil {
		return err
	}

	return txn.Retry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.tx.Run(ctx, func(ctx context.Context) error {
			rec, err := s.tokens.Find(ctx, token, auth.TypeVerification, s.now())
			if err != nil {
				if errors.Is(err, ErrTokenNotFound) {
					return apperr.New(apperr.Validation, "Invalid Token")
				}
				return errors.Wrap(err, "find token")
			}

			u, err := s.users.Get(ctx, rec.UserID)
			if err != nil {
				return err
			}
			if u.IsVerified {
				return ErrAlreadyVerified
			}

			u.IsVerified = true
			if err := s.users.Update(ctx, u); err != nil {
				return errors.Wrap(err, "update user")
			}
			if err := s.tokens.Delete(ctx, rec.ID); err != nil {
				return errors.Wrap(err, "delete token")
			}
			return nil
		})
	})
}

// ForgotPassword emails a reset token to a verified account, replacing any
// earlier one.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.New(apperr.Validation, "Email is required")
	}

	return s.tx.Run(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if !u.IsVerified {
			return ErrNotFound
		}

		if err := s.tokens.DeleteForUser(ctx, u.ID, auth.TypeReset); err != nil {
			return errors.Wrap(err, "delete reset tokens")
		}
		token, err := s.storeToken(ctx, u, auth.TypeReset)
		if err != nil {
			return err
		}
		if err := s.mailer.Send(ctx, Message{
			To:      u.Email,
			Subject: "Reset Password Link",
			Body:    token,
		}); err != nil {
			return errors.Wrap(err, "send reset email")
		}
		return nil
	})
}

// CheckResetToken reports whether a reset token is still usable.
func (s *Service) CheckResetToken(ctx context.Context, token string) error {
	if _, err := s.issuer.Parse(token, auth.TypeReset); err != nil {
		return err
	}
	_, err := s.tokens.Find(ctx, token, auth.TypeReset, s.now())
	return err
}

// ResetPassword sets a new password and consumes the reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return apperr.New(apperr.Validation, "New password and token are required")
	}
	if err := s.validate.Var(newPassword, "min=8,max=30,password"); err != nil {
		return apperr.New(apperr.Validation,
			"Password must be 8 to 30 characters and contain at least one uppercase letter, one lowercase letter, and one digit")
	}
	if _, err := s.issuer.Parse(token, auth.TypeReset); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	return s.tx.Run(ctx, func(ctx context.Context) error {
		rec, err := s.tokens.Find(ctx, token, auth.TypeReset, s.now())
		if err != nil {
			return err
		}
		u, err := s.users.Get(ctx, rec.UserID)
		if err != nil {
			return err
		}

		u.PasswordHash = string(hash)
		if err := s.users.Update(ctx, u); err != nil {
			return errors.Wrap(err, "update user")
		}
		return s.tokens.Delete(ctx, rec.ID)
	})
}

// Exists reports whether a user with id exists.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.users.Exists(ctx, id)
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.users.Count(ctx)
}

func (s *Service) storeToken(ctx context.Context, u *User, typ auth.TokenType) (string, error) {
	token, exp, err := s.issuer.Issue(subject(u), typ)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Create(ctx, &Token{
		ID:        s.newID(),
		UserID:    u.ID,
		Token:     token,
		Type:      typ,
		ExpiresAt: exp,
	}); err != nil {
		return "", errors.Wrapf(err, "store %s", typ)
	}
	return token, nil
}

func (s *Service) verifyLink(token string) string {
	if s.cfg.VerifyURL == "" {
		return token
	}
	u, err := url.Parse(s.cfg.VerifyURL)
	if err != nil {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func subject(u *User) auth.Subject {
	return auth.Subject{UserID: u.ID, Name: u.Name, Role: u.Role}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
