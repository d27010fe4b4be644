// Package auth issues and verifies the signed tokens used for sessions,
// email verification and password resets.
package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
)

// TokenType distinguishes what a token may be used for.
type TokenType string

const (
	TypeAccess       TokenType = "access_token"
	TypeRefresh      TokenType = "refresh_token"
	TypeVerification TokenType = "verification"
	TypeReset        TokenType = "reset_password"
)

// Sentinel errors returned by Parse.
var (
	ErrTokenMissing   = apperr.New(apperr.Validation, "Token is missing")
	ErrTokenExpired   = apperr.New(apperr.Validation, "Token has expired")
	ErrTokenInvalid   = apperr.New(apperr.Validation, "Invalid token")
	ErrTokenWrongType = apperr.New(apperr.Validation, "Invalid token type")
)

// Claims is the token payload.
type Claims struct {
	UserID string    `json:"userId"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
	Type   TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Subject identifies the user a token is issued for.
type Subject struct {
	UserID string
	Name   string
	Role   string
}

// TTLs holds the lifetime of each token type.
type TTLs struct {
	Access       time.Duration
	Refresh      time.Duration
	Verification time.Duration
	Reset        time.Duration
}

// DefaultTTLs returns the standard token lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Access:       time.Hour,
		Refresh:      7 * 24 * time.Hour,
		Verification: 5 * time.Minute,
		Reset:        time.Minute,
	}
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttls   TTLs
	now    func() time.Time
}

// NewIssuer returns an Issuer. Zero TTLs fall back to DefaultTTLs.
func NewIssuer(secret string, ttls TTLs) *Issuer {
	def := DefaultTTLs()
	if ttls.Access <= 0 {
		ttls.Access = def.Access
	}
	if ttls.Refresh <= 0 {
		ttls.Refresh = def.Refresh
	}
	if ttls.Verification <= 0 {
		ttls.Verification = def.Verification
	}
	if ttls.Reset <= 0 {
		ttls.Reset = def.Reset
	}
	return &Issuer{secret: []byte(secret), ttls: ttls, now: time.Now}
}

// TTL returns the lifetime of typ.
func (i *Issuer) TTL(typ TokenType) time.Duration {
	switch typ {
	case TypeAccess:
		return i.ttls.Access
	case TypeRefresh:
		return i.ttls.Refresh
	case TypeVerification:
		return i.ttls.Verification
	default:
		return i.ttls.Reset
	}
}

// Issue signs a token of type typ for sub and returns it with its expiry.
func (i *Issuer) Issue(sub Subject, typ TokenType) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.TTL(typ))
	claims := Claims{
		UserID: sub.UserID,
		Name:   sub.Name,
		Role:   sub.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return signed, exp, nil
}

// Parse verifies the signature, expiry and type of a token.
func (i *Issuer) Parse(token string, want TokenType) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, apperr.Wrap(apperr.Validation, err, ErrTokenInvalid.Message)
	}

	if claims.Type != want {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}
