// Package auth provides the session codec, the Google OAuth provider, the
// OAuth state store and the HTTP middleware that enforces sessions.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User visits /auth/google → a random state is stored and the browser is
//     redirected to Google
//  2. Google calls back /auth/google/callback with code + state
//  3. The state is consumed, the code exchanged, the profile fetched and the
//     user upserted
//  4. A session JWT is issued and stored in the HttpOnly "auth_token" cookie
//  5. On later API calls, middleware reads the cookie, verifies the JWT and
//     puts the Identity in the request context
//
// The session is stateless: userId, email and role all live inside the
// signed token. A role change therefore only takes effect after a new token
// is issued on the next login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

const (
	// SessionTTL is both the JWT lifetime and the cookie max-age.
	SessionTTL = 7 * 24 * time.Hour

	issuer = "content-dashboard"
)

// ErrInvalidToken is returned for every verification failure. Expired,
// tampered and malformed tokens are deliberately indistinguishable.
var ErrInvalidToken = errors.New("auth: invalid session token")

// Identity is what a verified session proves about the caller.
type Identity struct {
	UserID string     `json:"userId"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// A missing or short secret is a fatal configuration error.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, apperror.Config("JWT_SECRET", "is required")
	}
	if len(secret) < 16 {
		return nil, apperror.Config("JWT_SECRET", "must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. "sub" carries the internal user ID.
type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a session token for user that expires after SessionTTL.
func (s *TokenService) Issue(user *model.User) (string, error) {
	return s.IssueWithTTL(user, SessionTTL)
}

// IssueWithTTL creates a token with a custom lifetime. Used in tests.
func (s *TokenService) IssueWithTTL(user *model.User, ttl time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("auth: cannot issue token without a user id")
	}

	now := s.now()
	c := claims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks a token: signature, HS256 only, issuer and a
// future expiry. Any failure collapses to ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	role := model.Role(c.Role)
	if !role.Valid() {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: c.Subject, Email: c.Email, Role: role}, nil
}
