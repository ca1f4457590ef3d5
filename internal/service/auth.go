// Package service holds the business rules of the dashboard.
//
// Handlers parse HTTP and call into this package; this package calls the
// storage port (repository.Store), the platform adapters and the auth
// utilities. Nothing here reads a request or writes a response, so the
// same services back the HTTP server, the scheduler and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/auth"
	"github.com/sakif/content-dashboard/internal/metrics"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
	"github.com/sakif/content-dashboard/internal/retry"
)

// FailureReason is the closed set of codes a failed login reports to the
// browser. Internal error text never leaves the server.
type FailureReason string

const (
	ReasonOAuthFailed         FailureReason = "oauth_failed"
	ReasonInvalidState        FailureReason = "invalid_state"
	ReasonMissingCode         FailureReason = "missing_code"
	ReasonTokenExchangeFailed FailureReason = "token_exchange_failed"
	ReasonProfileFetchFailed  FailureReason = "profile_fetch_failed"
	ReasonUnauthorizedEmail   FailureReason = "unauthorized_email"
	ReasonInternalError       FailureReason = "internal_error"
)

const (
	DefaultSuccessRedirect = "/dashboard"
	DefaultFailureRedirect = "/login"
)

// OAuthProvider is the identity provider side of the handshake.
// *auth.GoogleProvider implements it.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, tok *oauth2.Token) (*auth.GoogleProfile, error)
}

// SessionIssuer signs session tokens. *auth.TokenService implements it.
type SessionIssuer interface {
	Issue(user *model.User) (string, error)
}

// AuthStore is the slice of the storage port the handshake touches.
type AuthStore interface {
	repository.UserRepository
	repository.AllowedEmailRepository
}

type AuthConfig struct {
	// AllowlistEnabled restricts login to emails in allowed_emails.
	AllowlistEnabled bool
	SuccessRedirect  string
	FailureRedirect  string
	RetryPolicy      retry.Policy
	Now              func() time.Time
}

// AuthService drives the Google OAuth handshake:
//
//	Initiate → browser consents at Google → HandleCallback → session cookie
//
// The state store is the only shared mutable state. Each state is put once
// in Initiate and consumed once in HandleCallback, before any network call.
type AuthService struct {
	provider OAuthProvider
	states   auth.StateStore
	store    AuthStore
	tokens   SessionIssuer
	cfg      AuthConfig
	logger   *slog.Logger
}

func NewAuthService(
	provider OAuthProvider,
	states auth.StateStore,
	store AuthStore,
	tokens SessionIssuer,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = DefaultSuccessRedirect
	}
	if cfg.FailureRedirect == "" {
		cfg.FailureRedirect = DefaultFailureRedirect
	}
	if cfg.RetryPolicy.MaxTries == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthService{
		provider: provider,
		states:   states,
		store:    store,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
	}
}

// Initiate issues a fresh state and returns the provider consent URL.
func (s *AuthService) Initiate(ctx context.Context) (string, error) {
	state, err := auth.NewState()
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	s.states.Put(state, s.cfg.Now())
	return s.provider.AuthURL(state), nil
}

// CallbackParams are the query parameters Google sends back.
type CallbackParams struct {
	Code          string
	State         string
	ProviderError string
}

// CallbackResult tells the handler where to send the browser. Token and
// User are set only on success; Reason only on failure.
type CallbackResult struct {
	Redirect string
	Token    string
	User     *model.User
	Reason   FailureReason
}

// OK reports whether the login succeeded.
func (r CallbackResult) OK() bool { return r.Reason == "" }

// HandleCallback completes the handshake.
//
// ORDER MATTERS:
//  1. a provider error ends the flow before the state is looked at
//  2. the state is consumed (exactly once) before any outbound call, so a
//     forged or replayed callback never reaches Google
//  3. the code is exchanged and the profile fetched, each with retry
//  4. the allow-list is checked before anything is written
//  5. the user is upserted and a session issued
//
// Every failure maps to one FailureReason and is logged with its cause.
func (s *AuthService) HandleCallback(ctx context.Context, p CallbackParams) CallbackResult {
	if p.ProviderError != "" {
		s.logger.Warn("oauth provider returned an error", slog.String("provider_error", p.ProviderError))
		return s.fail(ReasonOAuthFailed)
	}

	if p.State == "" || !s.states.ConsumeIfValid(p.State) {
		s.logger.Warn("oauth callback with unknown or expired state",
			slog.String("security_event", string(ReasonInvalidState)),
		)
		return s.fail(ReasonInvalidState)
	}

	if p.Code == "" {
		return s.fail(ReasonMissingCode)
	}

	tok, err := retry.Do(ctx, s.cfg.RetryPolicy, func() (*oauth2.Token, error) {
		return classifyOAuth(s.provider.Exchange(ctx, p.Code))
	})
	if err != nil {
		s.logger.Error("oauth token exchange failed", slog.String("error", err.Error()))
		return s.fail(ReasonTokenExchangeFailed)
	}

	profile, err := retry.Do(ctx, s.cfg.RetryPolicy, func() (*auth.GoogleProfile, error) {
		return classifyOAuth(s.provider.FetchProfile(ctx, tok))
	})
	if err != nil || profile == nil || profile.ID == "" || profile.Email == "" {
		msg := "profile is missing id or email"
		if err != nil {
			msg = err.Error()
		}
		s.logger.Error("oauth profile fetch failed", slog.String("error", msg))
		return s.fail(ReasonProfileFetchFailed)
	}

	email := model.NormalizeEmail(profile.Email)

	if s.cfg.AllowlistEnabled {
		allowed, err := s.isAllowed(ctx, email)
		if err != nil {
			s.logger.Error("allow-list lookup failed", slog.String("error", err.Error()))
			return s.fail(ReasonInternalError)
		}
		if !allowed {
			s.logger.Warn("login attempt from email not on allow-list",
				slog.String("security_event", string(ReasonUnauthorizedEmail)),
				slog.String("email", email),
			)
			return s.fail(ReasonUnauthorizedEmail)
		}
	}

	user := &model.User{
		GoogleID:  profile.ID,
		Email:     email,
		Name:      profile.Name,
		AvatarURL: profile.Picture,
		LastLogin: s.cfg.Now().UTC(),
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		s.logger.Error("upserting user failed",
			slog.String("google_id", profile.ID),
			slog.String("error", err.Error()),
		)
		return s.fail(ReasonInternalError)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("issuing session failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return s.fail(ReasonInternalError)
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("role", string(user.Role)),
	)
	metrics.AuthCallbacks.WithLabelValues("success").Inc()

	return CallbackResult{
		Redirect: s.cfg.SuccessRedirect,
		Token:    token,
		User:     user,
	}
}

// CurrentUser loads the user behind a verified session.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("no session")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AuthService) isAllowed(ctx context.Context, email string) (bool, error) {
	_, err := s.store.GetAllowedEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *AuthService) fail(reason FailureReason) CallbackResult {
	metrics.AuthCallbacks.WithLabelValues(string(reason)).Inc()
	return CallbackResult{
		Redirect: s.cfg.FailureRedirect + "?error=" + url.QueryEscape(string(reason)),
		Reason:   reason,
	}
}

// classifyOAuth stops retries on answers that will not change: a rejected
// code or token from the provider.
func classifyOAuth[T any](v T, err error) (T, error) {
	if err == nil {
		return v, nil
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil &&
		re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 &&
		re.Response.StatusCode != http.StatusTooManyRequests {
		return v, retry.Permanent(err)
	}
	return v, err
}
