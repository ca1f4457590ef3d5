package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/auth"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/service"
)

// AuthFlow is the part of service.AuthService the handler drives.
type AuthFlow interface {
	Initiate(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, p service.CallbackParams) service.CallbackResult
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler exposes the Google login flow and the session endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to Google's consent page
//   - HandleCallback → finish the handshake, set the session cookie, redirect
//   - HandleUser     → return the logged-in user's public profile
//   - HandleLogout   → clear the session cookie
//
// All OAuth rules (state, allow-list, upsert) live in the service. This
// handler only moves values between HTTP and the service.
type AuthHandler struct {
	flow    AuthFlow
	cookies auth.CookieOptions
	logger  *slog.Logger
}

func NewAuthHandler(flow AuthFlow, cookies auth.CookieOptions, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{flow: flow, cookies: cookies, logger: logger}
}

// HandleLogin redirects to Google.
//
// HTTP: GET /auth/google
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	target, err := h.flow.Initiate(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleCallback completes the login.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy[&error=zzz]
//
// Success sets the auth_token cookie and redirects to /dashboard; every
// failure redirects to /login?error=<reason> without a cookie.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := h.flow.HandleCallback(r.Context(), service.CallbackParams{
		Code:          q.Get("code"),
		State:         q.Get("state"),
		ProviderError: q.Get("error"),
	})

	if res.OK() {
		h.cookies.SetSessionCookie(w, r, res.Token)
	}
	http.Redirect(w, r, res.Redirect, http.StatusFound)
}

// HandleUser returns the current user without internal identifiers.
//
// HTTP: GET /api/auth/user
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.flow.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// HandleLogout clears the session cookie. The token itself stays valid
// until it expires.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}
