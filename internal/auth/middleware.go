package auth

import (
	"context"
	"net/http"

	"github.com/sakif/content-dashboard/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the identity value.
type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier is the part of TokenService the middleware needs.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// RequireAuth enforces a valid session on protected routes.
//
// It reads the JWT from the auth_token cookie, verifies it and stores the
// Identity in the request context. Missing or invalid tokens get a 401 with
// the same body in every case.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole must run after RequireAuth. It rejects callers whose role is
// below min with 403.
func RequireRole(min model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			if !id.Role.AtLeast(min) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a context carrying id. Handlers under test use it to
// skip the cookie round trip.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the verified caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

func identityFromRequest(r *http.Request, tokens TokenVerifier) (Identity, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return Identity{}, err
	}
	return tokens.Verify(cookie.Value)
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
