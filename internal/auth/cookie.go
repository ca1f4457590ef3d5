package auth

import (
	"net/http"
)

// SessionCookieName is the cookie that carries the session JWT.
const SessionCookieName = "auth_token"

// CookieOptions controls transport attributes of the session cookie.
// Secure is forced on for TLS requests even when ForceSecure is false.
type CookieOptions struct {
	ForceSecure bool
}

// SetSessionCookie attaches the token: HttpOnly, SameSite=Lax, Path=/,
// max-age matching SessionTTL.
func (o CookieOptions) SetSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   o.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session. The JWT itself
// stays valid until expiry; without the cookie the browser can't send it.
func (o CookieOptions) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (o CookieOptions) secure(r *http.Request) bool {
	if o.ForceSecure {
		return true
	}
	if r == nil {
		return false
	}
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
