package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const sessionCookieName = "survey_session"

func newSessionKey() string {
	return uuid.New().String()
}

// sessionKey returns the attempt key carried by the request, or "" when the
// cookie is absent or not a uuid.
func sessionKey(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

// bindSession reuses the request's key or issues a new one, refreshing the cookie either way.
func (h *Handler) bindSession(w http.ResponseWriter, r *http.Request) string {
	key := sessionKey(r)
	if key == "" {
		key = h.newKey()
	}
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure || isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
	if h.cookieTTL > 0 {
		cookie.Expires = time.Now().Add(h.cookieTTL)
		cookie.MaxAge = int(h.cookieTTL / time.Second)
	}
	http.SetCookie(w, cookie)
	return key
}

func (h *Handler) deleteCookie(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure || isSecureRequest(r),
	}
}

// isSecureRequest detects HTTPS directly or behind a proxy.
func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
