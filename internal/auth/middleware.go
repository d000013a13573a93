package auth

import (
	"net/http"
	"net/url"
)

// Middleware gates browser requests behind a valid session. When no
// identity provider is configured the gate is open: a single-operator
// deployment without OIDC needs no login.
type Middleware struct {
	sessions *Sessions
	policy   Policy
	enabled  bool
}

// NewMiddleware constructs the login gate.
func NewMiddleware(sessions *Sessions, policy Policy, enabled bool) *Middleware {
	return &Middleware{sessions: sessions, policy: policy, enabled: enabled}
}

// Wrap enforces the gate around next. Unauthenticated requests are
// redirected to /login with the original URL preserved.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(CookieName)
		if err == nil {
			if user, parseErr := m.sessions.Parse(cookie.Value); parseErr == nil {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
				return
			}
		}
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
	})
}
