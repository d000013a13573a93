package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newSessions(t *testing.T) *Sessions {
	t.Helper()
	sessions, err := NewSessions([]byte("test-secret"))
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	return sessions
}

func TestMiddleware_NoCookieRedirectsToLogin(t *testing.T) {
	sessions := newSessions(t)
	policy := NewDefaultPolicy([]string{"/healthz"}, nil)
	mw := NewMiddleware(sessions, policy, true)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/?success=x", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.Code)
	}
	location := resp.Header().Get("Location")
	if !strings.HasPrefix(location, "/login?next=") {
		t.Fatalf("expected redirect to /login, got %q", location)
	}
}

func TestMiddleware_ValidSessionPassesUser(t *testing.T) {
	sessions := newSessions(t)
	token, err := sessions.Issue(User{Subject: "user-1", Name: "Alex", Email: "alex@example.org"}, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	mw := NewMiddleware(sessions, NewDefaultPolicy(nil, nil), true)

	var got User
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got.Subject != "user-1" || got.Email != "alex@example.org" {
		t.Fatalf("unexpected user in context: %+v", got)
	}
}

func TestMiddleware_TamperedCookieRedirects(t *testing.T) {
	sessions := newSessions(t)
	other, err := NewSessions([]byte("other-secret"))
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	token, err := other.Issue(User{Subject: "user-1"}, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	mw := NewMiddleware(sessions, NewDefaultPolicy(nil, nil), true)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.Code)
	}
}

func TestMiddleware_ExemptPathsPass(t *testing.T) {
	sessions := newSessions(t)
	policy := NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/static/"})
	mw := NewMiddleware(sessions, policy, true)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/metrics", "/static/style.css"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.Code)
		}
	}
}

func TestMiddleware_DisabledGateIsOpen(t *testing.T) {
	mw := NewMiddleware(nil, NewDefaultPolicy(nil, nil), false)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with disabled gate, got %d", resp.Code)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	sessions := newSessions(t)
	token, err := sessions.Issue(User{Subject: "sub-1", Name: "Alex"}, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	user, err := sessions.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if user.Subject != "sub-1" || user.Name != "Alex" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestSessionExpired(t *testing.T) {
	sessions := newSessions(t)
	token, err := sessions.Issue(User{Subject: "sub-1"}, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := sessions.Parse(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestSessionRejectsEmptySubject(t *testing.T) {
	sessions := newSessions(t)
	if _, err := sessions.Issue(User{}, time.Now()); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
