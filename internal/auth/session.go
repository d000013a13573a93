package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie issued after a successful login.
const CookieName = "autostrom_session"

const defaultSessionTTL = 12 * time.Hour

type sessionClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and validates HS256-signed session cookies.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions constructs a session signer.
func NewSessions(secret []byte) (*Sessions, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty session secret")
	}
	return &Sessions{secret: secret, ttl: defaultSessionTTL}, nil
}

// Issue signs a session token for the user.
func (s *Sessions) Issue(user User, now time.Time) (string, error) {
	if user.Subject == "" {
		return "", errors.New("auth: empty subject")
	}
	claims := sessionClaims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a session token and returns the user.
func (s *Sessions) Parse(tokenString string) (User, error) {
	if tokenString == "" {
		return User{}, errors.New("auth: empty token")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &sessionClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return User{}, err
	}
	if !token.Valid {
		return User{}, errors.New("auth: invalid token")
	}
	if claims.Subject == "" {
		return User{}, errors.New("auth: missing subject")
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return User{}, errors.New("auth: token expired")
	}
	return User{Subject: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
}

// Cookie wraps a signed token into the session cookie.
func (s *Sessions) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl / time.Second),
	}
}

// ClearCookie expires the session cookie.
func ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}
