package auth

import "context"

type contextKey string

const contextKeyUser contextKey = "auth.user"

// User is the authenticated identity delivered by the identity provider.
type User struct {
	Subject string
	Name    string
	Email   string
}

// WithUser stores the authenticated user in context.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}
	user, ok := ctx.Value(contextKeyUser).(User)
	return user, ok
}
