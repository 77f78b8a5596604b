package auth

import (
	"context"

	"github.com/danielzuhad/stocking-app-sub001/model"
)

type contextKey int

const (
	userKey contextKey = iota
	sessionKey
)

// WithUser returns a copy of ctx carrying the authenticated user and session.
func WithUser(ctx context.Context, u *model.User, s *model.Session) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, sessionKey, s)
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

// SessionFrom returns the current session, or nil.
func SessionFrom(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionKey).(*model.Session)
	return s
}
