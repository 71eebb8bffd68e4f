package auth

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("auth: session not found")

// Session is an opaque-token login session.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its TTL at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionStore persists sessions keyed by token.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	ByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
