// Package session models the authenticated staff session. A Session is
// built per request from the bearer token and passed explicitly to the
// components that call staff-scoped endpoints.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flowkey/flowkey-booking/internal/booking"
)

// User is the staff member the token was issued to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session carries a staff bearer token and the claims read from it.
type Session struct {
	Token      string
	User       User
	BusinessID string
	ExpiresAt  time.Time
}

// FromBearer builds a session from an Authorization header value or a bare
// token. Claims are decoded without signature verification: the FlowKey API
// verifies the token on every call, the session only needs to read it.
func FromBearer(header string) (*Session, error) {
	token := strings.TrimSpace(header)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, fmt.Errorf("session: missing bearer token: %w", booking.ErrUnauthorized)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("session: malformed token: %v: %w", err, booking.ErrUnauthorized)
	}

	s := &Session{
		Token: token,
		User: User{
			ID:    claimString(claims, "user_id"),
			Email: claimString(claims, "email"),
			Name:  claimString(claims, "name"),
			Role:  claimString(claims, "role"),
		},
		BusinessID: claimString(claims, "business_id"),
	}
	if s.User.ID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			s.User.ID = sub
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

// Expired reports whether the token's exp claim has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Authorization returns the header value for staff-scoped API calls.
func (s *Session) Authorization() string {
	if s == nil || s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}

// TenantKey scopes per-tenant state such as in-flight guards and feeds.
func (s *Session) TenantKey() string {
	switch {
	case s == nil:
		return "anonymous"
	case s.BusinessID != "":
		return "business:" + s.BusinessID
	case s.User.ID != "":
		return "user:" + s.User.ID
	}
	return "anonymous"
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

type ctxKey struct{}

// WithSession stores the session on a request context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
