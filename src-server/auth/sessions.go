package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/jwt"
	"parish/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const SESSION_COOKIE_NAME = "parish-session"

type Sessions struct {
	db     bun.IDB
	auth   *Authenticator
	secret string
	ttl    time.Duration
	now    func() time.Time

	// sets the Secure flag on cookies, on when the public URL is https
	SecureCookie bool
}

func NewSessions(db bun.IDB, authenticator *Authenticator, secret string, ttl time.Duration) *Sessions {
	return &Sessions{db: db, auth: authenticator, secret: secret, ttl: ttl, now: time.Now}
}

func (s *Sessions) SetClock(now func() time.Time) {
	s.now = now
}

// Session is a resolved, still valid login.
type Session struct {
	Secret    string
	Identity  *Identity
	ExpiresAt time.Time
}

// Create stores a session row for identity and returns the cookie naming it.
func (s *Sessions) Create(ctx context.Context, identity *Identity, r *http.Request) (*http.Cookie, error) {
	if identity == nil {
		return nil, fmt.Errorf("(*Sessions).Create: identity is nil")
	}
	now := s.now().UTC()
	token := &model.SessionToken{
		Secret:    uuid.NewString(),
		UserID:    identity.UserID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	if r != nil {
		token.IpAddress = clientIP(r)
		token.UserAgent = r.UserAgent()
	}
	if err := token.Insert(ctx, s.db); err != nil {
		return nil, fmt.Errorf("(*Sessions).Create: %w", err)
	}

	value, err := jwt.Encode(jwt.NewPayload(token.Secret, identity.UserID, now, time.Unix(token.ExpiresAt, 0)), s.secret)
	if err != nil {
		return nil, fmt.Errorf("(*Sessions).Create: %w", err)
	}
	cookie := s.cookie(value)
	cookie.Expires = time.Unix(token.ExpiresAt, 0)
	return cookie, nil
}

// Resolve turns the request cookie back into a session. Anything that is not
// a valid login (no cookie, bad signature, expired, account gone or
// deactivated) gives nil, nil; stale rows are deleted on the way.
func (s *Sessions) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	payload := s.payload(r)
	if payload == nil {
		return nil, nil
	}

	token, err := model.GetSessionToken(ctx, s.db, payload.SessionSecret)
	var notFoundErr *apperr.NotFoundError
	switch {
	case errors.As(err, &notFoundErr):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("(*Sessions).Resolve: %w", err)
	case token.UserID != payload.UserID, token.IsExpired(s.now()):
		return nil, s.drop(ctx, token.Secret, "expired")
	}

	identity, err := s.auth.Restore(ctx, token.UserID)
	switch {
	case err != nil:
		return nil, fmt.Errorf("(*Sessions).Resolve: %w", err)
	case identity == nil:
		return nil, s.drop(ctx, token.Secret, "account inactive or deleted")
	}
	return &Session{
		Secret:    token.Secret,
		Identity:  identity,
		ExpiresAt: time.Unix(token.ExpiresAt, 0),
	}, nil
}

// Destroy deletes the session of the request, if any, and returns the cookie
// that clears it in the browser.
func (s *Sessions) Destroy(ctx context.Context, r *http.Request) (*http.Cookie, error) {
	if payload := s.payload(r); payload != nil {
		if err := model.DeleteSessionToken(ctx, s.db, payload.SessionSecret); err != nil {
			return nil, fmt.Errorf("(*Sessions).Destroy: %w", err)
		}
	}
	return s.ClearCookie(), nil
}

func (s *Sessions) ClearCookie() *http.Cookie {
	cookie := s.cookie("")
	cookie.MaxAge = -1
	return cookie
}

func (s *Sessions) payload(r *http.Request) *jwt.Payload {
	if r == nil {
		return nil
	}
	cookie, err := r.Cookie(SESSION_COOKIE_NAME)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return nil
	}
	payload, err := jwt.Decode(strings.TrimSpace(cookie.Value), s.secret)
	if err != nil {
		slog.Debug("session cookie rejected", "error", err)
		return nil
	}
	return payload
}

func (s *Sessions) drop(ctx context.Context, secret, reason string) error {
	if err := model.DeleteSessionToken(ctx, s.db, secret); err != nil {
		return fmt.Errorf("(*Sessions).drop: %w", err)
	}
	slog.Debug("session dropped", "reason", reason)
	return nil
}

func (s *Sessions) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     SESSION_COOKIE_NAME,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
