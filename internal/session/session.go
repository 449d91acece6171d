// Package session owns the operator's bearer token. It is the single source
// of truth for "is authenticated" and the single place logout happens.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("session: no token")

// Session is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	token    string
	claims   jwt.MapClaims
	onLogout []func()
}

func New(token string) *Session {
	s := &Session{}
	s.SetToken(token)
	return s
}

// SetToken stores a token issued by the backend. Tokens that are JWTs have
// their claims read (not verified; the backend verifies signatures) so expiry
// and user id are available locally. Opaque tokens are accepted as-is.
func (s *Session) SetToken(token string) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))

	var claims jwt.MapClaims
	if token != "" {
		c := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, c); err == nil {
			claims = c
		}
	}

	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
}

// Token returns the bearer token or ErrNoToken.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// IsAuthenticated reports whether a token is held and, when it carries an
// exp claim, has not expired at now.
func (s *Session) IsAuthenticated(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return false
	}
	if s.claims == nil {
		return true
	}
	exp, err := s.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}

// UserID returns the user id claim (user_id, id, or sub), or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range []string{"user_id", "id", "sub"} {
		switch v := s.claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// OnLogout registers a hook run by Logout.
func (s *Session) OnLogout(hook func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, hook)
	s.mu.Unlock()
}

// Logout clears the token and runs the registered hooks once per call.
// It is a no-op when no token is held.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.claims = nil
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	for _, h := range hooks {
		h()
	}
}
