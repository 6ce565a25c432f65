package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Session is an authenticated user session.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrNotAuthenticated = errors.New("not authenticated")
)

type AuthStore interface {
	// NewSession authenticates the email/password pair and issues a signed
	// session token.
	NewSession(ctx context.Context, email, password string) (*Session, error)

	// Session verifies the token and reconstructs the session it encodes.
	// Invalid or expired tokens yield ErrNotAuthenticated.
	Session(ctx context.Context, token string) (*Session, error)
}

// SessionProvider exposes the current session to components that need to
// know who is signed in. It is injected explicitly; nothing reads ambient
// global auth state.
type SessionProvider interface {
	// Current returns the active session, or nil when signed out.
	Current() *Session

	// OnChange registers a callback invoked whenever the session changes.
	// The returned function unsubscribes it.
	OnChange(fn func(*Session)) (unsubscribe func())
}

// SessionState is a mutable SessionProvider: the owner calls Set on sign-in
// and sign-out and subscribers are notified of each change.
type SessionState struct {
	mu      sync.RWMutex
	current *Session
	subs    map[int]func(*Session)
	next    int
}

func NewSessionState() *SessionState {
	return &SessionState{subs: make(map[int]func(*Session))}
}

func (s *SessionState) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *SessionState) Set(session *Session) {
	s.mu.Lock()
	s.current = session
	subs := make([]func(*Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(session)
	}
}

func (s *SessionState) OnChange(fn func(*Session)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// JWTAuthStore issues and verifies stateless JWT sessions backed by the
// profile store.
type JWTAuthStore struct {
	tokenExp time.Duration
	secret   []byte
	profiles ProfileStore
}

type AuthOption func(*JWTAuthStore)

func WithTokenExp(exp time.Duration) AuthOption {
	return func(a *JWTAuthStore) {
		a.tokenExp = exp
	}
}

func NewJWTAuthStore(profiles ProfileStore, secret []byte, opts ...AuthOption) *JWTAuthStore {
	auth := &JWTAuthStore{
		tokenExp: 24 * time.Hour,
		secret:   secret,
		profiles: profiles,
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

func (a *JWTAuthStore) NewSession(ctx context.Context, email, password string) (*Session, error) {
	profile, err := a.profiles.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	token, exp, err := NewToken(*profile, a.tokenExp, a.secret)
	if err != nil {
		return nil, err
	}

	return &Session{
		UserID:    profile.UserID,
		Email:     profile.Email,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

func (a *JWTAuthStore) Session(ctx context.Context, token string) (*Session, error) {
	claims, err := VerifyToken(token, a.secret)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	return &Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
