// Package session owns the authenticated identity of the client.
//
// A Manager moves between Unauthenticated, Authenticating and Authenticated.
// The identity and its Basic credential are persisted through a storage.Store
// under the keys "user" and "credentials" so the session survives restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/client/api"
	"github.com/atinyakov/FeedbackTracker/internal/client/storage"
	"github.com/atinyakov/FeedbackTracker/internal/models"
)

const (
	keyUser        = "user"
	keyCredentials = "credentials"
)

// ErrUnauthenticated is returned by operations that need a live session.
var ErrUnauthenticated = errors.New("not authenticated")

// State of the session lifecycle.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is one authenticated identity. A Session value is never mutated;
// a new login produces a new *Session, so pointer identity tells sessions
// apart.
type Session struct {
	User       models.User
	Credential api.Credential
}

// Provider hands out the live session to downstream components.
type Provider interface {
	// Current returns the live session, if any.
	Current() (*Session, bool)
	// Invalidate ends s if it is still the live session.
	Invalidate(s *Session)
}

// Authenticator performs the login round trip.
type Authenticator interface {
	Login(ctx context.Context, cred api.Credential) (models.User, error)
}

// Manager is the session state machine. It is safe for concurrent use.
type Manager struct {
	auth  Authenticator
	store storage.Store
	log   *zap.Logger

	// saveMu orders writes to the store with publishing them in memory, so
	// storage and the live session always name the same identity.
	saveMu sync.Mutex

	mu      sync.Mutex
	state   State
	current *Session
	// pending counts logins in flight; the state is Authenticating while
	// it is positive and no session is live.
	pending int
}

// NewManager returns a Manager in the Unauthenticated state.
func NewManager(auth Authenticator, store storage.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{auth: auth, store: store, log: log}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current implements Provider.
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Restore rebuilds the session from storage without touching the network.
// Both keys must be present and the identity must parse, otherwise the
// session is absent and storage is left as it was.
func (m *Manager) Restore(ctx context.Context) (*Session, bool) {
	values, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("failed to load session", zap.Error(err))
		return nil, false
	}
	rawUser, okUser := values[keyUser]
	cred, okCred := values[keyCredentials]
	if !okUser || !okCred || cred == "" {
		return nil, false
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		m.log.Warn("stored identity is unreadable", zap.Error(err))
		return nil, false
	}
	if err := user.Validate(); err != nil {
		m.log.Warn("stored identity is invalid", zap.Error(err))
		return nil, false
	}

	s := &Session{User: user, Credential: api.Credential(cred)}
	m.mu.Lock()
	m.current = s
	m.state = Authenticated
	m.mu.Unlock()

	m.log.Debug("session restored", zap.String("username", user.Username))
	return s, true
}

// Login authenticates with exactly one request. On success the identity and
// credential are persisted and become the live session; the most recent
// successful login wins. On failure nothing is persisted and any previously
// live session stays live.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	cred := api.NewCredential(username, password)

	m.mu.Lock()
	m.pending++
	if m.current == nil {
		m.state = Authenticating
	}
	m.mu.Unlock()

	user, err := m.auth.Login(ctx, cred)
	if err != nil {
		m.finishLogin(nil)
		m.log.Info("login failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	raw, err := json.Marshal(user)
	if err != nil {
		m.finishLogin(nil)
		return nil, fmt.Errorf("encode identity: %w", err)
	}
	s := &Session{User: user, Credential: cred}
	m.saveMu.Lock()
	err = m.store.Save(ctx, map[string]string{
		keyUser:        string(raw),
		keyCredentials: string(cred),
	})
	if err != nil {
		m.finishLogin(nil)
		m.saveMu.Unlock()
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.finishLogin(s)
	m.saveMu.Unlock()
	m.log.Info("logged in", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return s, nil
}

func (m *Manager) finishLogin(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
	if s != nil {
		m.current = s
	}
	switch {
	case m.current != nil:
		m.state = Authenticated
	case m.pending > 0:
		m.state = Authenticating
	default:
		m.state = Unauthenticated
	}
}

// Logout ends the session in memory and in storage. It is idempotent and
// never fails; a storage error is only logged.
func (m *Manager) Logout(ctx context.Context) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	m.current = nil
	if m.pending > 0 {
		m.state = Authenticating
	} else {
		m.state = Unauthenticated
	}
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("failed to clear stored session", zap.Error(err))
	}
}

// Invalidate implements Provider. A rejection observed for an old session
// never ends a newer one.
func (m *Manager) Invalidate(s *Session) {
	m.mu.Lock()
	live := s != nil && m.current == s
	m.mu.Unlock()
	if !live {
		return
	}
	m.log.Warn("credential rejected by server, logging out", zap.String("username", s.User.Username))
	m.Logout(context.Background())
}

// Fixed returns a Provider pinned to s. Invalidate clears it.
func Fixed(s *Session) *FixedProvider {
	return &FixedProvider{s: s}
}

// FixedProvider is a Provider holding a single session.
type FixedProvider struct {
	mu sync.Mutex
	s  *Session
}

// Current implements Provider.
func (p *FixedProvider) Current() (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s, p.s != nil
}

// Invalidate implements Provider.
func (p *FixedProvider) Invalidate(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == s {
		p.s = nil
	}
}

// Set replaces the held session.
func (p *FixedProvider) Set(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = s
}
