// Package session owns the client's login state. Every authenticated call
// goes through Manager.Do, which attaches the access token and, on a 401,
// waits for at most one shared refresh before retrying the call once.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Satyam1603/GoTogether/internal/client/client"
	"github.com/Satyam1603/GoTogether/internal/logging"
)

type State int

const (
	Anonymous State = iota
	Authenticated
	Refreshing
	// Pending holds tokens for an account whose chosen contact is not
	// verified yet. The server only accepts them for verification and for
	// reading the account.
	Pending
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Pending:
		return "pending"
	default:
		return "anonymous"
	}
}

// settled is the resting state of a session for user u.
func settled(u *client.User) State {
	if u == nil || !u.Active {
		return Pending
	}
	return Authenticated
}

const defaultRefreshTimeout = 15 * time.Second

type Manager struct {
	client client.Client
	store  Store
	log    logging.Logger

	mu        sync.Mutex
	sess      *Session
	state     State
	gen       uint64
	observers []func(State)

	flights        singleflight.Group
	refreshTimeout time.Duration
}

func NewManager(c client.Client, store Store, l logging.Logger) *Manager {
	return &Manager{
		client:         c,
		store:          store,
		log:            l.With("module", "session"),
		refreshTimeout: defaultRefreshTimeout,
	}
}

// OnChange registers fn to be called after every state transition.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns a copy of the user snapshot, or nil when logged out.
func (m *Manager) User() *client.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.sess.User == nil {
		return nil
	}
	u := *m.sess.User
	return &u
}

// Restore loads a persisted session, if any.
func (m *Manager) Restore(ctx context.Context) error {
	s, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if s == nil {
		return nil
	}

	m.mu.Lock()
	m.gen++
	m.sess = s
	notify := m.transitionLocked(settled(s.User))
	m.mu.Unlock()
	notify()
	return nil
}

func (m *Manager) Login(ctx context.Context, login, password string) (*client.User, error) {
	res, err := m.client.Login(ctx, login, password)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, res)
}

// Register creates the account and keeps the session it returns. The
// session stays Pending until UpdateUser sees the account become active.
func (m *Manager) Register(ctx context.Context, req client.RegisterRequest) (*client.User, error) {
	res, err := m.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, res)
}

func (m *Manager) establish(ctx context.Context, res *client.AuthResult) (*client.User, error) {
	if res.User == nil || res.AccessToken == "" || res.RefreshToken == "" {
		return nil, fmt.Errorf("%w: auth response without tokens", client.ErrUnexpectedResponse)
	}
	s := &Session{
		ID:           uuid.NewString(),
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}

	m.mu.Lock()
	m.gen++
	m.sess = s
	m.persistLocked(ctx)
	notify := m.transitionLocked(settled(s.User))
	m.mu.Unlock()
	notify()

	u := *s.User
	return &u, nil
}

// UpdateUser replaces the stored user snapshot, for example after a
// verification flips a flag. When the account has just become active the
// pending tokens are rotated right away so the session gains full access.
func (m *Manager) UpdateUser(ctx context.Context, u *client.User) error {
	if u == nil {
		return nil
	}
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return nil
	}
	activated := (m.sess.User == nil || !m.sess.User.Active) && u.Active
	cp := *u
	m.sess.User = &cp
	m.persistLocked(ctx)
	stale := m.sess.AccessToken

	notify := func() {}
	if !activated && m.state != Refreshing {
		notify = m.transitionLocked(settled(&cp))
	}
	m.mu.Unlock()
	notify()

	if !activated {
		return nil
	}
	_, err := m.refresh(ctx, stale)
	return err
}

// Logout clears local state first and then revokes the refresh token on a
// best effort basis. The revoke needs no access token, so it also works
// when that token has expired. It never fails because of the network.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	m.sess = nil
	err := m.store.Clear(ctx)
	notify := m.transitionLocked(Anonymous)
	m.mu.Unlock()
	notify()

	if err != nil {
		m.log.Error(ctx, "clear stored session", "error", err)
	}
	if err := m.client.Logout(ctx, s.RefreshToken); err != nil {
		m.log.Warn(ctx, "revoke on logout failed", "error", err)
	}
	return err
}

// Do performs req with the current access token. A 401 triggers one shared
// refresh and a single retry; a second 401 is returned as is.
func (m *Manager) Do(ctx context.Context, req client.Request, out any) error {
	token, err := m.accessToken()
	if err != nil {
		return err
	}

	err = m.client.Send(ctx, token, req, out)
	if !errors.Is(err, client.ErrUnauthenticated) {
		return err
	}

	fresh, err := m.refresh(ctx, token)
	if err != nil {
		return err
	}
	return m.client.Send(ctx, fresh, req, out)
}

func (m *Manager) accessToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return "", client.ErrUnauthenticated
	}
	return m.sess.AccessToken, nil
}

// refresh returns an access token newer than stale. Concurrent callers for
// the same session share one refresh call.
func (m *Manager) refresh(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return "", client.ErrSessionExpired
	}
	if s.AccessToken != stale {
		tok := s.AccessToken
		m.mu.Unlock()
		return tok, nil
	}
	key := s.ID
	notify := m.transitionLocked(Refreshing)
	m.mu.Unlock()
	notify()

	ch := m.flights.DoChan(key, func() (any, error) {
		return m.runRefresh(context.WithoutCancel(ctx), key, stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) runRefresh(ctx context.Context, key, stale string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	m.mu.Lock()
	s := m.sess
	if s == nil || s.ID != key {
		m.mu.Unlock()
		return "", client.ErrSessionExpired
	}
	if s.AccessToken != stale {
		tok := s.AccessToken
		m.mu.Unlock()
		return tok, nil
	}
	gen, refreshToken := m.gen, s.RefreshToken
	m.mu.Unlock()

	tokens, err := m.client.Refresh(ctx, refreshToken)
	if err != nil && client.Transient(err) {
		m.log.Warn(ctx, "token refresh failed, retrying once", "error", err)
		tokens, err = m.client.Refresh(ctx, refreshToken)
	}

	m.mu.Lock()
	if m.gen != gen || m.sess == nil {
		// Logged out or replaced while the call was in flight.
		m.mu.Unlock()
		return "", client.ErrSessionExpired
	}

	if err != nil {
		m.gen++
		m.sess = nil
		clearErr := m.store.Clear(ctx)
		notify := m.transitionLocked(Anonymous)
		m.mu.Unlock()
		notify()

		m.log.Warn(ctx, "token refresh rejected, session cleared", "error", err)
		if clearErr != nil {
			m.log.Error(ctx, "clear stored session", "error", clearErr)
		}
		return "", fmt.Errorf("%w: %v", client.ErrSessionExpired, err)
	}

	m.sess.AccessToken = tokens.AccessToken
	m.sess.RefreshToken = tokens.RefreshToken
	m.persistLocked(ctx)
	notify := m.transitionLocked(settled(m.sess.User))
	m.mu.Unlock()
	notify()

	return tokens.AccessToken, nil
}

// persistLocked saves the current session. A failed write is logged: the
// in-memory session stays usable for this run.
func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.store.Save(ctx, m.sess); err != nil {
		m.log.Error(ctx, "persist session", "error", err)
	}
}

// transitionLocked sets the state and returns a func that notifies the
// observers. Call it after releasing mu.
func (m *Manager) transitionLocked(s State) func() {
	if m.state == s {
		return func() {}
	}
	m.state = s
	obs := append([]func(State){}, m.observers...)
	return func() {
		for _, fn := range obs {
			fn(s)
		}
	}
}
