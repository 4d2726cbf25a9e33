package session

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Satyam1603/GoTogether/internal/client/client"
	"github.com/Satyam1603/GoTogether/internal/logging"
)

// fakeServer accepts exactly one access token at a time and rotates the
// refresh token on every successful refresh.
type fakeServer struct {
	mu      sync.Mutex
	access  string
	refresh string
	serial  int
	// revoked holds refresh tokens presented to Logout.
	revoked []string

	refreshCalls atomic.Int32
	sendCalls    atomic.Int32
	unauthorized atomic.Int32
	logoutCalls  atomic.Int32

	// refreshGate, when set, blocks Refresh until it is closed.
	refreshGate chan struct{}
	// refreshErrs are returned by successive Refresh calls before the
	// normal behaviour resumes.
	refreshErrs []error
	// alwaysUnauthorized makes every Send answer 401.
	alwaysUnauthorized bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{access: "a0", refresh: "r0"}
}

func (f *fakeServer) authResult(active bool) *client.AuthResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &client.AuthResult{
		User:   &client.User{ID: "u-1", FirstName: "Ada", Active: active},
		Tokens: client.Tokens{AccessToken: f.access, RefreshToken: f.refresh, ExpiresIn: 60},
	}
}

// Register answers like the server does for a new account: not active yet.
func (f *fakeServer) Register(context.Context, client.RegisterRequest) (*client.AuthResult, error) {
	return f.authResult(false), nil
}

func (f *fakeServer) Login(_ context.Context, login, _ string) (*client.AuthResult, error) {
	if login == "down" {
		return nil, client.ErrUnavailable
	}
	return f.authResult(true), nil
}

func (f *fakeServer) Refresh(ctx context.Context, refreshToken string) (*client.Tokens, error) {
	f.refreshCalls.Add(1)
	if f.refreshGate != nil {
		select {
		case <-f.refreshGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.refreshErrs) > 0 {
		err := f.refreshErrs[0]
		f.refreshErrs = f.refreshErrs[1:]
		return nil, err
	}
	if refreshToken != f.refresh {
		return nil, &client.APIError{Status: http.StatusUnauthorized, Code: "invalid_token", Message: "token is invalid or revoked"}
	}
	f.serial++
	f.access = "a" + string(rune('0'+f.serial))
	f.refresh = "r" + string(rune('0'+f.serial))
	return &client.Tokens{AccessToken: f.access, RefreshToken: f.refresh, ExpiresIn: 60}, nil
}

func (f *fakeServer) Logout(_ context.Context, refreshToken string) error {
	f.logoutCalls.Add(1)
	f.mu.Lock()
	f.revoked = append(f.revoked, refreshToken)
	f.mu.Unlock()
	return client.ErrUnavailable
}

func (f *fakeServer) Send(_ context.Context, accessToken string, _ client.Request, out any) error {
	f.sendCalls.Add(1)
	f.mu.Lock()
	ok := accessToken == f.access && !f.alwaysUnauthorized
	f.mu.Unlock()
	if !ok {
		f.unauthorized.Add(1)
		return &client.APIError{Status: http.StatusUnauthorized, Code: "token_expired", Message: "access token expired"}
	}
	if p, isStr := out.(*string); isStr {
		*p = accessToken
	}
	return nil
}

// expireAccess makes the current access token unusable.
func (f *fakeServer) expireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = "expired-" + f.access
}

// memStore is a Store that records every write.
type memStore struct {
	mu     sync.Mutex
	sess   *Session
	saves  int
	clears int
}

func (s *memStore) Load(context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil
	}
	cp := *s.sess
	return &cp, nil
}

func (s *memStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sess = &cp
	s.saves++
	return nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	s.clears++
	return nil
}

func (s *memStore) stored() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newLoggedIn(t *testing.T) (*Manager, *fakeServer, *memStore, *stateLog) {
	t.Helper()
	srv := newFakeServer()
	store := &memStore{}
	m := NewManager(srv, store, logging.Nop{})
	log := &stateLog{}
	m.OnChange(log.record)

	_, err := m.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	return m, srv, store, log
}
