package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Satyam1603/GoTogether/internal/client/config"
)

// fakeAPI mimics the auth server closely enough for the CLI: one user,
// rotating refresh tokens and the JSON envelope.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	access        string
	refresh       string
	serial        int
	phoneVerified bool
	// pendingAccess is set when the current access token was issued
	// before the phone was verified.
	pendingAccess bool
	refreshCalls  int
	loggedOut     []string
	phone         string
	uploaded      []byte
	uploadedType  string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t, phone: "+15551234567"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gotogether/users/register", f.auth(http.StatusCreated))
	mux.HandleFunc("POST /gotogether/users/login", f.login)
	mux.HandleFunc("POST /gotogether/users/refresh-token", f.refreshToken)
	mux.HandleFunc("POST /gotogether/users/logout", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.loggedOut = append(f.loggedOut, body["refreshToken"])
		if body["refreshToken"] == f.refresh {
			f.refresh = ""
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /gotogether/users/verify-email-confirm", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "good-token" {
			writeJSON(w, http.StatusGone, map[string]string{"message": "verification link expired", "code": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": f.user()}})
	})
	mux.HandleFunc("GET /gotogether/users/u-1", f.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": f.user()}})
	}))
	mux.HandleFunc("GET /gotogether/users/u-1/verification-status", f.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		pv := f.phoneVerified
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"verificationMethod": "phone", "phoneVerified": pv, "emailVerified": false, "active": pv,
		}})
	}))
	mux.HandleFunc("POST /gotogether/users/u-1/verify-phone", f.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"expiresAt": time.Now().Add(10 * time.Minute)}})
	}))
	mux.HandleFunc("POST /gotogether/users/u-1/verify-otp", f.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("otp") != "482913" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid or expired code", "code": "invalid_code"})
			return
		}
		f.mu.Lock()
		f.phoneVerified = true
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": f.user()}})
	}))
	mux.HandleFunc("PUT /gotogether/users/u-1", f.requireActive(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if p, ok := body["phone"]; ok {
			f.mu.Lock()
			f.phone, f.phoneVerified = p, false
			f.mu.Unlock()
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": f.user()}})
	}))
	mux.HandleFunc("PATCH /gotogether/users/u-1/password", f.requireActive(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refresh = ""
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("POST /gotogether/users/u-1/image-upload-url", f.requireActive(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"key": "users/u-1/k", "url": f.srv.URL + "/bucket/users/u-1/k?X-Amz-Signature=x"}})
	}))
	mux.HandleFunc("GET /gotogether/users/u-1/image-url", f.requireActive(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"url": f.srv.URL + "/bucket/users/u-1/k?X-Amz-Signature=y"}})
	}))
	mux.HandleFunc("PUT /bucket/users/u-1/k", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploaded, f.uploadedType = b, r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) user() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]any{
		"id": "u-1", "phone": f.phone, "firstName": "Ada", "role": "PASSENGER",
		"verificationMethod": "phone", "phoneVerified": f.phoneVerified, "active": f.phoneVerified,
	}
}

func (f *fakeAPI) issue() map[string]any {
	f.mu.Lock()
	f.serial++
	f.access = "access-" + string(rune('0'+f.serial))
	f.refresh = "refresh-" + string(rune('0'+f.serial))
	f.pendingAccess = !f.phoneVerified
	access, refresh := f.access, f.refresh
	f.mu.Unlock()
	return map[string]any{"user": f.user(), "accessToken": access, "refreshToken": refresh, "expiresIn": 60}
}

func (f *fakeAPI) auth(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]any{"data": f.issue()})
	}
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body["password"] != "correct horse" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid login or password", "code": "invalid_credentials"})
		return
	}
	// Only verified accounts can log in.
	f.mu.Lock()
	f.phoneVerified = true
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": f.issue()})
}

func (f *fakeAPI) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.refreshCalls++
	ok := body["refreshToken"] == f.refresh && f.refresh != ""
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token is invalid or revoked", "code": "invalid_token"})
		return
	}
	pair := f.issue()
	delete(pair, "user")
	writeJSON(w, http.StatusOK, map[string]any{"data": pair})
}

func (f *fakeAPI) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+f.access && f.access != ""
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "access token expired", "code": "token_expired"})
			return
		}
		next(w, r)
	}
}

// requireActive also refuses access tokens issued while the account was
// pending.
func (f *fakeAPI) requireActive(next http.HandlerFunc) http.HandlerFunc {
	return f.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		pending := f.pendingAccess
		f.mu.Unlock()
		if pending {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "account is not verified yet", "code": "verification_pending"})
			return
		}
		next(w, r)
	})
}

func (f *fakeAPI) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// expireAccess invalidates the current access token only.
func (f *fakeAPI) expireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = "expired"
}

// revokeAll invalidates both tokens.
func (f *fakeAPI) revokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = "expired", "revoked"
}

func (f *fakeAPI) config(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServerURL:      f.srv.URL + "/gotogether",
		DatabasePath:   filepath.Join(t.TempDir(), "state", "gotogether.db"),
		RequestTimeout: 2 * time.Second,
		LogLevel:       "error",
	}
}

// newTestApp builds an App reading input from the given lines.
func newTestApp(t *testing.T, cfg *config.Config, input string) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	app, err := NewApp(context.Background(), cfg, strings.NewReader(input), &out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, &out
}

// pipedInput makes password prompts read plain lines.
func pipedInput(t *testing.T) {
	t.Helper()
	old := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = old })
	stdinIsTerminal = func() bool { return false }
}

func (a *App) setInput(s string) {
	a.reader = bufio.NewReader(strings.NewReader(s))
}
