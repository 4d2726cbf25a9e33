package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/gotogether/", 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_DecodesEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gotogether/users/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"login": "a@b.co", "password": "pw"}, body)

		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"user":         map[string]any{"id": "u-1", "firstName": "Ada"},
			"accessToken":  "a1",
			"refreshToken": "r1",
			"expiresIn":    3600,
		}})
	})

	res, err := c.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u-1", res.User.ID)
	assert.Equal(t, Tokens{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 3600}, res.Tokens)
}

func TestSend_AttachesBearerAndQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "123456", r.URL.Query().Get("otp"))
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": map[string]any{"id": "u-1"}}})
	})

	var out struct {
		User User `json:"user"`
	}
	err := c.Send(context.Background(), "tok", Request{Method: http.MethodPost, Path: "/users/u-1/verify-otp", Query: map[string]string{"otp": "123456"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "u-1", out.User.ID)
}

func TestSend_ErrorEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "access token expired", "code": "token_expired"})
	})

	err := c.Send(context.Background(), "tok", Request{Method: http.MethodGet, Path: "/users/u-1"}, nil)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "token_expired", ae.Code)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "401: access token expired", err.Error())
}

func TestSend_UnrecognizedShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"success without data", http.StatusOK, `{"rides": []}`},
		{"success not json", http.StatusOK, `<html>`},
		{"error without message", http.StatusInternalServerError, `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			var out map[string]any
			err := c.Send(context.Background(), "", Request{Method: http.MethodGet, Path: "/x"}, &out)
			assert.ErrorIs(t, err, ErrUnexpectedResponse)
		})
	}
}

func TestSend_NoContent(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, c.Logout(context.Background(), "r"))
}

func TestLogout_SendsRefreshTokenWithoutBearer(t *testing.T) {
	var gotAuth, gotPath string
	var body map[string]string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth, gotPath = r.Header.Get("Authorization"), r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Logout(context.Background(), "r1"))
	assert.Equal(t, "/gotogether/users/logout", gotPath)
	assert.Empty(t, gotAuth)
	assert.Equal(t, map[string]string{"refreshToken": "r1"}, body)
}

func TestSend_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewHTTPClient(srv.URL, time.Second)

	_, err := c.Refresh(context.Background(), "r")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, Transient(err))
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(&APIError{Status: http.StatusServiceUnavailable}))
	assert.False(t, Transient(&APIError{Status: http.StatusUnauthorized}))
	assert.False(t, Transient(errors.New("other")))
}

func TestErrSessionExpired_IsUnauthenticated(t *testing.T) {
	assert.ErrorIs(t, ErrSessionExpired, ErrUnauthenticated)
}
