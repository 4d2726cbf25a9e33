package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/server/auth"
	"github.com/Satyam1603/GoTogether/internal/server/models"
	"github.com/Satyam1603/GoTogether/internal/server/services"
)

func strPtr(s string) *string { return &s }

var testUser = &models.User{
	ID:                 "u-1",
	Phone:              strPtr("+15551234567"),
	FirstName:          "Ada",
	LastName:           "Lovelace",
	Role:               common.RolePassenger,
	VerificationMethod: common.PurposePhone,
	CreatedAt:          time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
}

var testPair = &services.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}

type fakeUsers struct {
	registerErr error
	loginErr    error
	getErr      error
	changeErr   error
	updateErr   error

	gotLogin     string
	gotRegister  services.RegisterRequest
	gotUpdate    services.ProfileUpdate
	logoutCalls  []string
	changeCalled bool
}

func (f *fakeUsers) Register(_ context.Context, req services.RegisterRequest) (*models.User, *services.TokenPair, error) {
	f.gotRegister = req
	if f.registerErr != nil {
		return nil, nil, f.registerErr
	}
	return testUser, testPair, nil
}

func (f *fakeUsers) Login(_ context.Context, login, _ string) (*models.User, *services.TokenPair, error) {
	f.gotLogin = login
	if f.loginErr != nil {
		return nil, nil, f.loginErr
	}
	return testUser, testPair, nil
}

func (f *fakeUsers) Logout(_ context.Context, refreshToken string) error {
	f.logoutCalls = append(f.logoutCalls, refreshToken)
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id string, upd services.ProfileUpdate) (*models.User, error) {
	f.gotUpdate = upd
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u := *testUser
	u.ID = id
	if upd.Phone != nil {
		u.Phone = upd.Phone
		u.PhoneVerified = false
	}
	return &u, nil
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u := *testUser
	u.ID = id
	return &u, nil
}

func (f *fakeUsers) VerificationStatus(context.Context, string) (*services.VerificationStatus, error) {
	return &services.VerificationStatus{Method: common.PurposePhone, PhoneVerified: true, Active: true}, nil
}

func (f *fakeUsers) ChangePassword(context.Context, string, string, string) error {
	f.changeCalled = true
	return f.changeErr
}

type fakeTokens struct {
	claims     map[string]*auth.Claims
	refreshErr error
	revokeErr  error
	revoked    []string
	revokedAll []string
}

func (f *fakeTokens) Refresh(context.Context, string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return testPair, nil
}

func (f *fakeTokens) Revoke(_ context.Context, userID, tok string) error {
	f.revoked = append(f.revoked, userID+":"+tok)
	return f.revokeErr
}

func (f *fakeTokens) RevokeAll(_ context.Context, userID string) error {
	f.revokedAll = append(f.revokedAll, userID)
	return nil
}

func (f *fakeTokens) ParseAccessToken(tok string) (*auth.Claims, error) {
	if tok == "expired" {
		return nil, common.ErrTokenExpired
	}
	c, ok := f.claims[tok]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	return c, nil
}

type fakeVerification struct {
	resendErr  error
	verifyErr  error
	confirmErr error

	gotContact string
	gotPurpose string
	gotCode    string
}

func (f *fakeVerification) Resend(_ context.Context, _, contact, purpose string) (*models.Challenge, error) {
	f.gotContact, f.gotPurpose = contact, purpose
	if f.resendErr != nil {
		return nil, f.resendErr
	}
	return &models.Challenge{ExpiresAt: time.Date(2025, 1, 2, 3, 14, 5, 0, time.UTC)}, nil
}

func (f *fakeVerification) VerifyChallenge(_ context.Context, _, contact, purpose, code string) (*models.User, error) {
	f.gotContact, f.gotPurpose, f.gotCode = contact, purpose, code
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	u := *testUser
	u.PhoneVerified = true
	return &u, nil
}

func (f *fakeVerification) ConfirmEmailToken(_ context.Context, token string) (*models.User, error) {
	f.gotCode = token
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	u := *testUser
	u.EmailVerified = true
	return &u, nil
}

type fakeImages struct {
	downloadErr    error
	gotContentType string
}

func (f *fakeImages) PresignUpload(_ context.Context, userID, contentType string) (string, string, error) {
	f.gotContentType = contentType
	if contentType == "text/plain" {
		return "", "", common.ErrValidation
	}
	return "users/" + userID + "/k", "https://s3.example.com/put", nil
}

func (f *fakeImages) PresignDownload(context.Context, string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return "https://s3.example.com/get", nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type testEnv struct {
	users        *fakeUsers
	tokens       *fakeTokens
	verification *fakeVerification
	images       *fakeImages
	handler      http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users: &fakeUsers{},
		tokens: &fakeTokens{claims: map[string]*auth.Claims{
			"tok-u1":      {UserID: "u-1", Role: common.RolePassenger},
			"tok-pending": {UserID: "u-1", Role: common.RolePassenger, Pending: true},
			"tok-admin":   {UserID: "admin-1", Role: common.RoleAdmin},
		}},
		verification: &fakeVerification{},
		images:       &fakeImages{},
	}
	env.handler = NewRouter(Deps{
		Users:        env.users,
		Tokens:       env.tokens,
		Verification: env.verification,
		Images:       env.images,
		DB:           fakePinger{},
		BasePath:     "/gotogether",
		CORSOrigins:  []string{"http://localhost:3000"},
	})
	return env
}

// do sends method/path with an optional JSON body and bearer token.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &struct {
		Data any `json:"data"`
	}{Data: dst}))
}
