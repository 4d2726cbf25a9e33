package client

import (
	"context"
	"time"
)

// User is the account snapshot returned by the server.
type User struct {
	ID                 string    `json:"id"`
	Email              *string   `json:"email,omitempty"`
	Phone              *string   `json:"phone,omitempty"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	Role               string    `json:"role"`
	EmailVerified      bool      `json:"emailVerified"`
	PhoneVerified      bool      `json:"phoneVerified"`
	VerificationMethod string    `json:"verificationMethod"`
	Active             bool      `json:"active"`
	HasProfileImage    bool      `json:"hasProfileImage"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Tokens is an access/refresh pair. ExpiresIn is in seconds.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AuthResult is the body of a successful register or login.
type AuthResult struct {
	User *User `json:"user"`
	Tokens
}

type RegisterRequest struct {
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Password           string `json:"password"`
	FirstName          string `json:"firstName,omitempty"`
	LastName           string `json:"lastName,omitempty"`
	Role               string `json:"role,omitempty"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
}

// Request is one authenticated API call. Path is relative to the base path.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
}

// Client is the transport the session manager drives.
type Client interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, login, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	// Logout revokes refreshToken. It is authorized by the refresh token
	// alone.
	Logout(ctx context.Context, refreshToken string) error
	// Send performs req with accessToken and decodes the data member of the
	// response into out, which may be nil.
	Send(ctx context.Context, accessToken string, req Request, out any) error
}
