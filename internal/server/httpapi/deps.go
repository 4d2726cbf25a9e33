// Package httpapi is the JSON-over-HTTP surface of the auth server.
//
// Every response uses one envelope: {"data": ...} on success and
// {"message": "...", "code": "..."} on failure.
package httpapi

import (
	"context"

	"github.com/Satyam1603/GoTogether/internal/logging"
	"github.com/Satyam1603/GoTogether/internal/server/auth"
	"github.com/Satyam1603/GoTogether/internal/server/metrics"
	"github.com/Satyam1603/GoTogether/internal/server/models"
	"github.com/Satyam1603/GoTogether/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, *services.TokenPair, error)
	Login(ctx context.Context, login, password string) (*models.User, *services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	VerificationStatus(ctx context.Context, id string) (*services.VerificationStatus, error)
	UpdateProfile(ctx context.Context, id string, upd services.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, id, current, next string) error
}

type TokenService interface {
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Revoke(ctx context.Context, userID, refreshToken string) error
	RevokeAll(ctx context.Context, userID string) error
	ParseAccessToken(token string) (*auth.Claims, error)
}

type VerificationService interface {
	Resend(ctx context.Context, userID, contact, purpose string) (*models.Challenge, error)
	VerifyChallenge(ctx context.Context, userID, contact, purpose, code string) (*models.User, error)
	ConfirmEmailToken(ctx context.Context, token string) (*models.User, error)
}

type ImageService interface {
	PresignUpload(ctx context.Context, userID, contentType string) (key, url string, err error)
	PresignDownload(ctx context.Context, userID string) (string, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Users        UserService
	Tokens       TokenService
	Verification VerificationService
	Images       ImageService
	DB           Pinger
	Metrics      *metrics.Metrics
	Logger       logging.Logger

	BasePath    string
	CORSOrigins []string
}
