// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/Satyam1603/GoTogether/internal/server/models"
)

// Repository defines operations for issuing, rotating and revoking refresh
// tokens. Tokens are addressed by the SHA-256 of their opaque value.
type Repository interface {
	// Create stores a new refresh token for userID.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// Find returns the token row, revoked or not. Missing tokens yield
	// common.ErrorNotFound.
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Consume revokes a live token and returns it in one statement, so two
	// concurrent callers presenting the same token cannot both succeed.
	// Unknown, revoked and expired tokens yield common.ErrorNotFound.
	Consume(ctx context.Context, tokenHash string, at time.Time) (*models.RefreshToken, error)

	// Revoke marks the user's token revoked. Revoking an unknown or already
	// revoked token is not an error.
	Revoke(ctx context.Context, userID, tokenHash string, at time.Time) error

	// RevokeByHash revokes a live token without knowing its owner and
	// returns the owner's id. Unknown or already revoked tokens return
	// common.ErrorNotFound.
	RevokeByHash(ctx context.Context, tokenHash string, at time.Time) (string, error)

	// RevokeAllForUser revokes every live token of userID.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// DeleteExpired removes tokens that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
