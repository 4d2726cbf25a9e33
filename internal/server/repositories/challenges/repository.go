// Package challenges stores verification challenges (SMS codes and email
// tokens) in PostgreSQL.
package challenges

import (
	"context"
	"time"

	"github.com/Satyam1603/GoTogether/internal/server/models"
)

// Repository defines persistence for verification challenges.
type Repository interface {
	// Create inserts a new challenge and fills in its ID and CreatedAt.
	Create(ctx context.Context, c *models.Challenge) (*models.Challenge, error)

	// SupersedeActive marks every unconsumed, not yet superseded challenge of
	// (userID, purpose) as superseded at the given time.
	SupersedeActive(ctx context.Context, userID, purpose string, at time.Time) (int64, error)

	// Latest returns the most recently created challenge of (userID, purpose)
	// in any state, or common.ErrorNotFound.
	Latest(ctx context.Context, userID, purpose string) (*models.Challenge, error)

	// FindForUserByHash returns the newest challenge of (userID, purpose) whose
	// code hash equals codeHash.
	FindForUserByHash(ctx context.Context, userID, purpose, codeHash string) (*models.Challenge, error)

	// FindByHash resolves a challenge from its code hash alone. Used for
	// email links, which carry no user id.
	FindByHash(ctx context.Context, purpose, codeHash string) (*models.Challenge, error)

	// Consume atomically marks a live challenge consumed. It returns
	// common.ErrAlreadyConsumed when another caller consumed it first and
	// common.ErrSuperseded when a newer challenge replaced it.
	Consume(ctx context.Context, id string, at time.Time) error

	// CountSince counts challenges of any purpose created for userID at or
	// after since.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)

	// DeleteExpired removes challenges that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
