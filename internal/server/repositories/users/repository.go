// Package users declares the repository contract for user accounts and its
// PostgreSQL implementation.
package users

import (
	"context"

	"github.com/Satyam1603/GoTogether/internal/server/models"
)

// Repository stores user accounts. Lookups return common.ErrorNotFound when
// the user does not exist; Create returns common.ErrorAlreadyExists when the
// email or phone is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)

	// MarkVerified flips the verified flag matching purpose and records the
	// contact that was proven.
	MarkVerified(ctx context.Context, id, purpose, contact string) (*models.User, error)

	// UpdateProfile writes names, contacts and verified flags of user and
	// returns the stored row.
	UpdateProfile(ctx context.Context, user *models.User) (*models.User, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetProfileImageKey(ctx context.Context, id, key string) error

	// LockForUpdate takes a row lock on the user that is held until the
	// surrounding transaction ends. Outside a transaction it is a plain
	// existence check.
	LockForUpdate(ctx context.Context, id string) error
}
