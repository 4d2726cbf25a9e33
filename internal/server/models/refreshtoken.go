package models

import "time"

// RefreshToken is the server-side record of an issued refresh token. Only the
// SHA-256 of the token is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
