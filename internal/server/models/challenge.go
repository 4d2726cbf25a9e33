package models

import "time"

// Challenge is one verification code sent to a contact. CodeHash is a keyed
// hash of the code; the code itself is never stored.
type Challenge struct {
	ID           string
	UserID       string
	Contact      string
	CodeHash     string
	Purpose      string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	SupersededAt *time.Time
}

// Consumed reports whether the challenge was already used.
func (c *Challenge) Consumed() bool { return c.ConsumedAt != nil }

// Superseded reports whether a newer challenge replaced this one.
func (c *Challenge) Superseded() bool { return c.SupersededAt != nil }

// ExpiredAt reports whether the challenge is past its expiry at now.
func (c *Challenge) ExpiredAt(now time.Time) bool { return now.After(c.ExpiresAt) }
