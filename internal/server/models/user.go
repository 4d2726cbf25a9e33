// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account holder. Email and Phone are optional individually but
// at least one is always set.
type User struct {
	ID                 string
	Email              *string
	Phone              *string
	FirstName          string
	LastName           string
	PasswordHash       string
	EmailVerified      bool
	PhoneVerified      bool
	Role               string
	VerificationMethod string
	ProfileImageKey    *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Active reports whether the verification method chosen at signup has
// succeeded, which is what gates login.
func (u *User) Active() bool {
	switch u.VerificationMethod {
	case "email":
		return u.EmailVerified
	case "phone":
		return u.PhoneVerified
	default:
		return u.EmailVerified || u.PhoneVerified
	}
}
