// Package notify hands verification codes to whatever delivers them.
// Delivery itself (SMS gateway, mail relay) lives outside this service.
package notify

import (
	"context"
	"time"
)

// Notifier delivers verification material to a contact.
type Notifier interface {
	SendOTP(ctx context.Context, phone, code string, expiresAt time.Time) error
	SendEmailVerification(ctx context.Context, email, link string, expiresAt time.Time) error
}

// Message is the payload published for every delivery job.
type Message struct {
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	Code      string    `json:"code,omitempty"`
	Link      string    `json:"link,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

const (
	KindSMS   = "sms"
	KindEmail = "email"
)
