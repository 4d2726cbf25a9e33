package notify

import (
	"context"
	"time"

	"github.com/Satyam1603/GoTogether/internal/logging"
)

// LogNotifier writes codes to the log. Development only.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{log: l.With("module", "notify")}
}

func (n *LogNotifier) SendOTP(ctx context.Context, phone, code string, expiresAt time.Time) error {
	n.log.Info(ctx, "otp issued", "to", phone, "code", code, "expires_at", expiresAt)
	return nil
}

func (n *LogNotifier) SendEmailVerification(ctx context.Context, email, link string, expiresAt time.Time) error {
	n.log.Info(ctx, "email verification issued", "to", email, "link", link, "expires_at", expiresAt)
	return nil
}
