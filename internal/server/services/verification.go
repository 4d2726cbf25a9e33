package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/cryptox"
	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/logging"
	"github.com/Satyam1603/GoTogether/internal/phone"
	"github.com/Satyam1603/GoTogether/internal/server/config"
	"github.com/Satyam1603/GoTogether/internal/server/metrics"
	"github.com/Satyam1603/GoTogether/internal/server/models"
	"github.com/Satyam1603/GoTogether/internal/server/notify"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/repomanager"
)

const (
	otpDigits       = 6
	emailTokenBytes = 32
)

// VerificationService issues and checks phone OTPs and email tokens.
//
// At most one challenge per (user, purpose) is authoritative: issuing a new
// one supersedes the older ones in the same transaction. Checking a code
// consumes the challenge with a compare-and-set, so a code verifies once.
type VerificationService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	notifier     notify.Notifier
	codeSecret   []byte
	otpTTL       time.Duration
	emailTTL     time.Duration
	resendLimit  int
	resendWindow time.Duration
	phones       phone.Normalizer
	confirmURL   string
	log          logging.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	n notify.Notifier, l logging.Logger, mx *metrics.Metrics) *VerificationService {
	return &VerificationService{
		db:           db,
		repomanager:  m,
		notifier:     n,
		codeSecret:   []byte(cfg.CodeSecret),
		otpTTL:       cfg.OTPTTL,
		emailTTL:     cfg.EmailTokenTTL,
		resendLimit:  cfg.ResendLimit,
		resendWindow: cfg.ResendWindow,
		phones:       phone.Normalizer{CountryCode: cfg.DefaultCountryCode},
		confirmURL:   strings.TrimRight(cfg.PublicBaseURL, "/") + cfg.BasePath + "/users/verify-email-confirm",
		log:          l.With("module", "verification"),
		metrics:      mx,
		now:          time.Now,
	}
}

// NormalizeContact validates contact for purpose and returns its canonical
// form: E.164 for phones, lower case for emails.
func (s *VerificationService) NormalizeContact(purpose, contact string) (string, error) {
	switch purpose {
	case common.PurposePhone:
		return s.phones.Normalize(contact)
	case common.PurposeEmail:
		return normalizeEmail(contact)
	default:
		return "", fmt.Errorf("%w: unknown purpose %q", common.ErrValidation, purpose)
	}
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || !strings.Contains(raw[strings.LastIndex(raw, "@")+1:], ".") {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidEmail, raw)
	}
	return strings.ToLower(raw), nil
}

// GenerateChallenge creates a challenge for contact and hands the code to the
// notifier. An empty contact falls back to the one stored on the user.
//
// A notifier failure returns the persisted challenge together with an error
// wrapping common.ErrDeliveryFailed.
func (s *VerificationService) GenerateChallenge(ctx context.Context, userID, contact, purpose string) (*models.Challenge, error) {
	return s.generate(ctx, userID, contact, purpose, false)
}

// Resend is GenerateChallenge guarded by the per-user rate limit: when the
// user already has resendLimit challenges of any purpose inside the trailing
// window, it fails with common.ErrRateLimited.
func (s *VerificationService) Resend(ctx context.Context, userID, contact, purpose string) (*models.Challenge, error) {
	return s.generate(ctx, userID, contact, purpose, true)
}

func (s *VerificationService) generate(ctx context.Context, userID, contact, purpose string, limited bool) (*models.Challenge, error) {
	contact, err := s.resolveContact(ctx, userID, contact, purpose)
	if err != nil {
		return nil, err
	}

	code, err := s.newCode(purpose)
	if err != nil {
		return nil, fmt.Errorf("error generating code: %w", err)
	}

	now := s.now()
	c := &models.Challenge{
		UserID:    userID,
		Contact:   contact,
		CodeHash:  cryptox.HashCode(s.codeSecret, purpose, code),
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl(purpose)),
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// Concurrent issuers for one user queue here, so the count below
		// sees every challenge committed before it.
		if err := s.repomanager.Users(tx).LockForUpdate(ctx, userID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return err
			}
			return fmt.Errorf("error locking user: %w", err)
		}

		repo := s.repomanager.Challenges(tx)

		if limited {
			n, err := repo.CountSince(ctx, userID, now.Add(-s.resendWindow))
			if err != nil {
				return fmt.Errorf("error counting challenges: %w", err)
			}
			if n >= s.resendLimit {
				return common.ErrRateLimited
			}
		}

		if _, err := repo.SupersedeActive(ctx, userID, purpose, now); err != nil {
			return fmt.Errorf("error superseding challenges: %w", err)
		}

		created, err := repo.Create(ctx, c)
		if err != nil {
			return fmt.Errorf("error creating challenge: %w", err)
		}
		c = created
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrRateLimited) {
			s.metrics.ChallengeIssued(purpose, "rate_limited")
		}
		return nil, err
	}

	if err := s.deliver(ctx, c, code); err != nil {
		s.metrics.ChallengeIssued(purpose, "delivery_failed")
		s.log.Warn(ctx, "challenge delivery failed", "user_id", userID, "purpose", purpose, "error", err)
		return c, fmt.Errorf("%w: %v", common.ErrDeliveryFailed, err)
	}

	s.metrics.ChallengeIssued(purpose, "sent")
	s.log.Info(ctx, "challenge sent", "user_id", userID, "purpose", purpose, "expires_at", c.ExpiresAt)
	return c, nil
}

// VerifyChallenge checks code against the latest challenge of
// (userID, purpose). On success the challenge is consumed, the matching
// verified flag is set, and the updated user is returned.
//
// Failures, in the order they are checked: common.ErrorNotFound (no
// challenge, or the latest is used and the code is wrong),
// common.ErrAlreadyConsumed, common.ErrExpired, common.ErrSuperseded (the
// code belongs to an older challenge) and common.ErrMismatch.
func (s *VerificationService) VerifyChallenge(ctx context.Context, userID, contact, purpose, code string) (*models.User, error) {
	user, err := s.verify(ctx, userID, contact, purpose, code)
	s.metrics.Verification(purpose, verificationResult(err))
	return user, err
}

func (s *VerificationService) verify(ctx context.Context, userID, contact, purpose, code string) (*models.User, error) {
	if purpose != common.PurposePhone && purpose != common.PurposeEmail {
		return nil, fmt.Errorf("%w: unknown purpose %q", common.ErrValidation, purpose)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", common.ErrValidation)
	}
	if contact != "" {
		var err error
		if contact, err = s.NormalizeContact(purpose, contact); err != nil {
			return nil, err
		}
	}

	hash := cryptox.HashCode(s.codeSecret, purpose, code)
	now := s.now()

	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Challenges(tx)

		latest, err := repo.Latest(ctx, userID, purpose)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("error loading challenge: %w", err)
		}

		match := cryptox.EqualHash(latest.CodeHash, hash)

		if latest.Consumed() {
			if match {
				return common.ErrAlreadyConsumed
			}
			return common.ErrorNotFound
		}

		if latest.ExpiredAt(now) {
			return common.ErrExpired
		}

		if !match {
			_, err := repo.FindForUserByHash(ctx, userID, purpose, hash)
			switch {
			case err == nil:
				return common.ErrSuperseded
			case errors.Is(err, common.ErrorNotFound):
				return common.ErrMismatch
			default:
				return fmt.Errorf("error loading challenge: %w", err)
			}
		}

		if contact != "" && contact != latest.Contact {
			return common.ErrMismatch
		}

		if err := repo.Consume(ctx, latest.ID, now); err != nil {
			if errors.Is(err, common.ErrAlreadyConsumed) || errors.Is(err, common.ErrSuperseded) {
				return err
			}
			return fmt.Errorf("error consuming challenge: %w", err)
		}

		user, err = s.repomanager.Users(tx).MarkVerified(ctx, userID, purpose, latest.Contact)
		if err != nil {
			return fmt.Errorf("error marking user verified: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "contact verified", "user_id", userID, "purpose", purpose)
	return user, nil
}

// ConfirmEmailToken verifies an email link token. The link carries no user
// id, so the owner is resolved from the token hash first.
func (s *VerificationService) ConfirmEmailToken(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", common.ErrValidation)
	}

	hash := cryptox.HashCode(s.codeSecret, common.PurposeEmail, token)
	c, err := s.repomanager.Challenges(s.db).FindByHash(ctx, common.PurposeEmail, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Verification(common.PurposeEmail, verificationResult(err))
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading challenge: %w", err)
	}

	return s.VerifyChallenge(ctx, c.UserID, "", common.PurposeEmail, token)
}

// DeleteExpired removes challenges that expired before now.
func (s *VerificationService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repomanager.Challenges(s.db).DeleteExpired(ctx, s.now())
}

func (s *VerificationService) resolveContact(ctx context.Context, userID, contact, purpose string) (string, error) {
	if strings.TrimSpace(contact) != "" {
		return s.NormalizeContact(purpose, contact)
	}
	if purpose != common.PurposePhone && purpose != common.PurposeEmail {
		return "", fmt.Errorf("%w: unknown purpose %q", common.ErrValidation, purpose)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	stored := user.Phone
	if purpose == common.PurposeEmail {
		stored = user.Email
	}
	if stored == nil || *stored == "" {
		return "", fmt.Errorf("%w: no %s on file", common.ErrValidation, purpose)
	}
	return s.NormalizeContact(purpose, *stored)
}

func (s *VerificationService) newCode(purpose string) (string, error) {
	if purpose == common.PurposePhone {
		return cryptox.GenerateOTP(otpDigits)
	}
	return cryptox.GenerateToken(emailTokenBytes)
}

func (s *VerificationService) ttl(purpose string) time.Duration {
	if purpose == common.PurposePhone {
		return s.otpTTL
	}
	return s.emailTTL
}

func (s *VerificationService) deliver(ctx context.Context, c *models.Challenge, code string) error {
	if c.Purpose == common.PurposePhone {
		return s.notifier.SendOTP(ctx, c.Contact, code, c.ExpiresAt)
	}
	return s.notifier.SendEmailVerification(ctx, c.Contact, s.confirmURL+"?token="+url.QueryEscape(code), c.ExpiresAt)
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrExpired):
		return "expired"
	case errors.Is(err, common.ErrAlreadyConsumed):
		return "already_consumed"
	case errors.Is(err, common.ErrSuperseded):
		return "superseded"
	case errors.Is(err, common.ErrMismatch):
		return "mismatch"
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidPhone), errors.Is(err, common.ErrInvalidEmail):
		return "invalid"
	default:
		return "error"
	}
}
