// Package services contains the server-side business logic: accounts,
// verification challenges, token issuance and profile images.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/cryptox"
	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/logging"
	"github.com/Satyam1603/GoTogether/internal/server/metrics"
	"github.com/Satyam1603/GoTogether/internal/server/models"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

// RegisterRequest is the input of UserService.Register.
type RegisterRequest struct {
	Email              string
	Phone              string
	Password           string
	FirstName          string
	LastName           string
	Role               string
	VerificationMethod string
}

// VerificationStatus summarizes which contacts of a user are proven.
type VerificationStatus struct {
	Method        string
	EmailVerified bool
	PhoneVerified bool
	Active        bool
}

// UserService handles registration, login, logout and account queries. It
// delegates token work to TokenService and challenge work to
// VerificationService.
type UserService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	tokens       *TokenService
	verification *VerificationService
	log          logging.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService,
	verification *VerificationService, l logging.Logger, mx *metrics.Metrics) *UserService {
	return &UserService{
		db:           db,
		repomanager:  m,
		tokens:       tokens,
		verification: verification,
		log:          l.With("module", "users"),
		metrics:      mx,
		now:          time.Now,
	}
}

// Register creates a pending account, issues its first token pair and
// starts verification of the chosen contact. The account and its refresh
// token are written in one transaction. A failed first delivery is
// logged only: the user can ask for a resend.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, *TokenPair, error) {
	user, err := s.newUser(req)
	if err != nil {
		return nil, nil, err
	}

	hash, err := cryptox.HashPassword([]byte(req.Password))
	if err != nil {
		return nil, nil, fmt.Errorf("error hashing password: %w", err)
	}
	user.PasswordHash = hash

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return err
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		user = created

		pair, err = s.tokens.issueWith(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	contact := user.Email
	if user.VerificationMethod == common.PurposePhone {
		contact = user.Phone
	}
	if _, err := s.verification.GenerateChallenge(ctx, user.ID, *contact, user.VerificationMethod); err != nil {
		s.log.Warn(ctx, "initial verification not sent", "user_id", user.ID, "error", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "method", user.VerificationMethod)
	return user, pair, nil
}

func (s *UserService) newUser(req RegisterRequest) (*models.User, error) {
	if strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("%w: email or phone is required", common.ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}

	user := &models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}

	if strings.TrimSpace(req.Email) != "" {
		email, err := s.verification.NormalizeContact(common.PurposeEmail, req.Email)
		if err != nil {
			return nil, err
		}
		user.Email = &email
	}
	if strings.TrimSpace(req.Phone) != "" {
		p, err := s.verification.NormalizeContact(common.PurposePhone, req.Phone)
		if err != nil {
			return nil, err
		}
		user.Phone = &p
	}

	switch req.Role {
	case "":
		user.Role = common.RolePassenger
	case common.RolePassenger, common.RoleDriver:
		user.Role = req.Role
	default:
		return nil, fmt.Errorf("%w: role %q cannot be chosen at signup", common.ErrValidation, req.Role)
	}

	switch req.VerificationMethod {
	case "":
		user.VerificationMethod = common.PurposeEmail
		if user.Phone != nil {
			user.VerificationMethod = common.PurposePhone
		}
	case common.PurposePhone, common.PurposeEmail:
		user.VerificationMethod = req.VerificationMethod
	default:
		return nil, fmt.Errorf("%w: unknown verification method %q", common.ErrValidation, req.VerificationMethod)
	}

	if user.VerificationMethod == common.PurposePhone && user.Phone == nil {
		return nil, fmt.Errorf("%w: phone verification needs a phone number", common.ErrValidation)
	}
	if user.VerificationMethod == common.PurposeEmail && user.Email == nil {
		return nil, fmt.Errorf("%w: email verification needs an email address", common.ErrValidation)
	}

	return user, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same bcrypt work as a real check so unknown
// logins are not distinguishable by latency.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword([]byte("gotogether-dummy-password"))
	})
	cryptox.CheckPassword(dummyHash, []byte(password))
}

// Login authenticates by email or phone. Unknown logins and wrong passwords
// both yield common.ErrInvalidCredentials; accounts whose chosen contact is
// not verified yet yield common.ErrVerificationPending.
func (s *UserService) Login(ctx context.Context, login, password string) (*models.User, *TokenPair, error) {
	user, pair, err := s.login(ctx, login, password)
	s.metrics.Login(loginResult(err))
	return user, pair, err
}

func (s *UserService) login(ctx context.Context, login, password string) (*models.User, *TokenPair, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: login and password are required", common.ErrValidation)
	}

	user, err := s.findByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			burnPasswordCheck(password)
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !cryptox.CheckPassword(user.PasswordHash, []byte(password)) {
		return nil, nil, common.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, nil, common.ErrVerificationPending
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *UserService) findByLogin(ctx context.Context, login string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	if strings.Contains(login, "@") {
		email, err := s.verification.NormalizeContact(common.PurposeEmail, login)
		if err != nil {
			return nil, common.ErrorNotFound
		}
		return repo.GetByEmail(ctx, email)
	}

	p, err := s.verification.NormalizeContact(common.PurposePhone, login)
	if err != nil {
		return nil, common.ErrorNotFound
	}
	return repo.GetByPhone(ctx, p)
}

// Logout revokes refreshToken. The owner is resolved from the token itself,
// so logging out works after the access token has expired. Empty, unknown
// and already revoked tokens are ignored.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	userID, err := s.tokens.RevokeToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			return nil
		}
		return err
	}
	s.log.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) VerificationStatus(ctx context.Context, id string) (*VerificationStatus, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &VerificationStatus{
		Method:        u.VerificationMethod,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		Active:        u.Active(),
	}, nil
}

// ProfileUpdate lists the profile fields to change. Nil fields are kept.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// UpdateProfile applies upd to user id. A new email or phone is normalized
// and loses its verified flag; outstanding challenges for that contact are
// superseded in the same transaction, so a code sent to the old contact can
// no longer verify the new one.
func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		u.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		u.LastName = strings.TrimSpace(*upd.LastName)
	}

	var changed []string
	if upd.Email != nil {
		email, err := s.normalizeOptional(common.PurposeEmail, *upd.Email)
		if err != nil {
			return nil, err
		}
		if !sameContact(u.Email, email) {
			u.Email, u.EmailVerified = email, false
			changed = append(changed, common.PurposeEmail)
		}
	}
	if upd.Phone != nil {
		p, err := s.normalizeOptional(common.PurposePhone, *upd.Phone)
		if err != nil {
			return nil, err
		}
		if !sameContact(u.Phone, p) {
			u.Phone, u.PhoneVerified = p, false
			changed = append(changed, common.PurposePhone)
		}
	}

	if u.Email == nil && u.Phone == nil {
		return nil, fmt.Errorf("%w: email or phone is required", common.ErrValidation)
	}
	if u.VerificationMethod == common.PurposePhone && u.Phone == nil {
		return nil, fmt.Errorf("%w: phone verification needs a phone number", common.ErrValidation)
	}
	if u.VerificationMethod == common.PurposeEmail && u.Email == nil {
		return nil, fmt.Errorf("%w: email verification needs an email address", common.ErrValidation)
	}

	now := s.now()
	var updated *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		updated, err = s.repomanager.Users(tx).UpdateProfile(ctx, u)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) || errors.Is(err, common.ErrorNotFound) {
				return err
			}
			return fmt.Errorf("error updating profile: %w", err)
		}
		for _, purpose := range changed {
			if _, err := s.repomanager.Challenges(tx).SupersedeActive(ctx, id, purpose, now); err != nil {
				return fmt.Errorf("error superseding challenges: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "profile updated", "user_id", id, "contacts_changed", changed)
	return updated, nil
}

// normalizeOptional treats a blank contact as a request to remove it.
func (s *UserService) normalizeOptional(purpose, contact string) (*string, error) {
	if strings.TrimSpace(contact) == "" {
		return nil, nil
	}
	v, err := s.verification.NormalizeContact(purpose, contact)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func sameContact(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ChangePassword replaces the password after checking the current one and
// revokes every refresh token of the user in the same transaction.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !cryptox.CheckPassword(u.PasswordHash, []byte(current)) {
		return common.ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword([]byte(next))
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, id, hash); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		if _, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, id, s.now()); err != nil {
			return fmt.Errorf("error revoking refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", "user_id", id)
	return nil
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrVerificationPending):
		return "verification_pending"
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
