package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/cryptox"
	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/server/auth"
	"github.com/Satyam1603/GoTogether/internal/server/config"
	"github.com/Satyam1603/GoTogether/internal/server/metrics"
	"github.com/Satyam1603/GoTogether/internal/server/models"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/repomanager"
)

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 32

// TokenPair bundles a short-lived access token and a long-lived refresh token.
// ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// TokenService issues, rotates and revokes token pairs. Refresh tokens are
// single use: every successful Refresh consumes the presented token.
type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	metrics                      *metrics.Metrics
	now                          func() time.Time
}

func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, mx *metrics.Metrics) *TokenService {
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.JWTSecret),
		accessTokenValidityDuration:  cfg.AccessTokenTTL,
		refreshTokenValidityDuration: cfg.RefreshTokenTTL,
		metrics:                      mx,
		now:                          time.Now,
	}
}

// Issue mints a new pair for user and persists the refresh token hash. The
// access token is marked pending while the user is not active.
func (s *TokenService) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	return s.issueWith(ctx, s.db, user)
}

func (s *TokenService) issueWith(ctx context.Context, db dbx.DBTX, user *models.User) (*TokenPair, error) {
	pair, err := s.issue(ctx, db, user, s.now())
	s.metrics.TokenOp("issue", metrics.Result(err))
	return pair, err
}

// Refresh consumes refreshToken and returns a fresh pair in the same
// transaction. Unknown, revoked, already rotated and expired tokens all
// yield common.ErrInvalidToken.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken)
	s.metrics.TokenOp("refresh", metrics.Result(err))
	return pair, err
}

func (s *TokenService) refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidToken
	}

	hash := cryptox.HashToken(refreshToken)
	now := s.now()

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		token, err := s.repomanager.RefreshTokens(tx).Consume(ctx, hash, now)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error consuming refresh token: %w", err)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error loading token owner: %w", err)
		}

		pair, err = s.issue(ctx, tx, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Revoke invalidates one refresh token of userID. Unknown or already revoked
// tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, userID, cryptox.HashToken(refreshToken), s.now())
	s.metrics.TokenOp("revoke", metrics.Result(err))
	if err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	return nil
}

// RevokeToken invalidates refreshToken whoever owns it and returns the
// owner's id. It needs no access token, so a client whose access token has
// expired can still end its session. Unknown or already revoked tokens
// return common.ErrInvalidToken.
func (s *TokenService) RevokeToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", common.ErrInvalidToken
	}
	userID, err := s.repomanager.RefreshTokens(s.db).RevokeByHash(ctx, cryptox.HashToken(refreshToken), s.now())
	s.metrics.TokenOp("revoke", metrics.Result(err))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidToken
		}
		return "", fmt.Errorf("error revoking refresh token: %w", err)
	}
	return userID, nil
}

// RevokeAll invalidates every live refresh token of userID.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	_, err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID, s.now())
	s.metrics.TokenOp("revoke_all", metrics.Result(err))
	if err != nil {
		return fmt.Errorf("error revoking refresh tokens: %w", err)
	}
	return nil
}

// ParseAccessToken validates an access token and returns its claims.
func (s *TokenService) ParseAccessToken(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, s.jwtSecret, s.now())
}

// DeleteExpired drops refresh tokens that can no longer be presented.
func (s *TokenService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
}

func (s *TokenService) issue(ctx context.Context, db dbx.DBTX, user *models.User, now time.Time) (*TokenPair, error) {
	access, err := auth.GenerateToken(user.ID, user.Role, !user.Active(), s.jwtSecret, s.accessTokenValidityDuration, now)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}

	refresh, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	expiresAt := now.Add(s.refreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(db).Create(ctx, user.ID, cryptox.HashToken(refresh), expiresAt); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTokenValidityDuration / time.Second),
	}, nil
}
