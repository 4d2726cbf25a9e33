package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/server/models"
)

const challengeColumns = `id, user_id, contact, code_hash, purpose, created_at, expires_at, consumed_at, superseded_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Challenge) (*models.Challenge, error) {
	query := `
		INSERT INTO verification_challenges (user_id, contact, code_hash, purpose, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query,
		c.UserID, c.Contact, c.CodeHash, c.Purpose, c.CreatedAt, c.ExpiresAt,
	).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) SupersedeActive(ctx context.Context, userID, purpose string, at time.Time) (int64, error) {
	query := `
		UPDATE verification_challenges SET superseded_at = $3
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL AND superseded_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID, purpose, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) Latest(ctx context.Context, userID, purpose string) (*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM verification_challenges
		WHERE user_id = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, userID, purpose)
}

func (r *PostgresRepository) FindForUserByHash(ctx context.Context, userID, purpose, codeHash string) (*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM verification_challenges
		WHERE user_id = $1 AND purpose = $2 AND code_hash = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, userID, purpose, codeHash)
}

func (r *PostgresRepository) FindByHash(ctx context.Context, purpose, codeHash string) (*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM verification_challenges
		WHERE purpose = $1 AND code_hash = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, purpose, codeHash)
}

func (r *PostgresRepository) Consume(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE verification_challenges SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n > 0 {
		return nil
	}

	var superseded sql.NullTime
	err = r.db.QueryRowContext(ctx,
		`SELECT superseded_at FROM verification_challenges WHERE id = $1`, id,
	).Scan(&superseded)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrAlreadyConsumed
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case superseded.Valid:
		return common.ErrSuperseded
	default:
		return common.ErrAlreadyConsumed
	}
}

func (r *PostgresRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM verification_challenges
		WHERE user_id = $1 AND created_at >= $2
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM verification_challenges
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Challenge, error) {
	c := &models.Challenge{}
	var consumed, superseded sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.UserID, &c.Contact, &c.CodeHash, &c.Purpose,
		&c.CreatedAt, &c.ExpiresAt, &consumed, &superseded,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if consumed.Valid {
		t := consumed.Time
		c.ConsumedAt = &t
	}
	if superseded.Valid {
		t := superseded.Time
		c.SupersededAt = &t
	}
	return c, nil
}
