package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/server/models"
)

const uniqueViolation = "23505"

const userColumns = `id, email, phone, first_name, last_name, password_hash,
		email_verified, phone_verified, role, verification_method,
		profile_image_key, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, phone, first_name, last_name, password_hash, role, verification_method)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Phone, user.FirstName, user.LastName, user.PasswordHash, user.Role, user.VerificationMethod,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id, purpose, contact string) (*models.User, error) {
	var query string
	switch purpose {
	case common.PurposePhone:
		query = `UPDATE users SET phone_verified = TRUE, phone = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns
	case common.PurposeEmail:
		query = `UPDATE users SET email_verified = TRUE, email = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns
	default:
		return nil, fmt.Errorf("%w: unknown purpose %q", common.ErrValidation, purpose)
	}

	user, err := r.getOne(ctx, query, id, contact)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, user *models.User) (*models.User, error) {
	query := `UPDATE users SET first_name = $2, last_name = $3, email = $4, phone = $5,
		 email_verified = $6, phone_verified = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	updated, err := r.getOne(ctx, query, user.ID, user.FirstName, user.LastName,
		user.Email, user.Phone, user.EmailVerified, user.PhoneVerified)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, err
	}
	return updated, nil
}

func (r *PostgresRepository) LockForUpdate(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) SetProfileImageKey(ctx context.Context, id, key string) error {
	query :=
		`UPDATE users SET profile_image_key = $2, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, query, id, key)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	var email, phone, imageKey sql.NullString

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &email, &phone, &user.FirstName, &user.LastName, &user.PasswordHash,
		&user.EmailVerified, &user.PhoneVerified, &user.Role, &user.VerificationMethod,
		&imageKey, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Email = nullable(email)
	user.Phone = nullable(phone)
	user.ProfileImageKey = nullable(imageKey)
	return user, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
