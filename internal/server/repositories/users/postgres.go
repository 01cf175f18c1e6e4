// Package users provides the PostgreSQL repository for accounts.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/dbx"
	"github.com/waonpad/benkyo-1/internal/server/models"
)

const uniqueViolation = "23505"

// ConflictError reports which unique column rejected a write. It matches
// common.ErrorAlreadyExists with errors.Is.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Unwrap() error {
	return common.ErrorAlreadyExists
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, screen_name, name, email, password, email_verified_at, profile_photo_path, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.ScreenName, &u.Name, &u.Email, &u.Password,
		&u.EmailVerifiedAt, &u.ProfilePhotoPath, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (screen_name, name, email, password)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ScreenName, user.Name, user.Email, user.Password).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, wrapWriteError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) ScreenNameExists(ctx context.Context, screenName string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE screen_name = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, screenName).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string, exceptID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, exceptID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// UpdateProfile changes name and email. A changed email clears
// email_verified_at.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, name, email string) (*models.User, error) {
	query :=
		`UPDATE users
		 SET name = $2,
		     email_verified_at = CASE WHEN email = $3 THEN email_verified_at ELSE NULL END,
		     email = $3,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id, name, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, wrapWriteError(err)
	}
	return user, nil
}

func (r *PostgresRepository) UpdatePhotoPath(ctx context.Context, id int64, path *string) error {
	query := `UPDATE users SET profile_photo_path = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, path)
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

func wrapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_screen_name_unique":
			return &ConflictError{Field: "screen_name"}
		case "users_email_unique":
			return &ConflictError{Field: "email"}
		}
		return fmt.Errorf("db error: %w", common.ErrorAlreadyExists)
	}
	return fmt.Errorf("db error: %w", err)
}
