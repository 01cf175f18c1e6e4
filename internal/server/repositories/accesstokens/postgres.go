// Package accesstokens provides a PostgreSQL-backed repository for the
// bearer tokens issued on registration and login.
package accesstokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/dbx"
	"github.com/waonpad/benkyo-1/internal/server/models"
)

// PostgresRepository implements token storage over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the token row and fills in its ID and creation time. The
// hash is usually set afterwards with SetHash, once the signed token string
// (which embeds the ID) is known.
func (r *PostgresRepository) Create(ctx context.Context, token *models.AccessToken) (*models.AccessToken, error) {
	query := `
		INSERT INTO personal_access_tokens (user_id, name, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, token.UserID, token.Name, token.TokenHash, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt); err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) SetHash(ctx context.Context, id int64, hash string) error {
	query := `
		UPDATE personal_access_tokens
		SET token_hash = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns the token row with the given ID, or common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, id int64) (*models.AccessToken, error) {
	query := `
		SELECT id, user_id, name, token_hash, last_used_at, expires_at, created_at
		FROM personal_access_tokens
		WHERE id = $1
	`
	t := &models.AccessToken{}
	if err := r.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.LastUsedAt, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Delete removes a single token. Deleting a missing token is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM personal_access_tokens
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE personal_access_tokens
		SET last_used_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// PruneExpired deletes tokens whose expiry has passed and returns how many
// were removed.
func (r *PostgresRepository) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM personal_access_tokens
		WHERE expires_at IS NOT NULL AND expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
