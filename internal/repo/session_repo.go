package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SessionRepo stores at most one live session token per account.
type SessionRepo interface {
	// Upsert replaces the account's session token, inserting the marker if absent.
	Upsert(ctx context.Context, accountID int64, token string) error
	Exists(ctx context.Context, accountID int64) (bool, error)
	// Token returns the current session token or ErrNotFound.
	Token(ctx context.Context, accountID int64) (string, error)
	// Delete removes the marker; deleting a missing marker is not an error.
	Delete(ctx context.Context, accountID int64) error
}

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a Postgres-backed SessionRepo
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Upsert(ctx context.Context, accountID int64, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_tokens (account_id, session_token)
		VALUES ($1, $2)
		ON CONFLICT (account_id)
		DO UPDATE SET session_token = EXCLUDED.session_token, updated_at = now()
	`, accountID, token)
	if err != nil {
		return fmt.Errorf("upsert session token: %w", err)
	}
	return nil
}

func (r *sessionRepo) Exists(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM session_tokens WHERE account_id = $1)
	`, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return exists, nil
}

func (r *sessionRepo) Token(ctx context.Context, accountID int64) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, `
		SELECT session_token FROM session_tokens WHERE account_id = $1
	`, accountID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load session token: %w", err)
	}
	return token, nil
}

func (r *sessionRepo) Delete(ctx context.Context, accountID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}
