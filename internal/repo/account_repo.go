package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/storefront/identity/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the lookup
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique email or mobile is already taken
	ErrConflict = errors.New("unique constraint violated")
)

// AccountRepo defines the interface for account repository operations
type AccountRepo interface {
	GetByID(ctx context.Context, id int64) (model.Account, error)
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	FindByMobile(ctx context.Context, mobile string) (model.Account, error)
	// ExistsByEmail with verifiedOnly only counts active accounts whose email is verified.
	ExistsByEmail(ctx context.Context, email string, verifiedOnly bool) (bool, error)
	ExistsByMobile(ctx context.Context, mobile string, verifiedOnly bool) (bool, error)
	Create(ctx context.Context, account *model.Account) error
	Update(ctx context.Context, account *model.Account) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

const accountColumns = `id, name, email, mobile, password_hash, role,
		       is_mobile_verified, is_email_verified, is_active,
		       last_logged_in_at, created_at, updated_at`

type accountRepo struct {
	db *sql.DB
}

// NewAccountRepo creates a new AccountRepo instance
func NewAccountRepo(db *sql.DB) AccountRepo {
	return &accountRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		a                   model.Account
		email, mobile, hash sql.NullString
		role                string
		lastLoggedIn        sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.Name,
		&email,
		&mobile,
		&hash,
		&role,
		&a.IsMobileVerified,
		&a.IsEmailVerified,
		&a.IsActive,
		&lastLoggedIn,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Email = nullableString(email)
	a.Mobile = nullableString(mobile)
	a.PasswordHash = nullableString(hash)
	a.Role = model.Role(role)
	if lastLoggedIn.Valid {
		t := lastLoggedIn.Time
		a.LastLoggedInAt = &t
	}
	return a, nil
}

// GetByID retrieves an account by ID
func (r *accountRepo) GetByID(ctx context.Context, id int64) (model.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// FindByEmail retrieves an account by email
func (r *accountRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// FindByMobile retrieves an account by mobile number
func (r *accountRepo) FindByMobile(ctx context.Context, mobile string) (model.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE mobile = $1`, mobile)
	return scanAccount(row)
}

func (r *accountRepo) ExistsByEmail(ctx context.Context, email string, verifiedOnly bool) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE email = $1
			  AND (NOT $2 OR (is_email_verified AND is_active))
		)
	`, email, verifiedOnly).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by email: %w", err)
	}
	return exists, nil
}

func (r *accountRepo) ExistsByMobile(ctx context.Context, mobile string, verifiedOnly bool) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE mobile = $1
			  AND (NOT $2 OR (is_mobile_verified AND is_active))
		)
	`, mobile, verifiedOnly).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by mobile: %w", err)
	}
	return exists, nil
}

// Create inserts the account and fills ID and timestamps.
// A duplicate email or mobile yields ErrConflict.
func (r *accountRepo) Create(ctx context.Context, a *model.Account) error {
	if a.Role == "" {
		a.Role = model.RoleUser
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (name, email, mobile, password_hash, role,
		                      is_mobile_verified, is_email_verified, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, a.Name, a.Email, a.Mobile, a.PasswordHash, string(a.Role),
		a.IsMobileVerified, a.IsEmailVerified, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert account: %w", ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Update writes every mutable column of the account
func (r *accountRepo) Update(ctx context.Context, a *model.Account) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET name = $2, email = $3, mobile = $4, password_hash = $5, role = $6,
		    is_mobile_verified = $7, is_email_verified = $8, is_active = $9,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.Name, a.Email, a.Mobile, a.PasswordHash, string(a.Role),
		a.IsMobileVerified, a.IsEmailVerified, a.IsActive,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("update account: %w", ErrConflict)
		}
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (r *accountRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET last_logged_in_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// isUniqueViolation reports a Postgres unique_violation (23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
