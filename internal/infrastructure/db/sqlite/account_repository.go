package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

const accountColumns = `id, username, email, password_hash, given_name, family_name, role, active, created_at, updated_at`

var _ ports.AccountRepository = (*AccountRepository)(nil)

// AccountRepository implements ports.AccountRepository on SQLite.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower(?)`, email)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, username`)
}

func (r *AccountRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role = ? ORDER BY created_at, username`, role.String())
}

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	stored := *account
	stored.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID,
		stored.Username,
		stored.Email,
		stored.PasswordHash,
		stored.GivenName,
		stored.FamilyName,
		stored.Role.String(),
		stored.Active,
		stored.CreatedAt.UnixNano(),
		stored.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, writeError("insert account", err)
	}
	return r.FindByID(ctx, stored.ID)
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET username = ?, email = ?, password_hash = ?, given_name = ?, family_name = ?,
		    role = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.GivenName,
		account.FamilyName,
		account.Role.String(),
		account.Active,
		account.UpdatedAt.UnixNano(),
		account.ID,
	)
	if err != nil {
		return nil, writeError("update account", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return r.FindByID(ctx, account.ID)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	var (
		a                domain.Account
		role             string
		created, updated int64
	)
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.GivenName,
		&a.FamilyName,
		&role,
		&a.Active,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	if a.Role, err = domain.ParseRole(role); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	a.CreatedAt = nanosToTime(created)
	a.UpdatedAt = nanosToTime(updated)
	return &a, nil
}

func (r *AccountRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// writeError maps constraint violations onto domain errors. SQLite names the
// indexed column rather than the index, so the single admin index shows up
// as a unique violation on accounts.role.
func writeError(op string, err error) error {
	var sqlErr *sqlitedrv.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			if strings.Contains(sqlErr.Error(), "accounts.role") {
				return fmt.Errorf("%w: store already holds an admin account", domain.ErrCardinalityExceeded)
			}
			return domain.ErrDuplicateAccount
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%w: check constraint failed", domain.ErrValidation)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nanosToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
