package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"

	singleAdminIndex = "accounts_single_admin"

	accountColumns = `id::text, username, email, password_hash, given_name, family_name, role, active, created_at, updated_at`
)

var _ ports.AccountRepository = (*AccountRepository)(nil)

// AccountRepository implements ports.AccountRepository on PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, username`)
}

func (r *AccountRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role = $1 ORDER BY created_at, username`, role.String())
}

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
    INSERT INTO accounts (id, username, email, password_hash, given_name, family_name, role, active, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    RETURNING `+accountColumns,
		uuid.NewString(),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.GivenName,
		account.FamilyName,
		account.Role.String(),
		account.Active,
		account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
	)
	created, err := scanAccount(row)
	if err != nil {
		return nil, writeError("insert account", err)
	}
	return created, nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if _, err := uuid.Parse(account.ID); err != nil {
		return nil, domain.ErrAccountNotFound
	}
	row := r.pool.QueryRow(ctx, `
    UPDATE accounts
    SET username = $2, email = $3, password_hash = $4, given_name = $5, family_name = $6,
        role = $7, active = $8, updated_at = $9
    WHERE id = $1
    RETURNING `+accountColumns,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.GivenName,
		account.FamilyName,
		account.Role.String(),
		account.Active,
		account.UpdatedAt.UTC(),
	)
	updated, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, writeError("update account", err)
	}
	return updated, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrAccountNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) queryOne(ctx context.Context, sql string, args ...any) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) query(ctx context.Context, sql string, args ...any) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
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

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a    domain.Account
		role string
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
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Role, err = domain.ParseRole(role); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// writeError maps constraint violations onto domain errors.
func writeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation && pgErr.ConstraintName == singleAdminIndex:
			return fmt.Errorf("%w: store already holds an admin account", domain.ErrCardinalityExceeded)
		case pgErr.Code == uniqueViolation:
			return domain.ErrDuplicateAccount
		case pgErr.Code == checkViolation:
			return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
