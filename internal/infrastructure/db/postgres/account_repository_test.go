package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("CRM_IDENTITY_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("CRM_IDENTITY_TEST_POSTGRES not set")
		return nil
	}
	ctx := context.Background()
	pool, err := Connect(ctx, Config{DSN: dsn, Timeout: 5 * time.Second})
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE accounts, account_audit`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func testAccount(username string, role domain.Role) *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		Username:     username,
		Email:        username + "@crm.com",
		PasswordHash: "$2a$04$digest",
		GivenName:    "Given",
		FamilyName:   "Family",
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAccountRepository_RoundTrip(t *testing.T) {
	pool := openTestDB(t)
	repo := NewAccountRepository(pool)
	ctx := context.Background()

	created, err := repo.Insert(ctx, testAccount("marie", domain.RoleSupervisor))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Fatalf("expected a uuid id, got %q", created.ID)
	}

	byEmail, err := repo.FindByEmail(ctx, "MARIE@crm.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("FindByEmail: %+v, %v", byEmail, err)
	}
	if _, err := repo.FindByUsername(ctx, "Marie"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected case-sensitive username lookup, got %v", err)
	}

	created.Active = false
	updated, err := repo.Update(ctx, created)
	if err != nil || updated.Active {
		t.Fatalf("Update: %+v, %v", updated, err)
	}

	supervisors, err := repo.ListByRole(ctx, domain.RoleSupervisor)
	if err != nil || len(supervisors) != 1 {
		t.Fatalf("ListByRole: %d, %v", len(supervisors), err)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountRepository_Constraints(t *testing.T) {
	pool := openTestDB(t)
	repo := NewAccountRepository(pool)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, testAccount("root", domain.RoleAdmin)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := repo.Insert(ctx, testAccount("root2", domain.RoleAdmin)); !errors.Is(err, domain.ErrCardinalityExceeded) {
		t.Fatalf("expected ErrCardinalityExceeded, got %v", err)
	}
	if _, err := repo.Insert(ctx, testAccount("root", domain.RoleAgent)); !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAuditRepository_Write(t *testing.T) {
	pool := openTestDB(t)
	sink := NewAuditRepository(pool)
	ctx := context.Background()

	event := domain.AuditEvent{
		ID:             uuid.NewString(),
		Action:         domain.AuditAccountCreated,
		TargetID:       "acc-1",
		TargetUsername: "marie",
		TargetRole:     domain.RoleAgent,
		OccurredAt:     time.Now(),
	}
	if err := sink.Write(ctx, event); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Write(ctx, event); err != nil {
		t.Fatalf("rewriting the same event should be a no-op: %v", err)
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM account_audit`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("expected one audit row, got %d, %v", n, err)
	}
}
