package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
	"github.com/assurminut/crm-identity/internal/infrastructure/cache"
)

func TestAccountService_EnsureAdmin(t *testing.T) {
	repo := newStubAccountRepo()
	rec := &recordingAudit{}
	svc := NewAccountService(repo, &plainHasher{}, cache.Disabled{}, zerolog.Nop(), WithAuditRecorder(rec))
	ctx := context.Background()

	admin := ports.CreateAccountInput{
		Username:   "admin",
		Email:      "admin@crm.com",
		Password:   "admin123",
		GivenName:  "Admin",
		FamilyName: "CRM",
	}

	created, err := svc.EnsureAdmin(ctx, admin)
	if err != nil || !created {
		t.Fatalf("expected admin to be created, got created=%v err=%v", created, err)
	}
	stored, err := repo.FindByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("admin not stored: %v", err)
	}
	if stored.Role != domain.RoleAdmin || stored.PasswordHash != "plain:admin123" {
		t.Fatalf("unexpected admin: %+v", stored)
	}

	created, err = svc.EnsureAdmin(ctx, admin)
	if err != nil || created {
		t.Fatalf("expected second call to be a no-op, got created=%v err=%v", created, err)
	}
	if got := rec.actions(); len(got) != 1 || got[0] != domain.AuditAccountSeeded {
		t.Fatalf("unexpected audit trail: %v", got)
	}
}

func TestAccountService_Seed(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, &plainHasher{}, cache.Disabled{}, zerolog.Nop())
	ctx := context.Background()

	inputs := []ports.CreateAccountInput{input("admin", domain.RoleAdmin)}
	for i := 0; i < domain.MaxSupervisors+1; i++ {
		inputs = append(inputs, input(fmt.Sprintf("sup%d", i), domain.RoleSupervisor))
	}
	inputs = append(inputs, input("agent", domain.RoleAgent), input("agent", domain.RoleAgent))

	created, err := svc.Seed(ctx, inputs)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if want := 1 + domain.MaxSupervisors + 1; created != want {
		t.Fatalf("expected %d accounts, got %d", want, created)
	}

	again, err := svc.Seed(ctx, inputs)
	if err != nil || again != 0 {
		t.Fatalf("expected seeding a populated store to do nothing, got %d, %v", again, err)
	}
}

func TestAccountService_VerifyRoleCaps(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, &plainHasher{}, cache.Disabled{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.VerifyRoleCaps(ctx); !errors.Is(err, domain.ErrCardinalityExceeded) {
		t.Fatalf("expected a missing admin to be reported, got %v", err)
	}

	repo.seed(newAccount("admin", domain.RoleAdmin, "pw"))
	counts, err := svc.VerifyRoleCaps(ctx)
	if err != nil {
		t.Fatalf("expected a healthy store, got %v", err)
	}
	if counts[domain.RoleAdmin] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	for i := 0; i < domain.MaxSupervisors+1; i++ {
		repo.seed(newAccount(fmt.Sprintf("sup%d", i), domain.RoleSupervisor, "pw"))
	}
	counts, err = svc.VerifyRoleCaps(ctx)
	if !errors.Is(err, domain.ErrCardinalityExceeded) {
		t.Fatalf("expected supervisor overflow to be reported, got %v", err)
	}
	if counts[domain.RoleSupervisor] != domain.MaxSupervisors+1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
