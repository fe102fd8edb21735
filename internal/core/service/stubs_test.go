package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// stubAccountRepo is an in-memory AccountRepository. It enforces unique
// usernames and emails like the real stores, and optionally the single-admin
// index.
type stubAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	nextID   int
	calls    map[string]int

	delay       time.Duration
	failWith    error
	singleAdmin bool
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{
		accounts: make(map[string]*domain.Account),
		calls:    make(map[string]int),
	}
}

func copyAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

func (r *stubAccountRepo) enter(op string) error {
	r.mu.Lock()
	r.calls[op]++
	delay, err := r.delay, r.failWith
	r.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (r *stubAccountRepo) callCount(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// seed stores an account directly, bypassing every check.
func (r *stubAccountRepo) seed(a *domain.Account) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := copyAccount(a)
	if stored.ID == "" {
		r.nextID++
		stored.ID = fmt.Sprintf("acc-%d", r.nextID)
	}
	r.accounts[stored.ID] = stored
	return copyAccount(stored)
}

func (r *stubAccountRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	if err := r.enter("FindByUsername"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == username {
			return copyAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if err := r.enter("FindByEmail"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			return copyAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	if err := r.enter("FindByID"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) List(_ context.Context) ([]*domain.Account, error) {
	if err := r.enter("List"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, copyAccount(a))
	}
	return out, nil
}

func (r *stubAccountRepo) ListByRole(_ context.Context, role domain.Role) ([]*domain.Account, error) {
	if err := r.enter("ListByRole"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.accounts {
		if a.Role == role {
			out = append(out, copyAccount(a))
		}
	}
	return out, nil
}

func (r *stubAccountRepo) conflict(a *domain.Account) error {
	for id, other := range r.accounts {
		if id == a.ID {
			continue
		}
		if other.Username == a.Username || strings.EqualFold(other.Email, a.Email) {
			return domain.ErrDuplicateAccount
		}
		if r.singleAdmin && a.Role == domain.RoleAdmin && other.Role == domain.RoleAdmin {
			return domain.ErrCardinalityExceeded
		}
	}
	return nil
}

func (r *stubAccountRepo) Insert(_ context.Context, account *domain.Account) (*domain.Account, error) {
	if err := r.enter("Insert"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(account); err != nil {
		return nil, err
	}
	stored := copyAccount(account)
	r.nextID++
	stored.ID = fmt.Sprintf("acc-%d", r.nextID)
	r.accounts[stored.ID] = stored
	return copyAccount(stored), nil
}

func (r *stubAccountRepo) Update(_ context.Context, account *domain.Account) (*domain.Account, error) {
	if err := r.enter("Update"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return nil, domain.ErrAccountNotFound
	}
	if err := r.conflict(account); err != nil {
		return nil, err
	}
	r.accounts[account.ID] = copyAccount(account)
	return copyAccount(account), nil
}

func (r *stubAccountRepo) Delete(_ context.Context, id string) error {
	if err := r.enter("Delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

// plainHasher is a fast, insecure PasswordHasher that records how often it
// was asked to verify.
type plainHasher struct {
	mu       sync.Mutex
	verifies int
	failHash bool
}

func (h *plainHasher) Hash(plaintext string) (string, error) {
	if h.failHash {
		return "", domain.ErrHashing
	}
	return "plain:" + plaintext, nil
}

func (h *plainHasher) Verify(plaintext, digest string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return digest == "plain:"+plaintext
}

func (h *plainHasher) verifyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

// recordingAudit keeps every event it is given.
type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Record(event domain.AuditEvent) {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
}

func (a *recordingAudit) actions() []domain.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

func newAccount(username string, role domain.Role, password string) *domain.Account {
	return &domain.Account{
		Username:     username,
		Email:        username + "@crm.com",
		PasswordHash: "plain:" + password,
		GivenName:    strings.ToUpper(username[:1]) + username[1:],
		FamilyName:   "Test",
		Role:         role,
		Active:       true,
	}
}
