package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

var _ ports.AuditSink = (*AuditRepository)(nil)

// AuditRepository implements ports.AuditSink on the account_audit table.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Write(ctx context.Context, event domain.AuditEvent) error {
	fields := event.Fields
	if fields == nil {
		fields = []string{}
	}
	_, err := r.pool.Exec(ctx, `
    INSERT INTO account_audit (id, action, actor_id, actor_username, target_id, target_username, target_role, fields, occurred_at)
    VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)
    ON CONFLICT (id) DO NOTHING
  `, event.ID, string(event.Action), event.ActorID, event.ActorUsername,
		event.TargetID, event.TargetUsername, event.TargetRole.String(), fields, event.OccurredAt.UTC())
	return err
}
