package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

var _ ports.AuditSink = (*AuditRepository)(nil)

// AuditRepository implements ports.AuditSink on the account_audit table.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Write(ctx context.Context, event domain.AuditEvent) error {
	fields := event.Fields
	if fields == nil {
		fields = []string{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode audit fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO account_audit
		    (id, action, actor_id, actor_username, target_id, target_username, target_role, fields, occurred_at)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?)`,
		event.ID,
		string(event.Action),
		event.ActorID,
		event.ActorUsername,
		event.TargetID,
		event.TargetUsername,
		event.TargetRole.String(),
		string(encoded),
		event.OccurredAt.UnixNano(),
	)
	return err
}
