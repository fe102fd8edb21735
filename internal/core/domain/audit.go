package domain

import "time"

// AuditAction names a lifecycle mutation.
type AuditAction string

const (
	AuditAccountCreated AuditAction = "account_created"
	AuditAccountUpdated AuditAction = "account_updated"
	AuditAccountDeleted AuditAction = "account_deleted"
	AuditPasswordReset  AuditAction = "password_reset"
	AuditAccountSeeded  AuditAction = "account_seeded"
)

// AuditEvent records who did what to which account. It never carries
// credentials.
type AuditEvent struct {
	ID             string      `json:"id"`
	Action         AuditAction `json:"action"`
	ActorID        string      `json:"actor_id,omitempty"`
	ActorUsername  string      `json:"actor_username,omitempty"`
	TargetID       string      `json:"target_id"`
	TargetUsername string      `json:"target_username"`
	TargetRole     Role        `json:"target_role"`
	Fields         []string    `json:"fields,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
