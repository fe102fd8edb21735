package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

var _ ports.AuditSink = LogSink{}

// LogSink writes audit events as structured log lines. Used when the account
// store has no audit table of its own.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Write(_ context.Context, event domain.AuditEvent) error {
	s.Log.Info().
		Str("event_id", event.ID).
		Str("action", string(event.Action)).
		Str("actor_id", event.ActorID).
		Str("actor", event.ActorUsername).
		Str("target_id", event.TargetID).
		Str("target", event.TargetUsername).
		Str("target_role", event.TargetRole.String()).
		Strs("fields", event.Fields).
		Time("occurred_at", event.OccurredAt).
		Msg("audit")
	return nil
}
