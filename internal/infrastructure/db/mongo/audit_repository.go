package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

const auditCollection = "account_audit"

var _ ports.AuditSink = (*AuditRepository)(nil)

// AuditRepository implements ports.AuditSink using MongoDB.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(auditCollection)}
}

// Write persists an audit event to the account_audit collection.
func (r *AuditRepository) Write(ctx context.Context, event domain.AuditEvent) error {
	doc := bson.M{
		"_id":             event.ID,
		"action":          string(event.Action),
		"target_id":       event.TargetID,
		"target_username": event.TargetUsername,
		"target_role":     event.TargetRole.String(),
		"occurred_at":     event.OccurredAt.UTC(),
		"recorded_at":     time.Now().UTC(),
	}
	if event.ActorID != "" {
		doc["actor"] = bson.M{
			"id":       event.ActorID,
			"username": event.ActorUsername,
		}
	}
	if len(event.Fields) > 0 {
		doc["fields"] = event.Fields
	}

	_, err := r.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		// Already written by an earlier attempt.
		return nil
	}
	return err
}

// EnsureIndexes creates the lookup indexes on the audit collection.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "target_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "actor.id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
