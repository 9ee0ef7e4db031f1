// Package audit defines the audit trail contract. Workflows record one entry
// per state change; storage compresses and persists the document snapshot.
package audit

import (
	"context"
	"time"

	"stockcore/internal/core/id"
)

// Actions recorded by the workflows.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// Entry is one audit fact: who did what to which document, with a snapshot of
// the document at that moment.
type Entry struct {
	ID         id.ID     `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   id.ID     `db:"entity_id" json:"entityId"`
	Action     string    `db:"action" json:"action"`
	ActorID    string    `db:"actor_id" json:"actorId"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`

	// Snapshot is the document state after the action. The storage layer
	// serializes and compresses it; it is never read back on the hot path.
	Snapshot any `db:"-" json:"-"`
}

// NewEntry builds an entry with generated ID and current timestamp.
func NewEntry(entityType string, entityID id.ID, action, actorID string, snapshot any) Entry {
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Snapshot:   snapshot,
	}
}

// Recorder persists audit entries. Recording happens inside the same
// transaction as the change it describes.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards entries. Test helper.
type Nop struct{}

func (Nop) Record(ctx context.Context, entry Entry) error { return nil }
