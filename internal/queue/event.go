// Package queue defines the change events exchanged between the
// booking engine, the live view hub and the message broker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Topics a live view client can subscribe to. Each one maps to a table
// whose contents the client mirrors; an event on a topic is a cue to
// re-fetch that aggregate, never a diff to apply.
const (
	TopicSlots      = "slots"
	TopicBookings   = "bookings"
	TopicSlotAdmins = "slot_admins"
)

// Actions carried by change events. Consumers must not depend on them
// for correctness — delivery is at-least-once with no ordering — but
// they are useful for logging.
const (
	ActionCreated   = "created"
	ActionDeleted   = "deleted"
	ActionUpdated   = "updated"
	ActionRecounted = "recounted"
)

// ChangeEvent signals that something changed in the aggregate named by
// Topic. It deliberately carries identifiers only: subscribers hold an
// eventually-consistent cache and must resynchronize by re-fetching,
// so shipping row data here would only invite stale merges. The ID
// lets at-least-once consumers spot redeliveries.
type ChangeEvent struct {
	ID         string `json:"id"`
	Topic      string `json:"topic"`
	Action     string `json:"action"`
	EntityID   uint64 `json:"entity_id"`
	SlotID     uint64 `json:"slot_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewChangeEvent builds an event with a fresh UUID and the current UTC
// timestamp.
func NewChangeEvent(topic, action string, entityID, slotID uint64) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.NewString(),
		Topic:      topic,
		Action:     action,
		EntityID:   entityID,
		SlotID:     slotID,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
