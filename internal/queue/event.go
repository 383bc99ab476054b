// Package queue defines the message payloads exchanged over the broker and
// the background consumer that records them.
package queue

// EventsQueueName is the durable queue carrying every occupancy event.
const EventsQueueName = "occupancy.events"

// Event types carried in StayEvent.Type.
const (
	EventStayAssigned     = "stay.assigned"
	EventStayReleased     = "stay.released"
	EventStayAmended      = "stay.amended"
	EventConflictDetected = "conflict.detected"
	EventConflictResolved = "conflict.resolved"
)

// StayEvent is published whenever the engine changes a stay or the conflict
// tooling finds or repairs overlaps.  It carries enough for downstream
// consumers to log or notify without querying the primary database.  Fields
// that do not apply to a given type are left at their zero value.
type StayEvent struct {
	Type             string  `json:"type"`
	StayID           uint64  `json:"stay_id,omitempty"`
	RoomID           uint64  `json:"room_id,omitempty"`
	ResidentID       uint64  `json:"resident_id,omitempty"`
	StartDate        string  `json:"start_date,omitempty"`
	EndDate          *string `json:"end_date,omitempty"`
	PaymentMode      string  `json:"payment_mode,omitempty"`
	TotalAmountCents *uint32 `json:"total_amount_cents,omitempty"`
	Policy           string  `json:"policy,omitempty"`
	PairCount        int     `json:"pair_count,omitempty"`
	Detail           string  `json:"detail,omitempty"`
	OccurredAt       string  `json:"occurred_at"`
}
