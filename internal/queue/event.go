// Package queue defines message payloads exchanged over the message broker.
package queue

// Event type values carried in BookingEvent.Type.  Exactly one event is
// emitted per committed state transition of a booking; delivery-side
// deduplication is the consumer's concern.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingUpdated   = "booking.updated"
	TypeBookingCancelled = "booking.cancelled"
)

// Recipient identifies a user who should be notified about a booking
// transition.  The notification preference flags travel with the
// message so the gateway can filter without querying the primary
// database.  For cancellations the payload is built from a snapshot
// taken before the row was deleted.
type Recipient struct {
	UserID      uint64 `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Lang        string `json:"lang"`
	NotifyEmail bool   `json:"notify_email"`
}

// BookingEvent is published when a booking is created, updated or
// cancelled.  It contains enough information for downstream consumers
// to log, notify, or trigger analytics without querying the primary
// database.  Times are RFC3339 UTC.
type BookingEvent struct {
	Type          string      `json:"type"`
	EventID       uint64      `json:"event_id"`
	BranchID      uint64      `json:"branch_id"`
	RoomID        uint64      `json:"room_id"`
	RoomName      string      `json:"room_name"`
	OrganizerID   uint64      `json:"organizer_id"`
	OrganizerName string      `json:"organizer_name"`
	StartsAt      string      `json:"starts_at"`
	EndsAt        string      `json:"ends_at"`
	Memo          string      `json:"memo,omitempty"`
	Recipients    []Recipient `json:"recipients"`
	EmittedAt     string      `json:"emitted_at"`
}
