package model

import "time"

// Event records a reservation of one room for one half-open time
// interval [StartTime, EndTime) by one organizer.  Both instants are
// stored in UTC; they are entered and displayed as wall-clock times in
// the branch's timezone.  For a fixed room no two events' intervals may
// intersect, which the repository enforces inside the write
// transaction.  BranchID is denormalized from the room so branch
// calendars can be listed without a join on rooms.
//
// Fields:
//  ID          – primary key identifier.
//  BranchID    – branch the booking belongs to (same as the room's).
//  OrganizerID – user who created the booking.
//  RoomID      – room being reserved.
//  StartTime   – UTC instant the booking starts (inclusive).
//  EndTime     – UTC instant the booking ends (exclusive).
//  Memo        – optional note, at most 150 characters.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
	ID          uint64    // events.event_id
	BranchID    uint64    // events.branch_id
	OrganizerID uint64    // events.organizer_id
	RoomID      uint64    // events.room_id
	StartTime   time.Time // events.start_time (UTC)
	EndTime     time.Time // events.end_time (UTC)
	Memo        *string   // events.memo (nullable)
	CreatedAt   time.Time // events.created_at
	UpdatedAt   time.Time // events.updated_at
}
