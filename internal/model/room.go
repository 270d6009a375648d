package model

import "time"

// Room represents a bookable meeting room inside a branch.  Rooms are
// created and edited by administrators of the owning branch.  A room
// that still has bookings attached cannot be deleted; the service layer
// rejects the delete instead of cascading it so booking history is
// never silently destroyed.
//
// Fields:
//  ID        – primary key identifier.
//  BranchID  – branch that owns the room.
//  Name      – display name, unique enough for humans (max 20 chars).
//  Capacity  – seating capacity, non-negative.
//  Facility  – free-text description of equipment (nil if unset).
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Room struct {
	ID        uint64    // rooms.room_id
	BranchID  uint64    // rooms.branch_id
	Name      string    // rooms.room_name
	Capacity  uint32    // rooms.capacity
	Facility  *string   // rooms.facility (nullable)
	CreatedAt time.Time // rooms.created_at
	UpdatedAt time.Time // rooms.updated_at
}
