package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"strings"      // strings detects MySQL error codes in driver messages

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// RoomRepo manages persistence for meeting rooms.  Rooms belong to a
// branch and are administered by that branch's admins.  Deletion is
// guarded at the service layer: a room that still has events attached
// is never removed, so booking history cannot be destroyed by a
// cascade.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *RoomRepo) DB() *sql.DB { return r.db }

// Create inserts a new room and assigns the generated ID back to the
// struct.  Default timestamps are read back from the inserted row.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	const q = `INSERT INTO rooms (branch_id, room_name, capacity, facility) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, room.BranchID, room.Name, room.Capacity, room.Facility)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	room.ID = uint64(id)
	const sel = `SELECT room_id, branch_id, room_name, capacity, facility, created_at, updated_at
                 FROM rooms WHERE room_id = ?`
	var facility sql.NullString
	err = r.db.QueryRowContext(ctx, sel, room.ID).Scan(
		&room.ID, &room.BranchID, &room.Name, &room.Capacity, &facility,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if facility.Valid {
		f := facility.String
		room.Facility = &f
	}
	return nil
}

// GetByID retrieves a room by its ID.  It returns sql.ErrNoRows when
// no room matches.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT room_id, branch_id, room_name, capacity, facility, created_at, updated_at
               FROM rooms WHERE room_id = ?`
	var room model.Room
	var facility sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.BranchID, &room.Name, &room.Capacity, &facility,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if facility.Valid {
		f := facility.String
		room.Facility = &f
	}
	return &room, nil
}

// ListByBranch returns all rooms of a branch ordered by name.
func (r *RoomRepo) ListByBranch(ctx context.Context, branchID uint64) ([]model.Room, error) {
	const q = `SELECT room_id, branch_id, room_name, capacity, facility, created_at, updated_at
               FROM rooms WHERE branch_id = ? ORDER BY room_name`
	rows, err := r.db.QueryContext(ctx, q, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rooms := make([]model.Room, 0)
	for rows.Next() {
		var room model.Room
		var facility sql.NullString
		if err := rows.Scan(
			&room.ID, &room.BranchID, &room.Name, &room.Capacity, &facility,
			&room.CreatedAt, &room.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if facility.Valid {
			f := facility.String
			room.Facility = &f
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Update mutates a room's name, capacity and facility text.  It
// returns sql.ErrNoRows when the room does not exist.
func (r *RoomRepo) Update(ctx context.Context, room *model.Room) error {
	const q = `UPDATE rooms SET room_name = ?, capacity = ?, facility = ?, updated_at = CURRENT_TIMESTAMP
               WHERE room_id = ?`
	res, err := r.db.ExecContext(ctx, q, room.Name, room.Capacity, room.Facility, room.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows both for a missing row and for a
	// no-op update; distinguish by probing existence.
	if n == 0 {
		var exists uint64
		if err := r.db.QueryRowContext(ctx, `SELECT room_id FROM rooms WHERE room_id = ?`, room.ID).Scan(&exists); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a room.  The caller checks for attached events first,
// but that check can race with a concurrent booking; the events table's
// restricting foreign key is the backstop and surfaces as ErrConflict.
// It returns sql.ErrNoRows when the room does not exist.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, id)
	if err != nil {
		// MySQL error 1451: row is referenced by a foreign key.
		if strings.Contains(err.Error(), "1451") {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
