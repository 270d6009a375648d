// Package repository contains data access logic for the reservation
// domain.  This file implements persistence for events (bookings) and
// their attendee sets.  An event reserves one room for one half-open
// UTC interval; the overlap query and the write must run inside the
// same transaction so that two concurrent requests for the same room
// cannot both commit.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"strings"      // strings builds IN (...) placeholder lists
	"time"         // time carries UTC instants

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// EventRepo manages persistence for events and the event_users join
// table.  All instants are stored and compared in UTC; the DSN opens
// the connection with loc=UTC so DATETIME columns scan into UTC
// time.Time values.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need to begin
// transactions spanning repository methods.
func (r *EventRepo) DB() *sql.DB { return r.db }

// ExistsOverlapTx reports whether any event for the room intersects the
// half-open interval [start, end).  Two intervals overlap iff
// start < existing end AND end > existing start, so an event ending
// exactly when another starts does not conflict.  When excludeID is
// non-zero the event with that ID is ignored, which lets an update
// overlap with itself.  The matching rows are locked with FOR UPDATE so
// concurrent writers on the same room serialize on this check.
func (r *EventRepo) ExistsOverlapTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	q := `SELECT event_id FROM events
          WHERE room_id = ? AND start_time < ? AND end_time > ?`
	args := []interface{}{roomID, end.UTC(), start.UTC()}
	if excludeID != 0 {
		q += ` AND event_id <> ?`
		args = append(args, excludeID)
	}
	q += ` LIMIT 1 FOR UPDATE`
	var id uint64
	err := tx.QueryRowContext(ctx, q, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts a new event within the scope of an existing
// transaction.  It populates the generated ID and DB-default
// timestamps on the provided struct.  The caller must have performed
// the overlap check in the same transaction and must commit or roll
// back.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, ev *model.Event) error {
	const q = `INSERT INTO events (branch_id, organizer_id, room_id, start_time, end_time, memo)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, ev.BranchID, ev.OrganizerID, ev.RoomID, ev.StartTime.UTC(), ev.EndTime.UTC(), ev.Memo)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM events WHERE event_id = ?`
	return tx.QueryRowContext(ctx, sel, ev.ID).Scan(&ev.CreatedAt, &ev.UpdatedAt)
}

// UpdateTx mutates an event's room, interval and memo inside the given
// transaction.  The attendee set is handled separately by
// ReplaceAttendeesTx.
func (r *EventRepo) UpdateTx(ctx context.Context, tx *sql.Tx, ev *model.Event) error {
	const q = `UPDATE events
               SET room_id = ?, start_time = ?, end_time = ?, memo = ?, updated_at = CURRENT_TIMESTAMP
               WHERE event_id = ?`
	_, err := tx.ExecContext(ctx, q, ev.RoomID, ev.StartTime.UTC(), ev.EndTime.UTC(), ev.Memo, ev.ID)
	return err
}

// DeleteTx hard-removes an event.  The event_users rows cascade via
// the foreign key.  Cancellation frees the interval immediately.
func (r *EventRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE event_id = ?`, id)
	return err
}

// GetTx loads an event and its attendee user IDs inside a transaction,
// locking the event row so a concurrent update or cancel of the same
// booking waits.  It returns sql.ErrNoRows when the event does not
// exist.
func (r *EventRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, []uint64, error) {
	const q = `SELECT event_id, branch_id, organizer_id, room_id, start_time, end_time, memo, created_at, updated_at
               FROM events WHERE event_id = ? FOR UPDATE`
	ev, err := scanEvent(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, nil, err
	}
	attendees, err := attendeeIDs(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	return ev, attendees, nil
}

// GetByID loads an event and its attendee user IDs outside any
// transaction.  It returns sql.ErrNoRows when the event does not
// exist.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, []uint64, error) {
	const q = `SELECT event_id, branch_id, organizer_id, room_id, start_time, end_time, memo, created_at, updated_at
               FROM events WHERE event_id = ?`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, nil, err
	}
	attendees, err := attendeeIDs(ctx, r.db, id)
	if err != nil {
		return nil, nil, err
	}
	return ev, attendees, nil
}

// AttachAttendeesTx inserts event_users rows for the given user IDs in
// a single statement.  Passing an empty slice has no effect.  The
// composite primary key rejects duplicates, so callers deduplicate
// before insertion.
func (r *EventRepo) AttachAttendeesTx(ctx context.Context, tx *sql.Tx, eventID uint64, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `INSERT INTO event_users (event_id, user_id) VALUES `
	args := make([]interface{}, 0, len(userIDs)*2)
	for i, uid := range userIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, eventID, uid)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ReplaceAttendeesTx replaces the full attendee set of an event.  The
// prior set is removed and the new one inserted; an empty slice clears
// all attendees.  Replacement, not merging, matches the update
// semantics of the API.
func (r *EventRepo) ReplaceAttendeesTx(ctx context.Context, tx *sql.Tx, eventID uint64, userIDs []uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_users WHERE event_id = ?`, eventID); err != nil {
		return err
	}
	return r.AttachAttendeesTx(ctx, tx, eventID, userIDs)
}

// CountByRoom returns the number of events that reference a room.  The
// room handler refuses to delete rooms with a non-zero count.
func (r *EventRepo) CountByRoom(ctx context.Context, roomID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE room_id = ?`, roomID).Scan(&n)
	return n, err
}

// rowScanner lets scanEvent work with both *sql.Row results from the
// pooled handle and from a transaction.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var ev model.Event
	var memo sql.NullString
	err := row.Scan(
		&ev.ID, &ev.BranchID, &ev.OrganizerID, &ev.RoomID,
		&ev.StartTime, &ev.EndTime, &memo, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if memo.Valid {
		m := memo.String
		ev.Memo = &m
	}
	ev.StartTime = ev.StartTime.UTC()
	ev.EndTime = ev.EndTime.UTC()
	return &ev, nil
}

// queryer abstracts *sql.DB and *sql.Tx for read helpers.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func attendeeIDs(ctx context.Context, q queryer, eventID uint64) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, `SELECT user_id FROM event_users WHERE event_id = ? ORDER BY user_id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var uid uint64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		ids = append(ids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AttendeePart is the attendee entry embedded in event listings.
type AttendeePart struct {
	UserID uint64 `json:"user_id"`
	Name   string `json:"name"`
}

// EventDetail is the listing shape returned by ListByBranch: the event
// row joined with its room name and organizer name, plus the attendee
// set.  Times are branch-agnostic UTC in DB format; clients render
// them in the branch's timezone.
type EventDetail struct {
	ID            uint64         `json:"event_id"`
	BranchID      uint64         `json:"branch_id"`
	OrganizerID   uint64         `json:"organizer_id"`
	OrganizerName string         `json:"organizer_name"`
	RoomID        uint64         `json:"room_id"`
	RoomName      string         `json:"room_name"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	Memo          *string        `json:"memo"`
	Attendees     []AttendeePart `json:"attendees"`
}

const dbTimeLayout = "2006-01-02 15:04:05"

// ListByBranch returns all events of a branch ordered by start time.
// When filterUserID is non-nil the result is restricted to events where
// that user is the organizer or an attendee.  Attendees are populated
// for all returned events in a single follow-up query.
func (r *EventRepo) ListByBranch(ctx context.Context, branchID uint64, filterUserID *uint64) ([]EventDetail, error) {
	q := `SELECT e.event_id, e.branch_id, e.organizer_id, u.name, e.room_id, rm.room_name,
                 e.start_time, e.end_time, e.memo
          FROM events e
          JOIN users u ON u.id = e.organizer_id
          JOIN rooms rm ON rm.room_id = e.room_id
          WHERE e.branch_id = ?`
	args := []interface{}{branchID}
	if filterUserID != nil {
		q += ` AND (e.organizer_id = ? OR EXISTS (
                   SELECT 1 FROM event_users eu WHERE eu.event_id = e.event_id AND eu.user_id = ?))`
		args = append(args, *filterUserID, *filterUserID)
	}
	q += ` ORDER BY e.start_time ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]EventDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d EventDetail
		var start, end time.Time
		var memo sql.NullString
		if err := rows.Scan(
			&d.ID, &d.BranchID, &d.OrganizerID, &d.OrganizerName, &d.RoomID, &d.RoomName,
			&start, &end, &memo,
		); err != nil {
			return nil, err
		}
		d.StartTime = start.UTC().Format(dbTimeLayout)
		d.EndTime = end.UTC().Format(dbTimeLayout)
		if memo.Valid {
			m := memo.String
			d.Memo = &m
		}
		d.Attendees = []AttendeePart{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	// Populate attendees for all events in a single query.
	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	attQ := `SELECT eu.event_id, eu.user_id, u.name
             FROM event_users eu
             JOIN users u ON u.id = eu.user_id
             WHERE eu.event_id IN (` + strings.Join(placeholders, ",") + `)
             ORDER BY eu.event_id, eu.user_id`
	arows, err := r.db.QueryContext(ctx, attQ, ids...)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var eid uint64
		var part AttendeePart
		if err := arows.Scan(&eid, &part.UserID, &part.Name); err != nil {
			return nil, err
		}
		idx, ok := index[eid]
		if !ok {
			continue
		}
		details[idx].Attendees = append(details[idx].Attendees, part)
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// UpcomingEvent is the shape returned by the notification queries: the
// minimum an alert needs without a second round trip.
type UpcomingEvent struct {
	ID            uint64
	RoomName      string
	OrganizerName string
	StartTime     time.Time
	EndTime       time.Time
}

// ListStartingBetween returns events of a branch starting inside
// [from, to) where the given user is organizer or attendee.  It backs
// the five-minutes-ahead schedule reminder.
func (r *EventRepo) ListStartingBetween(ctx context.Context, branchID, userID uint64, from, to time.Time) ([]UpcomingEvent, error) {
	const q = `SELECT e.event_id, rm.room_name, u.name, e.start_time, e.end_time
               FROM events e
               JOIN rooms rm ON rm.room_id = e.room_id
               JOIN users u ON u.id = e.organizer_id
               WHERE e.branch_id = ? AND e.start_time >= ? AND e.start_time < ?
                 AND (e.organizer_id = ? OR EXISTS (
                     SELECT 1 FROM event_users eu WHERE eu.event_id = e.event_id AND eu.user_id = ?))
               ORDER BY e.start_time ASC`
	return r.queryUpcoming(ctx, q, branchID, from.UTC(), to.UTC(), userID, userID)
}

// ListInProgress returns events of a branch whose interval contains the
// given instant.  It backs the branch-wide room status notification.
func (r *EventRepo) ListInProgress(ctx context.Context, branchID uint64, at time.Time) ([]UpcomingEvent, error) {
	const q = `SELECT e.event_id, rm.room_name, u.name, e.start_time, e.end_time
               FROM events e
               JOIN rooms rm ON rm.room_id = e.room_id
               JOIN users u ON u.id = e.organizer_id
               WHERE e.branch_id = ? AND e.start_time <= ? AND e.end_time > ?
               ORDER BY rm.room_name ASC`
	return r.queryUpcoming(ctx, q, branchID, at.UTC(), at.UTC())
}

func (r *EventRepo) queryUpcoming(ctx context.Context, q string, args ...interface{}) ([]UpcomingEvent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]UpcomingEvent, 0)
	for rows.Next() {
		var ev UpcomingEvent
		if err := rows.Scan(&ev.ID, &ev.RoomName, &ev.OrganizerName, &ev.StartTime, &ev.EndTime); err != nil {
			return nil, err
		}
		ev.StartTime = ev.StartTime.UTC()
		ev.EndTime = ev.EndTime.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
