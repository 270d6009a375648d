// Package service implements the reservation workflow: authorization,
// timezone normalization, slot validation, transactional overlap
// checking and domain event emission.  Handlers stay thin and translate
// the errors defined here into HTTP responses.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/timeslot"
)

// maxMemoLen bounds the free-text memo, measured in runes.
const maxMemoLen = 150

// Sentinel errors returned by the reservation workflow.  Handlers map
// them onto HTTP status codes.
var (
	// ErrSlotConflict reports that the requested interval intersects an
	// existing booking for the room.  The message deliberately carries
	// no detail about the conflicting booking.
	ErrSlotConflict = errors.New("this time range is unavailable")
	// ErrForbidden reports that the actor is neither the organizer nor
	// an admin of the booking's branch.
	ErrForbidden = errors.New("forbidden")
	// ErrWrongBranch reports that the actor does not belong to the
	// branch of the target room.
	ErrWrongBranch = errors.New("room belongs to a different branch")
	// ErrRoomNotFound reports an unknown room reference.
	ErrRoomNotFound = errors.New("room not found")
	// ErrEventNotFound reports an unknown booking reference.
	ErrEventNotFound = errors.New("event not found")
	// ErrBranchNotFound reports an unknown branch reference.
	ErrBranchNotFound = errors.New("branch not found")
)

// ValidationError reports a malformed or inconsistent request field.
// It is always recoverable by resubmitting corrected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// BookingTx is the view of the booking store inside one transaction.
// The overlap check and the eventual write must both run through the
// same BookingTx so that concurrent writers on one room serialize.
type BookingTx interface {
	// ExistsOverlap reports whether any booking for the room intersects
	// the half-open interval [start, end), ignoring the booking with
	// excludeID when it is non-zero.
	ExistsOverlap(ctx context.Context, roomID uint64, start, end time.Time, excludeID uint64) (bool, error)
	// InsertEvent persists a new booking and its attendee set, filling
	// in the generated ID.
	InsertEvent(ctx context.Context, ev *model.Event, attendees []uint64) error
	// GetEvent loads a booking and its attendee IDs, locking the row
	// for the remainder of the transaction.
	GetEvent(ctx context.Context, id uint64) (*model.Event, []uint64, error)
	// UpdateEvent mutates room, interval and memo; when
	// replaceAttendees is true the attendee set is fully replaced.
	UpdateEvent(ctx context.Context, ev *model.Event, attendees []uint64, replaceAttendees bool) error
	// DeleteEvent hard-removes a booking, freeing its interval.
	DeleteEvent(ctx context.Context, id uint64) error
}

// BookingStore is the persistence boundary for bookings.  InTx runs fn
// inside a single transaction: if fn returns an error the transaction
// rolls back and nothing is visible outside, otherwise it commits.
type BookingStore interface {
	InTx(ctx context.Context, fn func(tx BookingTx) error) error
}

// RoomDirectory resolves room references.
type RoomDirectory interface {
	GetByID(ctx context.Context, id uint64) (*model.Room, error)
}

// BranchDirectory resolves a branch to its IANA timezone name, the
// only per-branch configuration the core reads.
type BranchDirectory interface {
	Timezone(ctx context.Context, id uint64) (string, error)
}

// UserDirectory resolves user references for attendee validation and
// notification recipients.
type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []uint64) ([]model.User, error)
	ExistAll(ctx context.Context, branchID uint64, ids []uint64) (bool, error)
}

// Publisher delivers domain events to the notification gateway.
// Publishing happens after commit and failures are logged, never
// propagated: a booking is valid with or without its notification.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Reservation orchestrates booking creation, update and cancellation.
type Reservation struct {
	store    BookingStore
	rooms    RoomDirectory
	branches BranchDirectory
	users    UserDirectory
	publish  Publisher
	now      func() time.Time
}

// NewReservation constructs the reservation service.  publisher may be
// nil, in which case no domain events are emitted.
func NewReservation(store BookingStore, rooms RoomDirectory, branches BranchDirectory, users UserDirectory, publisher Publisher) *Reservation {
	if store == nil || rooms == nil || branches == nil || users == nil {
		panic("nil dependency passed to NewReservation")
	}
	return &Reservation{
		store:    store,
		rooms:    rooms,
		branches: branches,
		users:    users,
		publish:  publisher,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Actor is the authenticated principal performing an operation, as
// resolved from the access token.
type Actor struct {
	UserID   uint64
	BranchID uint64
	Role     string
}

// admin reports whether the actor holds admin authority over the given
// branch.  Admin authority is scoped to the admin's own branch.
func (a Actor) admin(branchID uint64) bool {
	return a.Role == model.RoleAdmin && a.BranchID == branchID
}

// CreateRequest carries the client input for a new booking.  StartTime
// and EndTime are branch-local wall-clock strings.
type CreateRequest struct {
	BranchID  uint64
	RoomID    uint64
	StartTime string
	EndTime   string
	Attendees []uint64
	Memo      *string
}

// UpdateRequest carries the client input for mutating a booking.  A nil
// Attendees leaves the attendee set untouched; a non-nil value fully
// replaces it.
type UpdateRequest struct {
	RoomID    uint64
	StartTime string
	EndTime   string
	Attendees *[]uint64
	Memo      *string
}

// Create validates and commits a new booking, then emits a
// booking.created event.  The overlap check and insert share one
// transaction, which is what guarantees that of two concurrent
// overlapping requests for the same room exactly one commits.
func (s *Reservation) Create(ctx context.Context, req CreateRequest, actor Actor) (uint64, error) {
	room, err := s.rooms.GetByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRoomNotFound
		}
		return 0, err
	}
	if req.BranchID != room.BranchID {
		return 0, &ValidationError{Field: "room_id", Message: "room does not belong to the given branch"}
	}
	if actor.BranchID != room.BranchID {
		return 0, ErrWrongBranch
	}
	if err := validateMemo(req.Memo); err != nil {
		return 0, err
	}
	attendees := dedupeIDs(req.Attendees)
	if err := s.checkAttendees(ctx, room.BranchID, attendees); err != nil {
		return 0, err
	}
	start, end, err := s.normalizedSlot(ctx, room.BranchID, req.StartTime, req.EndTime)
	if err != nil {
		return 0, err
	}

	ev := &model.Event{
		BranchID:    room.BranchID,
		OrganizerID: actor.UserID,
		RoomID:      room.ID,
		StartTime:   start,
		EndTime:     end,
		Memo:        req.Memo,
	}
	err = s.store.InTx(ctx, func(tx BookingTx) error {
		busy, err := tx.ExistsOverlap(ctx, room.ID, start, end, 0)
		if err != nil {
			return err
		}
		if busy {
			return ErrSlotConflict
		}
		return tx.InsertEvent(ctx, ev, attendees)
	})
	if err != nil {
		return 0, err
	}

	s.emit(ctx, queue.TypeBookingCreated, ev, room.Name, attendees)
	return ev.ID, nil
}

// Update revalidates and commits a changed booking.  Only the original
// organizer or an admin of the booking's branch may update; the overlap
// check excludes the booking itself so rewriting a booking to its own
// slot succeeds.
func (s *Reservation) Update(ctx context.Context, eventID uint64, req UpdateRequest, actor Actor) error {
	room, err := s.rooms.GetByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return err
	}
	if err := validateMemo(req.Memo); err != nil {
		return err
	}
	var newAttendees []uint64
	if req.Attendees != nil {
		newAttendees = dedupeIDs(*req.Attendees)
		if err := s.checkAttendees(ctx, room.BranchID, newAttendees); err != nil {
			return err
		}
	}
	start, end, err := s.normalizedSlot(ctx, room.BranchID, req.StartTime, req.EndTime)
	if err != nil {
		return err
	}

	var updated *model.Event
	var finalAttendees []uint64
	err = s.store.InTx(ctx, func(tx BookingTx) error {
		ev, current, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEventNotFound
			}
			return err
		}
		if actor.UserID != ev.OrganizerID && !actor.admin(ev.BranchID) {
			return ErrForbidden
		}
		if room.BranchID != ev.BranchID {
			return &ValidationError{Field: "room_id", Message: "room does not belong to the booking's branch"}
		}
		busy, err := tx.ExistsOverlap(ctx, room.ID, start, end, ev.ID)
		if err != nil {
			return err
		}
		if busy {
			return ErrSlotConflict
		}
		ev.RoomID = room.ID
		ev.StartTime = start
		ev.EndTime = end
		ev.Memo = req.Memo
		finalAttendees = current
		if req.Attendees != nil {
			finalAttendees = newAttendees
		}
		if err := tx.UpdateEvent(ctx, ev, newAttendees, req.Attendees != nil); err != nil {
			return err
		}
		updated = ev
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, queue.TypeBookingUpdated, updated, room.Name, finalAttendees)
	return nil
}

// Cancel hard-deletes a booking, freeing its interval immediately.  A
// snapshot of the booking is captured before the delete so the
// cancellation event can still describe it.
func (s *Reservation) Cancel(ctx context.Context, eventID uint64, actor Actor) error {
	var snapshot *model.Event
	var attendees []uint64
	err := s.store.InTx(ctx, func(tx BookingTx) error {
		ev, current, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEventNotFound
			}
			return err
		}
		if actor.UserID != ev.OrganizerID && !actor.admin(ev.BranchID) {
			return ErrForbidden
		}
		snapshot = ev
		attendees = current
		return tx.DeleteEvent(ctx, ev.ID)
	})
	if err != nil {
		return err
	}

	roomName := ""
	if room, err := s.rooms.GetByID(ctx, snapshot.RoomID); err == nil {
		roomName = room.Name
	}
	s.emit(ctx, queue.TypeBookingCancelled, snapshot, roomName, attendees)
	return nil
}

// normalizedSlot resolves the branch timezone, converts the wall-clock
// pair to UTC and enforces the 15-minute grid.
func (s *Reservation) normalizedSlot(ctx context.Context, branchID uint64, startText, endText string) (time.Time, time.Time, error) {
	tz, err := s.branches.Timezone(ctx, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, time.Time{}, ErrBranchNotFound
		}
		return time.Time{}, time.Time{}, err
	}
	loc, err := timeslot.LoadZone(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end, err := timeslot.Normalize(startText, endText, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if err := timeslot.Validate(start, end, loc); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// checkAttendees rejects attendee lists referencing unknown users or
// users outside the branch.
func (s *Reservation) checkAttendees(ctx context.Context, branchID uint64, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	ok, err := s.users.ExistAll(ctx, branchID, ids)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationError{Field: "attendees", Message: "unknown attendee in list"}
	}
	return nil
}

// emit publishes one domain event for a committed transition.  Failures
// are logged and swallowed: notification is best-effort, never part of
// the booking transaction.
func (s *Reservation) emit(ctx context.Context, eventType string, ev *model.Event, roomName string, attendees []uint64) {
	if s.publish == nil || ev == nil {
		return
	}
	ids := append([]uint64{ev.OrganizerID}, attendees...)
	users, err := s.users.GetByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		log.Printf("reservation: resolve recipients for event %d failed: %v", ev.ID, err)
		users = nil
	}
	organizerName := ""
	recipients := make([]queue.Recipient, 0, len(users))
	for _, u := range users {
		if u.ID == ev.OrganizerID {
			organizerName = u.Name
		}
		recipients = append(recipients, queue.Recipient{
			UserID:      u.ID,
			Name:        u.Name,
			Email:       u.Email,
			Lang:        u.Lang,
			NotifyEmail: u.NotifyEmail,
		})
	}
	memo := ""
	if ev.Memo != nil {
		memo = *ev.Memo
	}
	msg := queue.BookingEvent{
		Type:          eventType,
		EventID:       ev.ID,
		BranchID:      ev.BranchID,
		RoomID:        ev.RoomID,
		RoomName:      roomName,
		OrganizerID:   ev.OrganizerID,
		OrganizerName: organizerName,
		StartsAt:      ev.StartTime.UTC().Format(time.RFC3339),
		EndsAt:        ev.EndTime.UTC().Format(time.RFC3339),
		Memo:          memo,
		Recipients:    recipients,
		EmittedAt:     s.now().Format(time.RFC3339),
	}
	if err := s.publish.Publish(ctx, msg); err != nil {
		log.Printf("reservation: publish %s for event %d failed: %v", eventType, ev.ID, err)
	}
}

// validateMemo bounds the optional memo text.
func validateMemo(memo *string) error {
	if memo != nil && utf8.RuneCountInString(*memo) > maxMemoLen {
		return &ValidationError{Field: "memo", Message: "must be at most 150 characters"}
	}
	return nil
}

// dedupeIDs drops zero and duplicate IDs while preserving order.
func dedupeIDs(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
