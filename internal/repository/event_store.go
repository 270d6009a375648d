package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
)

// EventStore adapts EventRepo to the service.BookingStore contract.
// Each InTx call opens one MySQL transaction; the overlap range query
// inside it takes row locks on the matching events, so two concurrent
// writers targeting the same room serialize and at most one of two
// overlapping requests can commit.
type EventStore struct {
	db     *sql.DB
	events *EventRepo
}

// NewEventStore constructs an EventStore over the given handle.
func NewEventStore(db *sql.DB, events *EventRepo) *EventStore {
	if db == nil || events == nil {
		panic("nil dependency passed to NewEventStore")
	}
	return &EventStore{db: db, events: events}
}

// InTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.  There is no partially committed state
// visible outside a single call.
//
// When two transactions probe the same empty range, InnoDB grants both
// compatible gap locks and then each insert blocks on the other's gap,
// so one of them is killed with a deadlock error even though neither
// did anything wrong.  InTx retries the body once in that case: the
// rerun sees the committed row and reports the conflict, or simply
// succeeds when the intervals never overlapped.
func (s *EventStore) InTx(ctx context.Context, fn func(tx service.BookingTx) error) error {
	err := s.runTx(ctx, fn)
	if isDeadlock(err) {
		err = s.runTx(ctx, fn)
	}
	return err
}

func (s *EventStore) runTx(ctx context.Context, fn func(tx service.BookingTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&eventStoreTx{tx: tx, events: s.events}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isDeadlock reports whether err is InnoDB's deadlock victim error
// (1213).  The deadlock rolls the whole transaction back, so a retry
// starts from a clean slate.
func isDeadlock(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1213
}

// eventStoreTx is the transaction-bound view handed to the service.
type eventStoreTx struct {
	tx     *sql.Tx
	events *EventRepo
}

func (t *eventStoreTx) ExistsOverlap(ctx context.Context, roomID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	return t.events.ExistsOverlapTx(ctx, t.tx, roomID, start, end, excludeID)
}

func (t *eventStoreTx) InsertEvent(ctx context.Context, ev *model.Event, attendees []uint64) error {
	if err := t.events.CreateTx(ctx, t.tx, ev); err != nil {
		return err
	}
	return t.events.AttachAttendeesTx(ctx, t.tx, ev.ID, attendees)
}

func (t *eventStoreTx) GetEvent(ctx context.Context, id uint64) (*model.Event, []uint64, error) {
	return t.events.GetTx(ctx, t.tx, id)
}

func (t *eventStoreTx) UpdateEvent(ctx context.Context, ev *model.Event, attendees []uint64, replaceAttendees bool) error {
	if err := t.events.UpdateTx(ctx, t.tx, ev); err != nil {
		return err
	}
	if !replaceAttendees {
		return nil
	}
	return t.events.ReplaceAttendeesTx(ctx, t.tx, ev.ID, attendees)
}

func (t *eventStoreTx) DeleteEvent(ctx context.Context, id uint64) error {
	return t.events.DeleteTx(ctx, t.tx, id)
}
