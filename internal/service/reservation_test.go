package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/timeslot"
)

// memStore is an in-memory BookingStore with transactional semantics:
// the whole InTx body runs under one mutex and mutations are rolled
// back when fn fails.  It mirrors what the MySQL EventStore guarantees
// via transactions and row locks, which lets these tests exercise the
// orchestration and race behavior without a database.
type memStore struct {
	mu        sync.Mutex
	nextID    uint64
	events    map[uint64]*model.Event
	attendees map[uint64][]uint64
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    1,
		events:    make(map[uint64]*model.Event),
		attendees: make(map[uint64][]uint64),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx BookingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapEvents := make(map[uint64]*model.Event, len(m.events))
	for id, ev := range m.events {
		cp := *ev
		snapEvents[id] = &cp
	}
	snapAttendees := make(map[uint64][]uint64, len(m.attendees))
	for id, ids := range m.attendees {
		snapAttendees[id] = append([]uint64(nil), ids...)
	}
	snapNext := m.nextID
	if err := fn((*memTx)(m)); err != nil {
		m.events = snapEvents
		m.attendees = snapAttendees
		m.nextID = snapNext
		return err
	}
	return nil
}

type memTx memStore

func (t *memTx) ExistsOverlap(ctx context.Context, roomID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	for id, ev := range t.events {
		if ev.RoomID != roomID || id == excludeID {
			continue
		}
		if timeslot.Overlaps(start, end, ev.StartTime, ev.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertEvent(ctx context.Context, ev *model.Event, attendees []uint64) error {
	ev.ID = t.nextID
	t.nextID++
	cp := *ev
	t.events[ev.ID] = &cp
	t.attendees[ev.ID] = append([]uint64(nil), attendees...)
	return nil
}

func (t *memTx) GetEvent(ctx context.Context, id uint64) (*model.Event, []uint64, error) {
	ev, ok := t.events[id]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	cp := *ev
	return &cp, append([]uint64(nil), t.attendees[id]...), nil
}

func (t *memTx) UpdateEvent(ctx context.Context, ev *model.Event, attendees []uint64, replaceAttendees bool) error {
	if _, ok := t.events[ev.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *ev
	t.events[ev.ID] = &cp
	if replaceAttendees {
		t.attendees[ev.ID] = append([]uint64(nil), attendees...)
	}
	return nil
}

func (t *memTx) DeleteEvent(ctx context.Context, id uint64) error {
	delete(t.events, id)
	delete(t.attendees, id)
	return nil
}

type fakeRooms map[uint64]*model.Room

func (f fakeRooms) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	room, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *room
	return &cp, nil
}

type fakeBranches map[uint64]string

func (f fakeBranches) Timezone(ctx context.Context, id uint64) (string, error) {
	tz, ok := f[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return tz, nil
}

type fakeUsers map[uint64]model.User

func (f fakeUsers) GetByIDs(ctx context.Context, ids []uint64) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (f fakeUsers) ExistAll(ctx context.Context, branchID uint64, ids []uint64) (bool, error) {
	for _, id := range ids {
		u, ok := f[id]
		if !ok || u.BranchID != branchID {
			return false, nil
		}
	}
	return true, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	fail   bool
}

func (p *capturePublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) last(t *testing.T) queue.BookingEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("no event published")
	}
	return p.events[len(p.events)-1]
}

// fixture wires a Tokyo branch with one room and three users: the
// organizer (1), a plain colleague (2) and a branch admin (3).  A
// second branch (2, Berlin) holds user 4 and admin 5.
type fixture struct {
	store *memStore
	pub   *capturePublisher
	svc   *Reservation
}

func newFixture() *fixture {
	store := newMemStore()
	pub := &capturePublisher{}
	rooms := fakeRooms{
		1: {ID: 1, BranchID: 1, Name: "Meeting Room A", Capacity: 8},
		2: {ID: 2, BranchID: 1, Name: "Meeting Room B", Capacity: 4},
		9: {ID: 9, BranchID: 2, Name: "Berlin Lounge", Capacity: 12},
	}
	branches := fakeBranches{1: "Asia/Tokyo", 2: "Europe/Berlin"}
	users := fakeUsers{
		1: {ID: 1, BranchID: 1, Name: "Sato", Email: "sato@example.com", Role: model.RoleUser, NotifyEmail: true},
		2: {ID: 2, BranchID: 1, Name: "Tanaka", Email: "tanaka@example.com", Role: model.RoleUser, NotifyEmail: true},
		3: {ID: 3, BranchID: 1, Name: "Suzuki", Email: "suzuki@example.com", Role: model.RoleAdmin, NotifyEmail: false},
		4: {ID: 4, BranchID: 2, Name: "Weber", Email: "weber@example.com", Role: model.RoleUser, NotifyEmail: true},
		5: {ID: 5, BranchID: 2, Name: "Braun", Email: "braun@example.com", Role: model.RoleAdmin, NotifyEmail: true},
	}
	return &fixture{store: store, pub: pub, svc: NewReservation(store, rooms, branches, users, pub)}
}

var (
	organizer   = Actor{UserID: 1, BranchID: 1, Role: model.RoleUser}
	colleague   = Actor{UserID: 2, BranchID: 1, Role: model.RoleUser}
	branchAdmin = Actor{UserID: 3, BranchID: 1, Role: model.RoleAdmin}
	otherUser   = Actor{UserID: 4, BranchID: 2, Role: model.RoleUser}
	otherAdmin  = Actor{UserID: 5, BranchID: 2, Role: model.RoleAdmin}
)

func tokyoCreate(start, end string) CreateRequest {
	return CreateRequest{BranchID: 1, RoomID: 1, StartTime: start, EndTime: end}
}

func TestCreateStoresUTCInstants(t *testing.T) {
	f := newFixture()
	id, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ev := f.store.events[id]
	if ev == nil {
		t.Fatal("event not stored")
	}
	wantStart := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	if !ev.StartTime.Equal(wantStart) || !ev.EndTime.Equal(wantEnd) {
		t.Errorf("stored [%v, %v), want [%v, %v)", ev.StartTime, ev.EndTime, wantStart, wantEnd)
	}
	msg := f.pub.last(t)
	if msg.Type != queue.TypeBookingCreated {
		t.Errorf("event type = %q, want %q", msg.Type, queue.TypeBookingCreated)
	}
	if msg.RoomName != "Meeting Room A" || msg.OrganizerName != "Sato" {
		t.Errorf("payload = %q/%q, want room/organizer names resolved", msg.RoomName, msg.OrganizerName)
	}
}

func TestCreateOverlapRejected(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:30:00", "2025-03-10 11:30:00"), colleague)
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
	if len(f.store.events) != 1 {
		t.Errorf("store has %d events, want 1", len(f.store.events))
	}
}

func TestCreateAdjacentAllowed(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 11:00:00", "2025-03-10 12:00:00"), colleague); err != nil {
		t.Fatalf("adjacent Create: %v", err)
	}
	// A different room is never in conflict either.
	req := tokyoCreate("2025-03-10 10:30:00", "2025-03-10 11:30:00")
	req.RoomID = 2
	if _, err := f.svc.Create(context.Background(), req, colleague); err != nil {
		t.Fatalf("other-room Create: %v", err)
	}
}

func TestCreateMisalignedStart(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:07:00", "2025-03-10 11:00:00"), organizer)
	var alignErr *timeslot.AlignmentError
	if !errors.As(err, &alignErr) {
		t.Fatalf("err = %v, want AlignmentError", err)
	}
	if alignErr.Endpoint != "start_time" {
		t.Errorf("endpoint = %q, want start_time", alignErr.Endpoint)
	}
	if len(f.store.events) != 0 {
		t.Error("misaligned booking was stored")
	}
}

func TestCreateInvalidRange(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 11:00:00", "2025-03-10 11:00:00"), organizer)
	if !errors.Is(err, timeslot.ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestCreateWrongBranchActor(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), otherUser)
	if !errors.Is(err, ErrWrongBranch) {
		t.Fatalf("err = %v, want ErrWrongBranch", err)
	}
	// Branch-scoped admins get no cross-branch exception.
	_, err = f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), otherAdmin)
	if !errors.Is(err, ErrWrongBranch) {
		t.Fatalf("admin err = %v, want ErrWrongBranch", err)
	}
}

func TestCreateUnknownRoom(t *testing.T) {
	f := newFixture()
	req := tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00")
	req.RoomID = 77
	if _, err := f.svc.Create(context.Background(), req, organizer); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestCreateMemoTooLong(t *testing.T) {
	f := newFixture()
	memo := ""
	for i := 0; i < 151; i++ {
		memo += "x"
	}
	req := tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00")
	req.Memo = &memo
	_, err := f.svc.Create(context.Background(), req, organizer)
	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "memo" {
		t.Fatalf("err = %v, want memo ValidationError", err)
	}
}

func TestCreateRejectsForeignAttendee(t *testing.T) {
	f := newFixture()
	req := tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00")
	req.Attendees = []uint64{2, 4} // user 4 is in branch 2
	_, err := f.svc.Create(context.Background(), req, organizer)
	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "attendees" {
		t.Fatalf("err = %v, want attendees ValidationError", err)
	}
}

func TestCreateDeduplicatesAttendees(t *testing.T) {
	f := newFixture()
	req := tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00")
	req.Attendees = []uint64{2, 2, 3, 0, 2}
	id, err := f.svc.Create(context.Background(), req, organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got := f.store.attendees[id]
	want := []uint64{2, 3}
	if len(got) != len(want) {
		t.Fatalf("attendees = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attendees = %v, want %v", got, want)
		}
	}
}

func TestCreateSurvivesPublisherFailure(t *testing.T) {
	f := newFixture()
	f.pub.fail = true
	id, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.store.events[id] == nil {
		t.Error("booking lost when notification failed")
	}
}

func TestUpdateSelfExclusion(t *testing.T) {
	f := newFixture()
	id, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Rewriting the booking to its own slot must not conflict with itself.
	err = f.svc.Update(context.Background(), id, UpdateRequest{
		RoomID: 1, StartTime: "2025-03-10 10:00:00", EndTime: "2025-03-10 11:00:00",
	}, organizer)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if msg := f.pub.last(t); msg.Type != queue.TypeBookingUpdated {
		t.Errorf("event type = %q, want %q", msg.Type, queue.TypeBookingUpdated)
	}
}

func TestUpdateConflictWithOtherBooking(t *testing.T) {
	f := newFixture()
	id, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 11:00:00", "2025-03-10 12:00:00"), colleague); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	err = f.svc.Update(context.Background(), id, UpdateRequest{
		RoomID: 1, StartTime: "2025-03-10 10:30:00", EndTime: "2025-03-10 11:30:00",
	}, organizer)
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
	// The booking must be unchanged after the rolled-back update.
	ev := f.store.events[id]
	if want := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC); !ev.StartTime.Equal(want) {
		t.Errorf("start mutated to %v after failed update", ev.StartTime)
	}
}

func TestUpdatePermissionGate(t *testing.T) {
	f := newFixture()
	id, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	req := UpdateRequest{RoomID: 1, StartTime: "2025-03-10 13:00:00", EndTime: "2025-03-10 14:00:00"}

	// A non-organizer, non-admin colleague is rejected.
	if err := f.svc.Update(context.Background(), id, req, colleague); !errors.Is(err, ErrForbidden) {
		t.Fatalf("colleague err = %v, want ErrForbidden", err)
	}
	ev := f.store.events[id]
	if want := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC); !ev.StartTime.Equal(want) {
		t.Errorf("booking changed by forbidden update")
	}
	// An admin of another branch is rejected too.
	if err := f.svc.Update(context.Background(), id, req, otherAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign admin err = %v, want ErrForbidden", err)
	}
	// The branch's own admin may update.
	if err := f.svc.Update(context.Background(), id, req, branchAdmin); err != nil {
		t.Fatalf("branch admin Update: %v", err)
	}
}

func TestUpdateAttendeeReplacement(t *testing.T) {
	f := newFixture()
	req := tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00")
	req.Attendees = []uint64{2, 3}
	id, err := f.svc.Create(context.Background(), req, organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Omitting attendees keeps the current set.
	err = f.svc.Update(context.Background(), id, UpdateRequest{
		RoomID: 1, StartTime: "2025-03-10 10:00:00", EndTime: "2025-03-10 11:00:00",
	}, organizer)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := f.store.attendees[id]; len(got) != 2 {
		t.Fatalf("attendees = %v, want kept set of 2", got)
	}
	// Providing a list fully replaces, never merges.
	newSet := []uint64{3}
	err = f.svc.Update(context.Background(), id, UpdateRequest{
		RoomID: 1, StartTime: "2025-03-10 10:00:00", EndTime: "2025-03-10 11:00:00",
		Attendees: &newSet,
	}, organizer)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := f.store.attendees[id]; len(got) != 1 || got[0] != 3 {
		t.Fatalf("attendees = %v, want [3]", got)
	}
	// An empty list clears the set.
	empty := []uint64{}
	err = f.svc.Update(context.Background(), id, UpdateRequest{
		RoomID: 1, StartTime: "2025-03-10 10:00:00", EndTime: "2025-03-10 11:00:00",
		Attendees: &empty,
	}, organizer)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := f.store.attendees[id]; len(got) != 0 {
		t.Fatalf("attendees = %v, want empty", got)
	}
}

func TestUpdateUnknownEvent(t *testing.T) {
	f := newFixture()
	err := f.svc.Update(context.Background(), 404, UpdateRequest{
		RoomID: 1, StartTime: "2025-03-10 10:00:00", EndTime: "2025-03-10 11:00:00",
	}, organizer)
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestCancelFreesInterval(t *testing.T) {
	f := newFixture()
	id, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Cancel(context.Background(), id, organizer); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// The cancellation event is built from a snapshot taken before the
	// delete, so it still names the room and interval.
	msg := f.pub.last(t)
	if msg.Type != queue.TypeBookingCancelled {
		t.Errorf("event type = %q, want %q", msg.Type, queue.TypeBookingCancelled)
	}
	if msg.EventID != id || msg.RoomName != "Meeting Room A" {
		t.Errorf("snapshot payload incomplete: %+v", msg)
	}
	// The interval is free again.
	if _, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), colleague); err != nil {
		t.Fatalf("re-Create after cancel: %v", err)
	}
}

func TestCancelPermissionGate(t *testing.T) {
	f := newFixture()
	id, err := f.svc.Create(context.Background(), tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00"), organizer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Cancel(context.Background(), id, colleague); !errors.Is(err, ErrForbidden) {
		t.Fatalf("colleague err = %v, want ErrForbidden", err)
	}
	if f.store.events[id] == nil {
		t.Fatal("booking removed by forbidden cancel")
	}
	if err := f.svc.Cancel(context.Background(), id, branchAdmin); err != nil {
		t.Fatalf("branch admin Cancel: %v", err)
	}
}

// Two concurrent creates for overlapping ranges on the same room:
// exactly one must commit and one must see the conflict.  The store's
// transaction scope is what makes the check-then-insert atomic.
func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture()
		reqA := tokyoCreate("2025-03-10 10:00:00", "2025-03-10 11:00:00")
		reqB := tokyoCreate("2025-03-10 10:30:00", "2025-03-10 11:30:00")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = f.svc.Create(context.Background(), reqA, organizer)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = f.svc.Create(context.Background(), reqB, colleague)
		}()
		wg.Wait()

		var ok, conflict int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotConflict):
				conflict++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || conflict != 1 {
			t.Fatalf("run %d: %d commits and %d conflicts, want exactly one of each", i, ok, conflict)
		}
		if len(f.store.events) != 1 {
			t.Fatalf("run %d: store holds %d events, want 1", i, len(f.store.events))
		}
	}
}
