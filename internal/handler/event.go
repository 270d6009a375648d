package handler

import (
    "context"      // context with cancellation for DB calls
    "database/sql" // sentinel for missing rows
    "errors"       // error inspection for service sentinels
    "net/http"     // HTTP status codes and primitives
    "strconv"      // query parameter parsing
    "time"         // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/meeting-room-reservation/internal/repository"
    "github.com/iliyamo/meeting-room-reservation/internal/service"
    "github.com/iliyamo/meeting-room-reservation/internal/timeslot"
)

// EventHandler exposes the booking endpoints.  Writes go through the
// reservation service, which owns validation, authorization and the
// transactional overlap check; reads go straight to the repository.
type EventHandler struct {
    Reservations *service.Reservation
    Events       *repository.EventRepo
}

func NewEventHandler(svc *service.Reservation, events *repository.EventRepo) *EventHandler {
    if svc == nil || events == nil {
        panic("nil dependency passed to NewEventHandler")
    }
    return &EventHandler{Reservations: svc, Events: events}
}

// ----- DTOs -----

type createEventReq struct {
    BranchID  uint64   `json:"branch_id"`
    RoomID    uint64   `json:"room_id"`
    StartTime string   `json:"start_time"` // branch-local "YYYY-MM-DD HH:MM:SS"
    EndTime   string   `json:"end_time"`
    Attendees []uint64 `json:"attendees"`
    Memo      *string  `json:"memo"`
}

// eventPart is the single-event response shape.  Times are UTC in the
// same wall-clock layout clients submit.
type eventPart struct {
    ID          uint64   `json:"event_id"`
    BranchID    uint64   `json:"branch_id"`
    OrganizerID uint64   `json:"organizer_id"`
    RoomID      uint64   `json:"room_id"`
    StartTime   string   `json:"start_time"`
    EndTime     string   `json:"end_time"`
    Memo        *string  `json:"memo"`
    Attendees   []uint64 `json:"attendees"`
}

type updateEventReq struct {
    RoomID    uint64    `json:"room_id"`
    StartTime string    `json:"start_time"`
    EndTime   string    `json:"end_time"`
    Attendees *[]uint64 `json:"attendees"` // absent = keep, present = replace
    Memo      *string   `json:"memo"`
}

// List returns the bookings of a branch with room and participant
// names resolved.  branch_id is required; user_id optionally narrows
// the list to bookings that user organizes or attends.  The listing is
// readable without authentication so shared room displays can poll it.
func (h *EventHandler) List(c echo.Context) error {
    branchID, err := strconv.ParseUint(c.QueryParam("branch_id"), 10, 64)
    if err != nil || branchID == 0 {
        return fail(c, http.StatusBadRequest, "branch_id is required")
    }
    var filter *uint64
    if raw := c.QueryParam("user_id"); raw != "" {
        uid, err := strconv.ParseUint(raw, 10, 64)
        if err != nil || uid == 0 {
            return fail(c, http.StatusBadRequest, "invalid user_id")
        }
        filter = &uid
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    events, err := h.Events.ListByBranch(ctx, branchID, filter)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list events failed")
    }
    return ok(c, http.StatusOK, echo.Map{"events": events})
}

// Get returns one booking with its attendee IDs.  Bookings are visible
// only inside their own branch; a foreign booking reads as not found.
func (h *EventHandler) Get(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    id, err := pathID(c, "id")
    if err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid event id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    ev, attendees, err := h.Events.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusNotFound, "event not found")
        }
        return fail(c, http.StatusInternalServerError, "load event failed")
    }
    if ev.BranchID != actor.BranchID {
        return fail(c, http.StatusNotFound, "event not found")
    }
    if attendees == nil {
        attendees = []uint64{}
    }
    return ok(c, http.StatusOK, echo.Map{"event": eventPart{
        ID:          ev.ID,
        BranchID:    ev.BranchID,
        OrganizerID: ev.OrganizerID,
        RoomID:      ev.RoomID,
        StartTime:   ev.StartTime.Format(timeslot.Layout),
        EndTime:     ev.EndTime.Format(timeslot.Layout),
        Memo:        ev.Memo,
        Attendees:   attendees,
    }})
}

// Create books a room slot.
func (h *EventHandler) Create(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    var req createEventReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid body")
    }
    if req.BranchID == 0 || req.RoomID == 0 || req.StartTime == "" || req.EndTime == "" {
        return fail(c, http.StatusUnprocessableEntity, "branch_id, room_id, start_time and end_time are required")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    id, err := h.Reservations.Create(ctx, service.CreateRequest{
        BranchID:  req.BranchID,
        RoomID:    req.RoomID,
        StartTime: req.StartTime,
        EndTime:   req.EndTime,
        Attendees: req.Attendees,
        Memo:      req.Memo,
    }, actor)
    if err != nil {
        return bookingError(c, err)
    }
    return ok(c, http.StatusCreated, echo.Map{"event_id": id})
}

// Update rewrites a booking's room, interval, memo and (optionally)
// attendee set.
func (h *EventHandler) Update(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    id, err := pathID(c, "id")
    if err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid event id")
    }
    var req updateEventReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid body")
    }
    if req.RoomID == 0 || req.StartTime == "" || req.EndTime == "" {
        return fail(c, http.StatusUnprocessableEntity, "room_id, start_time and end_time are required")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    err = h.Reservations.Update(ctx, id, service.UpdateRequest{
        RoomID:    req.RoomID,
        StartTime: req.StartTime,
        EndTime:   req.EndTime,
        Attendees: req.Attendees,
        Memo:      req.Memo,
    }, actor)
    if err != nil {
        return bookingError(c, err)
    }
    return ok(c, http.StatusOK, echo.Map{"event_id": id})
}

// Delete cancels a booking, freeing its interval immediately.
func (h *EventHandler) Delete(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    id, err := pathID(c, "id")
    if err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid event id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    if err := h.Reservations.Cancel(ctx, id, actor); err != nil {
        return bookingError(c, err)
    }
    return ok(c, http.StatusOK, echo.Map{"event_id": id})
}

// bookingError translates the reservation service's error taxonomy into
// HTTP responses: malformed input is 422, a well-formed request that
// loses on business rules (misaligned slot, occupied interval) is 400,
// authorization failures are 403 and unknown references are 404.
func bookingError(c echo.Context, err error) error {
    var valErr *service.ValidationError
    var convErr *timeslot.ConversionError
    var alignErr *timeslot.AlignmentError
    switch {
    case errors.As(err, &valErr):
        return fail(c, http.StatusUnprocessableEntity, valErr.Error())
    case errors.As(err, &convErr):
        return fail(c, http.StatusUnprocessableEntity, convErr.Error())
    case errors.Is(err, timeslot.ErrInvalidRange):
        return fail(c, http.StatusUnprocessableEntity, "end_time must be after start_time")
    case errors.As(err, &alignErr):
        return fail(c, http.StatusBadRequest, alignErr.Error())
    case errors.Is(err, service.ErrSlotConflict):
        return fail(c, http.StatusBadRequest, service.ErrSlotConflict.Error())
    case errors.Is(err, service.ErrWrongBranch):
        return fail(c, http.StatusForbidden, service.ErrWrongBranch.Error())
    case errors.Is(err, service.ErrForbidden):
        return fail(c, http.StatusForbidden, "forbidden")
    case errors.Is(err, service.ErrRoomNotFound):
        return fail(c, http.StatusNotFound, "room not found")
    case errors.Is(err, service.ErrEventNotFound):
        return fail(c, http.StatusNotFound, "event not found")
    case errors.Is(err, service.ErrBranchNotFound):
        return fail(c, http.StatusNotFound, "branch not found")
    default:
        return fail(c, http.StatusInternalServerError, "internal error")
    }
}
