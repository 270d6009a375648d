package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/meeting-room-reservation/internal/repository"
    "github.com/iliyamo/meeting-room-reservation/internal/timeslot"
)

// Reminders fire for bookings starting five to six minutes from now.
// Clients poll once a minute, so the one-minute window yields exactly
// one reminder per booking.
const (
    reminderLead   = 5 * time.Minute
    reminderWindow = time.Minute
)

// NotificationHandler serves the polling endpoints behind the in-app
// alerts: the caller's imminent bookings and the branch-wide room
// status.  Both honor the user's notification preference flags.
type NotificationHandler struct {
    Events   *repository.EventRepo
    Users    *repository.UserRepo
    Branches *repository.BranchRepo
    Now      func() time.Time
}

func NewNotificationHandler(events *repository.EventRepo, users *repository.UserRepo, branches *repository.BranchRepo) *NotificationHandler {
    if events == nil || users == nil || branches == nil {
        panic("nil repository passed to NewNotificationHandler")
    }
    return &NotificationHandler{
        Events:   events,
        Users:    users,
        Branches: branches,
        Now:      func() time.Time { return time.Now().UTC() },
    }
}

type notificationPart struct {
    EventID       uint64 `json:"event_id"`
    RoomName      string `json:"room_name"`
    OrganizerName string `json:"organizer_name"`
    StartTime     string `json:"start_time"` // branch-local wall clock
    EndTime       string `json:"end_time"`
}

// MySchedule returns the caller's bookings starting five to six minutes
// from now.  Users who disabled the reminder get an empty list.
func (h *NotificationHandler) MySchedule(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    user, err := h.Users.GetByID(ctx, actor.UserID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusUnauthorized, "unauthorized")
        }
        return fail(c, http.StatusInternalServerError, "load user failed")
    }
    if !user.NotifyMySchedule {
        return ok(c, http.StatusOK, echo.Map{"events": []notificationPart{}})
    }

    from := h.Now().Add(reminderLead)
    events, err := h.Events.ListStartingBetween(ctx, actor.BranchID, actor.UserID, from, from.Add(reminderWindow))
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list schedule failed")
    }
    parts, err := h.localize(ctx, actor.BranchID, events)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "render schedule failed")
    }
    return ok(c, http.StatusOK, echo.Map{"events": parts})
}

// AllRooms returns the bookings currently in progress across the
// caller's branch, one entry per occupied room.  Users who disabled the
// branch-wide view get an empty list.
func (h *NotificationHandler) AllRooms(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    user, err := h.Users.GetByID(ctx, actor.UserID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusUnauthorized, "unauthorized")
        }
        return fail(c, http.StatusInternalServerError, "load user failed")
    }
    if !user.NotifyAllSchedule {
        return ok(c, http.StatusOK, echo.Map{"events": []notificationPart{}})
    }

    events, err := h.Events.ListInProgress(ctx, actor.BranchID, h.Now())
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rooms failed")
    }
    parts, err := h.localize(ctx, actor.BranchID, events)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "render rooms failed")
    }
    return ok(c, http.StatusOK, echo.Map{"events": parts})
}

// localize renders the UTC intervals in the branch's wall clock, the
// same representation clients submit.
func (h *NotificationHandler) localize(ctx context.Context, branchID uint64, events []repository.UpcomingEvent) ([]notificationPart, error) {
    tz, err := h.Branches.Timezone(ctx, branchID)
    if err != nil {
        return nil, err
    }
    loc, err := timeslot.LoadZone(tz)
    if err != nil {
        return nil, err
    }
    parts := make([]notificationPart, 0, len(events))
    for _, ev := range events {
        parts = append(parts, notificationPart{
            EventID:       ev.ID,
            RoomName:      ev.RoomName,
            OrganizerName: ev.OrganizerName,
            StartTime:     ev.StartTime.In(loc).Format(timeslot.Layout),
            EndTime:       ev.EndTime.In(loc).Format(timeslot.Layout),
        })
    }
    return parts, nil
}
