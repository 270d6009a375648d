package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "strings"
    "time"
    "unicode/utf8"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/meeting-room-reservation/internal/model"
    "github.com/iliyamo/meeting-room-reservation/internal/repository"
)

// Room name and facility text limits, matching the column widths.
const (
    maxRoomNameLen = 20
    maxFacilityLen = 150
)

// RoomHandler exposes room listing for everyone in a branch and room
// administration for that branch's admins.
type RoomHandler struct {
    Rooms  *repository.RoomRepo
    Events *repository.EventRepo
}

func NewRoomHandler(rooms *repository.RoomRepo, events *repository.EventRepo) *RoomHandler {
    if rooms == nil || events == nil {
        panic("nil repository passed to NewRoomHandler")
    }
    return &RoomHandler{Rooms: rooms, Events: events}
}

type roomReq struct {
    Name     string  `json:"room_name"`
    Capacity uint32  `json:"capacity"`
    Facility *string `json:"facility"`
}

type roomPart struct {
    ID       uint64  `json:"room_id"`
    BranchID uint64  `json:"branch_id"`
    Name     string  `json:"room_name"`
    Capacity uint32  `json:"capacity"`
    Facility *string `json:"facility"`
}

func roomPartFrom(room *model.Room) roomPart {
    return roomPart{
        ID:       room.ID,
        BranchID: room.BranchID,
        Name:     room.Name,
        Capacity: room.Capacity,
        Facility: room.Facility,
    }
}

func (r roomReq) validate() string {
    name := strings.TrimSpace(r.Name)
    if name == "" {
        return "room_name is required"
    }
    if utf8.RuneCountInString(name) > maxRoomNameLen {
        return "room_name must be at most 20 characters"
    }
    if r.Capacity == 0 {
        return "capacity must be positive"
    }
    if r.Facility != nil && utf8.RuneCountInString(*r.Facility) > maxFacilityLen {
        return "facility must be at most 150 characters"
    }
    return ""
}

// List returns the rooms of the caller's branch.
func (h *RoomHandler) List(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    rooms, err := h.Rooms.ListByBranch(ctx, actor.BranchID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rooms failed")
    }
    parts := make([]roomPart, 0, len(rooms))
    for i := range rooms {
        parts = append(parts, roomPartFrom(&rooms[i]))
    }
    return ok(c, http.StatusOK, echo.Map{"rooms": parts})
}

// Get returns one room.  Rooms of other branches read as not found.
func (h *RoomHandler) Get(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    id, err := pathID(c, "id")
    if err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid room id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    room, err := h.Rooms.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusNotFound, "room not found")
        }
        return fail(c, http.StatusInternalServerError, "load room failed")
    }
    if room.BranchID != actor.BranchID {
        return fail(c, http.StatusNotFound, "room not found")
    }
    return ok(c, http.StatusOK, echo.Map{"room": roomPartFrom(room)})
}

// Create adds a room to the admin's own branch.
func (h *RoomHandler) Create(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    var req roomReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid body")
    }
    if msg := req.validate(); msg != "" {
        return fail(c, http.StatusUnprocessableEntity, msg)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    room := &model.Room{
        BranchID: actor.BranchID,
        Name:     strings.TrimSpace(req.Name),
        Capacity: req.Capacity,
        Facility: req.Facility,
    }
    if err := h.Rooms.Create(ctx, room); err != nil {
        return fail(c, http.StatusInternalServerError, "create room failed")
    }
    return ok(c, http.StatusCreated, echo.Map{"room": roomPartFrom(room)})
}

// Update renames or resizes a room of the admin's branch.
func (h *RoomHandler) Update(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    id, err := pathID(c, "id")
    if err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid room id")
    }
    var req roomReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid body")
    }
    if msg := req.validate(); msg != "" {
        return fail(c, http.StatusUnprocessableEntity, msg)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    room, err := h.Rooms.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusNotFound, "room not found")
        }
        return fail(c, http.StatusInternalServerError, "load room failed")
    }
    if room.BranchID != actor.BranchID {
        return fail(c, http.StatusForbidden, "room belongs to a different branch")
    }
    room.Name = strings.TrimSpace(req.Name)
    room.Capacity = req.Capacity
    room.Facility = req.Facility
    if err := h.Rooms.Update(ctx, room); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusNotFound, "room not found")
        }
        return fail(c, http.StatusInternalServerError, "update room failed")
    }
    return ok(c, http.StatusOK, echo.Map{"room": roomPartFrom(room)})
}

// Delete removes a room that has no bookings.  A room with bookings is
// never deleted so booking history cannot be destroyed by a cascade.
func (h *RoomHandler) Delete(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    id, err := pathID(c, "id")
    if err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid room id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    room, err := h.Rooms.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusNotFound, "room not found")
        }
        return fail(c, http.StatusInternalServerError, "load room failed")
    }
    if room.BranchID != actor.BranchID {
        return fail(c, http.StatusForbidden, "room belongs to a different branch")
    }
    n, err := h.Events.CountByRoom(ctx, id)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "check room usage failed")
    }
    if n > 0 {
        return fail(c, http.StatusBadRequest, "room still has bookings")
    }
    if err := h.Rooms.Delete(ctx, id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusNotFound, "room not found")
        }
        if errors.Is(err, repository.ErrConflict) {
            return fail(c, http.StatusBadRequest, "room still has bookings")
        }
        return fail(c, http.StatusInternalServerError, "delete room failed")
    }
    return ok(c, http.StatusOK, echo.Map{"room_id": id})
}
