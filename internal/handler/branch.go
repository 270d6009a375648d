package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/meeting-room-reservation/internal/repository"
)

// BranchHandler serves the branch list.  Branches are reference data
// seeded by operations; clients use the list to offer a branch picker
// at registration.
type BranchHandler struct {
    Branches *repository.BranchRepo
}

func NewBranchHandler(branches *repository.BranchRepo) *BranchHandler {
    if branches == nil {
        panic("nil repository passed to NewBranchHandler")
    }
    return &BranchHandler{Branches: branches}
}

type branchPart struct {
    ID       uint64 `json:"branch_id"`
    Name     string `json:"branch_name"`
    Lang     string `json:"lang"`
    Timezone string `json:"timezone"`
}

// List returns all branches.
func (h *BranchHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    branches, err := h.Branches.List(ctx)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list branches failed")
    }
    parts := make([]branchPart, 0, len(branches))
    for _, b := range branches {
        parts = append(parts, branchPart{ID: b.ID, Name: b.Name, Lang: b.Lang, Timezone: b.Timezone})
    }
    return ok(c, http.StatusOK, echo.Map{"branches": parts})
}
