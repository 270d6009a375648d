package handler // handler defines http handlers

import (
    "errors"  // errors provides the sentinel used by actorFrom
    "strconv" // strconv converts path params to numeric IDs

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/meeting-room-reservation/internal/service"
)

// Every JSON response carries a "success" flag so clients can branch on
// the outcome without inspecting status codes.  ok and fail build the
// two envelope shapes.

func ok(c echo.Context, status int, payload echo.Map) error {
    body := echo.Map{"success": true}
    for k, v := range payload {
        body[k] = v
    }
    return c.JSON(status, body)
}

func fail(c echo.Context, status int, msg string) error {
    return c.JSON(status, echo.Map{"success": false, "error": msg})
}

// actorFrom builds the acting principal from the identity that JWTAuth
// stored in the context.
func actorFrom(c echo.Context) (service.Actor, error) {
    uid, ok1 := c.Get("user_id").(uint64)
    bid, ok2 := c.Get("branch_id").(uint64)
    role, ok3 := c.Get("role").(string)
    if !ok1 || !ok2 || !ok3 || uid == 0 || bid == 0 {
        return service.Actor{}, errors.New("incomplete identity in context")
    }
    return service.Actor{UserID: uid, BranchID: bid, Role: role}, nil
}

// pathID parses a numeric :id path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    return strconv.ParseUint(c.Param(name), 10, 64)
}
