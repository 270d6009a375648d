package middleware

// identity.go defines helper functions shared across middleware files.
// Currently it provides a userID extraction function that reads the
// identity injected by JWTAuth from the Echo context.  When no user is
// authenticated, "anon" is returned so rate-limit keys still partition
// unauthenticated traffic by IP.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// userID extracts the authenticated user identifier from the context as
// a string suitable for cache and rate-limit keys.
func userID(c echo.Context) string {
    switch v := c.Get("user_id").(type) {
    case uint64:
        return strconv.FormatUint(v, 10)
    case string:
        if v != "" {
            return v
        }
    }
    return "anon"
}
