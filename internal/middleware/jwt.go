package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"               // HTTP status codes for responses
    "strconv"               // numeric claim conversion
    "strings"               // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, branch and role claims into the request
// context.  The provided secret must match the one used when issuing tokens.
// This middleware should wrap protected routes so that handlers can access
// authenticated user information via `c.Get("user_id")`, `c.Get("branch_id")`
// and `c.Get("role")`.  The numeric claims are stored as uint64 so handlers
// never have to deal with JSON float decoding.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // Read the Authorization header.  A valid header should start
            // with "Bearer " followed by the JWT.  If it doesn't, respond
            // with 401 Unauthorized indicating that authentication is
            // required.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "missing bearer token"})
            }
            // Remove the "Bearer " prefix to obtain the raw token string.
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Parse the token using the HS256 signing method and our secret.
            // The callback provided to jwt.Parse supplies the signing key and
            // ensures that the algorithm matches what we expect.  If the
            // signing method differs, we reject the token.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid claims"})
            }

            userID, ok := numericClaim(claims["sub"])
            if !ok || userID == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid claims"})
            }
            branchID, ok := numericClaim(claims["branch_id"])
            if !ok || branchID == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid claims"})
            }
            role, _ := claims["role"].(string)

            // Store the resolved identity in the context.  Handlers and
            // downstream middleware can access these values via c.Get().
            c.Set("user_id", userID)
            c.Set("branch_id", branchID)
            c.Set("role", role)
            return next(c)
        }
    }
}

// numericClaim converts a JWT numeric claim to uint64.  JSON decoding
// yields float64 for numbers; some issuers encode numeric strings.
func numericClaim(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case float64:
        if t < 0 {
            return 0, false
        }
        return uint64(t), true
    case uint64:
        return t, true
    case int64:
        if t < 0 {
            return 0, false
        }
        return uint64(t), true
    case string:
        n, err := strconv.ParseUint(t, 10, 64)
        if err != nil {
            return 0, false
        }
        return n, true
    }
    return 0, false
}
