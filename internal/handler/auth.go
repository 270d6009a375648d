package handler

import (
    "context"              // provides context with cancellation for DB calls
    "database/sql"         // SQL database interactions
    "net/http"             // HTTP status codes and primitives
    "strings"              // string manipulation utilities
    "time"                 // timeouts for DB calls

    "strconv"              // string-to-int conversion

    "github.com/golang-jwt/jwt/v5" // JSON Web Token library for parsing access tokens
    "github.com/labstack/echo/v4"  // Echo framework for HTTP routing

    "github.com/iliyamo/meeting-room-reservation/internal/config"     // app configuration
    "github.com/iliyamo/meeting-room-reservation/internal/model"      // role constants
    "github.com/iliyamo/meeting-room-reservation/internal/repository" // DB repositories
    "github.com/iliyamo/meeting-room-reservation/internal/utils"      // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg      config.Config
    Users    *repository.UserRepo
    Branches *repository.BranchRepo
    Tokens   *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, b *repository.BranchRepo, t *repository.TokenRepo) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Branches: b, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
    BranchID uint64 `json:"branch_id"`
    Name     string `json:"name"`
    Email    string `json:"email"`
    Password string `json:"password"`
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID       uint64 `json:"id"`
    BranchID uint64 `json:"branch_id"`
    Name     string `json:"name"`
    Email    string `json:"email"`
    Role     string `json:"role"`
}
type authResp struct {
    Success bool      `json:"success"`
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// Register: create a user in an existing branch and return tokens
// immediately.  Self-registration always yields the "user" role; admins
// are promoted out of band.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    req.Name = strings.TrimSpace(req.Name)
    if req.BranchID == 0 || req.Name == "" || req.Email == "" || req.Password == "" {
        return fail(c, http.StatusUnprocessableEntity, "branch_id, name, email and password are required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Branches.GetByID(ctx, req.BranchID); err != nil {
        if err == sql.ErrNoRows {
            return fail(c, http.StatusUnprocessableEntity, "unknown branch")
        }
        return fail(c, http.StatusInternalServerError, "load branch failed")
    }

    uid, err := h.Users.Create(ctx, req.BranchID, req.Name, req.Email, req.Password, h.Cfg.BcryptCost)
    if err != nil {
        if err == repository.ErrEmailExists {
            return fail(c, http.StatusConflict, "email already exists")
        }
        return fail(c, http.StatusInternalServerError, "create user failed")
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, req.BranchID, model.RoleUser, h.Cfg.AccessTTLMin)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "issue access failed")
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "issue refresh failed")
    }
    if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return fail(c, http.StatusInternalServerError, "save refresh failed")
    }

    return c.JSON(http.StatusCreated, authResp{
        Success: true,
        User:    userPart{ID: uid, BranchID: req.BranchID, Name: req.Name, Email: req.Email, Role: model.RoleUser},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
    })
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusUnprocessableEntity, "invalid body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return fail(c, http.StatusUnprocessableEntity, "email and password are required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if err == sql.ErrNoRows {
            return fail(c, http.StatusUnauthorized, "invalid credentials")
        }
        return fail(c, http.StatusInternalServerError, "query failed")
    }
    if !u.IsActive {
        return fail(c, http.StatusUnauthorized, "invalid credentials")
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return fail(c, http.StatusUnauthorized, "invalid credentials")
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.BranchID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "issue access failed")
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "issue refresh failed")
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return fail(c, http.StatusInternalServerError, "save refresh failed")
    }

    return c.JSON(http.StatusOK, authResp{
        Success: true,
        User:    userPart{ID: u.ID, BranchID: u.BranchID, Name: u.Name, Email: u.Email, Role: u.Role},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
    })
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return fail(c, http.StatusUnprocessableEntity, "refresh_token required")
    }
    raw := strings.TrimSpace(req.RefreshToken)
    hash := utils.HashRefreshRaw(raw)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "invalid refresh")
    }
    _ = h.Tokens.RevokeByHash(ctx, hash)

    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "load user failed")
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.BranchID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "issue access failed")
    }
    newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "issue refresh failed")
    }
    if err := h.Tokens.StoreRefresh(ctx, userID, utils.HashRefreshRaw(newRef.Raw), newRef.Exp); err != nil {
        return fail(c, http.StatusInternalServerError, "save refresh failed")
    }

    return c.JSON(http.StatusOK, authResp{
        Success: true,
        User:    userPart{ID: userID, BranchID: u.BranchID, Name: u.Name, Email: u.Email, Role: u.Role},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
    })
}

// RefreshAccess: validate a refresh token and return a new access token
// WITHOUT rotating the refresh token.  This endpoint can be used to
// obtain a fresh short-lived access token while reusing an existing
// refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return fail(c, http.StatusUnprocessableEntity, "refresh_token required")
    }
    raw := strings.TrimSpace(req.RefreshToken)
    hash := utils.HashRefreshRaw(raw)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        // Invalid, expired or revoked refresh token
        return fail(c, http.StatusUnauthorized, "invalid refresh")
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if err == sql.ErrNoRows {
            return fail(c, http.StatusUnauthorized, "invalid refresh")
        }
        return fail(c, http.StatusInternalServerError, "load user failed")
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.BranchID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "issue access failed")
    }
    // Only return a new access token; do not rotate the refresh token
    return ok(c, http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes refresh tokens.  It supports two modes: revoking a
// specific refresh token passed in the body, or revoking all tokens of
// the user identified by a valid bearer token when no refresh token is
// present.  Parsing the Authorization header here allows this endpoint
// to be called without the JWT middleware.
func (h *AuthHandler) Logout(c echo.Context) error {
    var uid uint64
    hasBearer := false
    authHeader := c.Request().Header.Get("Authorization")
    if strings.HasPrefix(authHeader, "Bearer ") {
        rawToken := strings.TrimPrefix(authHeader, "Bearer ")
        tok, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
            if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                return nil, echo.ErrUnauthorized
            }
            return []byte(h.Cfg.JWTSecret), nil
        })
        if err == nil && tok.Valid {
            if claims, ok := tok.Claims.(jwt.MapClaims); ok {
                switch subVal := claims["sub"].(type) {
                case float64:
                    uid = uint64(subVal)
                    hasBearer = true
                case string:
                    if parsed, err := strconv.ParseUint(subVal, 10, 64); err == nil {
                        uid = parsed
                        hasBearer = true
                    }
                }
            }
        }
    }

    // The body may carry a refresh token; invalid JSON simply leaves it
    // empty because the bearer token alone can suffice.
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    // Bearer without refresh token: log the user out of all sessions.
    if hasBearer && refreshToken == "" {
        if uid == 0 {
            return fail(c, http.StatusUnauthorized, "unauthorized")
        }
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return fail(c, http.StatusInternalServerError, "logout failed")
        }
        return c.NoContent(http.StatusNoContent)
    }
    // A refresh token always suffices to end its own session.
    if refreshToken != "" {
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return fail(c, http.StatusUnauthorized, "invalid refresh token")
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return fail(c, http.StatusInternalServerError, "logout failed")
        }
        return c.NoContent(http.StatusNoContent)
    }
    return fail(c, http.StatusBadRequest, "provide Authorization header or refresh_token")
}

// Me: simple protected endpoint returning the caller's identity and
// notification preferences.
func (h *AuthHandler) Me(c echo.Context) error {
    actor, err := actorFrom(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, actor.UserID)
    if err != nil {
        if err == sql.ErrNoRows {
            return fail(c, http.StatusUnauthorized, "unauthorized")
        }
        return fail(c, http.StatusInternalServerError, "load user failed")
    }
    return ok(c, http.StatusOK, echo.Map{
        "user": userPart{ID: u.ID, BranchID: u.BranchID, Name: u.Name, Email: u.Email, Role: u.Role},
        "preferences": echo.Map{
            "lang":                u.Lang,
            "notify_email":        u.NotifyEmail,
            "notify_my_schedule":  u.NotifyMySchedule,
            "notify_all_schedule": u.NotifyAllSchedule,
        },
    })
}
