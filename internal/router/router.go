package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/meeting-room-reservation/internal/config"     // cache and rate-limit settings
	"github.com/iliyamo/meeting-room-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/meeting-room-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/meeting-room-reservation/internal/model"      // role constants
)

// Handlers bundles every handler the API mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Branches      *handler.BranchHandler
	Rooms         *handler.RoomHandler
	Events        *handler.EventHandler
	Notifications *handler.NotificationHandler
}

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// The health endpoint can be used by load balancers or monitoring
	// systems to verify that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAPI mounts the whole API surface.  Unauthenticated operations
// live under /v1/auth plus the public branch list; every other endpoint
// requires a valid access token.  Room administration additionally
// requires the admin role; the branch scoping of that authority is
// enforced in the handlers, which compare the token's branch against
// the target resource.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Unauthenticated session management.
	g := e.Group("/v1/auth", rateLimit)
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	// Refresh rotates the refresh token; refresh-access only issues a new
	// access token and leaves the refresh token untouched.
	g.POST("/refresh", h.Auth.Refresh)
	g.POST("/refresh-access", h.Auth.RefreshAccess)
	// Logout accepts either a bearer token (revoke all sessions) or a
	// refresh token in the body (revoke one session), so it stays outside
	// the JWT middleware.
	g.POST("/logout", h.Auth.Logout)

	// The branch list backs the registration form, so it is public.  It
	// changes rarely, which makes it the ideal cache candidate.
	e.GET("/v1/branches", h.Branches.List, rateLimit, cache)

	// Everything below requires a valid access token.
	auth := e.Group("/v1", rateLimit, middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))

	auth.GET("/me", h.Auth.Me)

	// Rooms: every member of a branch may browse, only its admins may
	// administer.
	auth.GET("/rooms", h.Rooms.List)
	auth.GET("/rooms/:id", h.Rooms.Get)
	admin := auth.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.POST("/rooms", h.Rooms.Create)
	admin.PUT("/rooms/:id", h.Rooms.Update)
	admin.DELETE("/rooms/:id", h.Rooms.Delete)

	// The booking list is readable without a token so shared displays
	// can poll a branch's schedule; it requires an explicit branch_id.
	e.GET("/v1/events", h.Events.List, rateLimit)

	// Bookings.
	auth.GET("/events/:id", h.Events.Get)
	auth.POST("/events", h.Events.Create)
	auth.PUT("/events/:id", h.Events.Update)
	auth.DELETE("/events/:id", h.Events.Delete)

	// Polled notification feeds.
	auth.GET("/notifications/my-schedule", h.Notifications.MySchedule)
	auth.GET("/notifications/all-rooms", h.Notifications.AllRooms)
}
