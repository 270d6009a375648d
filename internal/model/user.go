package model

import "time"

// Role names form a small closed set.  Authorization decisions compare
// against these constants rather than scattering string literals
// through handlers.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  Handlers
// define separate response types with appropriate JSON tags; the
// repository layer uses this struct directly.  A user always belongs to
// exactly one branch, and an admin's authority is scoped to that branch.
//
// Fields:
//  ID                – primary key identifier of the user.
//  BranchID          – branch the user belongs to.
//  Name              – display name.
//  Email             – unique email address.
//  PasswordHash      – bcrypt hashed password.
//  Role              – "user" or "admin".
//  Lang              – preferred language code.
//  NotifyEmail       – whether booking emails should be sent.
//  NotifyMySchedule  – whether own-schedule reminders are wanted.
//  NotifyAllSchedule – whether branch-wide room status is wanted.
//  IsActive          – whether the account is active.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type User struct {
	ID                uint64    // users.id
	BranchID          uint64    // users.branch_id
	Name              string    // users.name
	Email             string    // users.email
	PasswordHash      string    // users.password_hash
	Role              string    // users.role
	Lang              string    // users.lang
	NotifyEmail       bool      // users.notify_email
	NotifyMySchedule  bool      // users.notify_my_schedule
	NotifyAllSchedule bool      // users.notify_all_schedule
	IsActive          bool      // users.is_active
	CreatedAt         time.Time // users.created_at
	UpdatedAt         time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Active reports whether the token may still be exchanged at the given
// instant: not revoked and not yet expired.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
