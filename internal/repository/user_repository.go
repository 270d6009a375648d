package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/utils"
)

// UserRepo provides access to the `users` table.  The reservation core
// only needs identity, branch membership, role and notification flags;
// everything else about account management lives outside this service.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = `id, branch_id, name, email, password_hash, role, lang,
    notify_email, notify_my_schedule, notify_all_schedule, is_active, created_at, updated_at`

// Create inserts a user and returns its ID.  Self-registration always
// produces the "user" role; admins are promoted out of band.
func (r *UserRepo) Create(ctx context.Context, branchID uint64, name, email, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (branch_id, name, email, password_hash, role) VALUES (?,?,?,?,?)",
		branchID, name, email, hash, model.RoleUser)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg interface{}) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.BranchID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Lang,
		&u.NotifyEmail, &u.NotifyMySchedule, &u.NotifyAllSchedule, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByIDs fetches several users at once.  The reservation service uses
// it to resolve the organizer and attendees of a booking into
// notification recipients.  Missing IDs are silently skipped so a
// stale attendee reference never fails a notification.
func (r *UserRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	q := "SELECT " + userColumns + " FROM users WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]model.User, 0, len(ids))
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.BranchID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Lang,
			&u.NotifyEmail, &u.NotifyMySchedule, &u.NotifyAllSchedule, &u.IsActive,
			&u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// ExistAll reports whether every given user ID exists and belongs to
// the given branch.  The create/update validators use it to reject
// attendee lists referencing unknown or foreign-branch users.
func (r *UserRepo) ExistAll(ctx context.Context, branchID uint64, ids []uint64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, branchID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := "SELECT COUNT(*) FROM users WHERE branch_id = ? AND id IN (" + strings.Join(placeholders, ",") + ")"
	var n int
	if err := r.DB.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == len(ids), nil
}
