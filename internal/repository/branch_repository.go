package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// BranchRepo manages read access to branches.  Branches are immutable
// reference data seeded by operations, so only lookup and listing are
// exposed.
type BranchRepo struct {
	db *sql.DB
}

// NewBranchRepo constructs a BranchRepo with the given DB handle.
func NewBranchRepo(db *sql.DB) *BranchRepo { return &BranchRepo{db: db} }

// GetByID retrieves a branch by its ID.  It returns sql.ErrNoRows when
// no branch matches.
func (r *BranchRepo) GetByID(ctx context.Context, id uint64) (*model.Branch, error) {
	const q = `SELECT branch_id, branch_name, lang, timezone, created_at, updated_at
               FROM branches WHERE branch_id = ?`
	var b model.Branch
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.Name, &b.Lang, &b.Timezone, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Timezone returns the IANA timezone name configured for a branch.
// This is the only per-branch configuration the reservation core reads.
func (r *BranchRepo) Timezone(ctx context.Context, id uint64) (string, error) {
	const q = `SELECT timezone FROM branches WHERE branch_id = ?`
	var tz string
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&tz); err != nil {
		return "", err
	}
	return tz, nil
}

// List returns all branches ordered by ID.  The result backs the
// branch picker in clients and is small by nature.
func (r *BranchRepo) List(ctx context.Context) ([]model.Branch, error) {
	const q = `SELECT branch_id, branch_name, lang, timezone, created_at, updated_at
               FROM branches ORDER BY branch_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	branches := make([]model.Branch, 0)
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Lang, &b.Timezone, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}
