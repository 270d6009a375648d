package model

import "time"

// Branch represents an organizational site with its own timezone and
// room inventory.  Branches are reference data: they are looked up by
// ID and never mutated through this API.  The Timezone field holds an
// IANA zone name (e.g. "Asia/Tokyo") and drives how booking times are
// interpreted for every room and user of the branch.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the branch.
//  Lang      – default language code (two letters, e.g. "en", "ja").
//  Timezone  – IANA timezone name of the branch.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Branch struct {
	ID        uint64    // branches.branch_id
	Name      string    // branches.branch_name
	Lang      string    // branches.lang
	Timezone  string    // branches.timezone
	CreatedAt time.Time // branches.created_at
	UpdatedAt time.Time // branches.updated_at
}
