// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers such
// as handlers to distinguish between different failure scenarios.
package repository

import "errors"

// ErrConflict is returned when a delete cannot be performed because of
// dependent records, such as removing a room that still has bookings
// attached. Handlers translate this into an HTTP 400 response.
var ErrConflict = errors.New("conflict")
