package storage

import (
	"errors"

	"github.com/salonbook/platform/libs/db"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned when a write would overlap another active booking for the
	// same staff member. It is only ever produced by the atomic write itself.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrCancelled is returned when a state change targets a cancelled booking.
	ErrCancelled = errors.New("booking cancelled")
	// ErrIdempotencyMismatch is returned when an idempotency key is reused for a
	// different booking request.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
)

// ExclusionConstraint is the name of the bookings overlap constraint in migrations/001_init.sql.
const ExclusionConstraint = "bookings_no_overlap"

// IsConflict reports whether err is the overlap exclusion violation raised by Postgres.
func IsConflict(err error) bool {
	if !db.IsExclusionViolation(err) {
		return false
	}
	name := db.ConstraintName(err)
	return name == "" || name == ExclusionConstraint
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || db.IsNoRows(err)
}
