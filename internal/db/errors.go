package db

import "errors"

var (
	// ErrNotFound is returned when a project or clip does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLeaseHeld is returned when another job owns an unexpired lease on the clip.
	ErrLeaseHeld = errors.New("clip lease held by another job")
)
