package repo

import "errors"

var (
	// ErrNotFound reports a missing recipe, run, snapshot, or user.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports an attempt to start a second concurrent run for
	// a recipe that already has one in progress.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState reports a lifecycle transition attempted from the
	// wrong status, such as finishing an already-completed run.
	ErrInvalidState = errors.New("invalid state")
)
