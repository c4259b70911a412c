package domain

import "errors"

// Sentinel errors for the core domain.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input to an operation was invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyRunning indicates a start was requested for a worker or
	// job that is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrStopRequested indicates a worker observed a cooperative stop
	// request and exited before completing all items. Not a failure.
	ErrStopRequested = errors.New("stop requested")

	// ErrEmptySummary indicates the LLM returned an empty summary for a
	// section; the section is skipped rather than stored blank.
	ErrEmptySummary = errors.New("empty summary")

	// ErrOversized indicates a record exceeds the document store's
	// per-record size limit and must be degraded before persisting.
	ErrOversized = errors.New("record exceeds store size limit")
)
