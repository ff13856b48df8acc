package sync

import (
	"errors"
)

// Typed failures returned by the engine. Callers branch with errors.Is;
// everything else is wrapped storage or transport errors.
var (
	// ErrInvalidTransition is returned when a requested state change is not
	// an edge of the state machine
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStaleWrite is returned when a concurrent writer superseded the
	// current state between read and update
	ErrStaleWrite = errors.New("stale write: current state changed concurrently")

	// ErrNotFound is returned when no sync state exists for an order key
	ErrNotFound = errors.New("sync state not found")

	// ErrInvalidInput is returned by the comparator when either order record
	// is unusable
	ErrInvalidInput = errors.New("invalid comparison input")

	// ErrInvalidDateRange is returned when a bulk job is started with
	// start_date after end_date
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrNoOrdersFound is returned when a bulk job's date range matches no
	// remote orders
	ErrNoOrdersFound = errors.New("no orders found in date range")

	// ErrJobNotFound is returned for operations on an unknown job id
	ErrJobNotFound = errors.New("sync job not found")

	// ErrJobNotProcessing is returned when a batch tick hits a job that is
	// already completed or cancelled
	ErrJobNotProcessing = errors.New("sync job is not processing")
)
