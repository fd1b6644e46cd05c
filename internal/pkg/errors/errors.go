package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is raised when no caller identity is attached to the request.
	ErrUnauthorized = errors.New("authentication required")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUserNotFound is raised when a caller identity does not resolve to a ledger account.
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientCredits is raised by the quota guard and by guarded ledger debits.
	ErrInsufficientCredits = errors.New("insufficient credits: minimum 10 credits required")
	// ErrRunInProgress is raised when a start is attempted against an in-flight resource.
	ErrRunInProgress = errors.New("a run is already in progress for this resource")
	// ErrNotRestartable is raised when a start is attempted against a completed resource.
	ErrNotRestartable = errors.New("completed resources cannot be restarted")
)
