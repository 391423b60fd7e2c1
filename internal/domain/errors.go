package domain

import "errors"

var (
	// ErrAttemptNotFound is returned when a puzzle solve cannot be attached to any attempt.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrPuzzleMismatch indicates the submitted puzzle answer does not match the event's word.
	ErrPuzzleMismatch = errors.New("puzzle answer does not match")
	// ErrInvalidSubmission wraps validation failures of posted results.
	ErrInvalidSubmission = errors.New("invalid result submission")
)
