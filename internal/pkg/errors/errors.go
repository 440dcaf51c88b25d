package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDegenerateTrack marks point streams rejected before enqueue.
	ErrDegenerateTrack = errors.New("degenerate track geometry")
	// ErrProcessingFailed marks an activity whose pipeline run did not commit.
	ErrProcessingFailed = errors.New("activity processing failed")
)
