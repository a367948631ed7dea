package models

import "errors"

var (
	// ErrResourceUnavailable: a page failed to load or render within its timeout.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrExtractionFailure: the rendered page did not have the expected structure.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrMatchingIncomplete: a metadata batch failed and the matching run was aborted.
	ErrMatchingIncomplete = errors.New("matching incomplete")
	// ErrFatalSessionFailure: a session could not reinitialize after a failed cycle.
	ErrFatalSessionFailure = errors.New("fatal session failure")
	// ErrSessionClosed is returned by sessions after Cleanup.
	ErrSessionClosed = errors.New("session closed")
)
