package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the orchestrator and stores.
var (
	// ErrInvalidRequest means the job creation input was malformed; the job is
	// never created.
	ErrInvalidRequest = errors.New("invalid job request")
	// ErrConfigNotFound means the requested config name is unknown.
	ErrConfigNotFound = errors.New("source config not found")
	// ErrJobNotFound means no job exists for the given ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrPaperNotFound means no paper exists for the given ID.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrJobTimeout means the job exceeded its wall-clock ceiling and was
	// forced to failed.
	ErrJobTimeout = errors.New("job wall-clock timeout exceeded")
)

// FetchError reports a fetch that exhausted its retries. It is recorded as the
// item's failure cause and is non-fatal to the job.
type FetchError struct {
	URL        string
	LastStatus int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.LastStatus > 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempts", e.URL, e.LastStatus, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempts", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports content that could not be structured. Non-fatal to the
// job; the raw cause is preserved for diagnostics.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError reports unavailable persistence. Fatal to the in-progress job.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
