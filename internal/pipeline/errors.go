package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled is the reason reported for tasks that ended because the run
// was cancelled.
var ErrCancelled = errors.New("pipeline: run cancelled")

// FetchError is returned when every fetch attempt for a URL failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error // last error seen
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: giving up after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CommitError is returned when a fetched payload could not be committed.
// Op is "read", "write" or "append".
type CommitError struct {
	URL    string
	Serial uint64
	Op     string
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s (serial %d): %s: %v", e.URL, e.Serial, e.Op, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Failure records a task that ended without a commit.
type Failure struct {
	URL string
	Err error
}
