package store

import "errors"

// ErrConflict indicates AddJob was called with an id that already
// exists. TryAddJob reports this as (false, nil) instead.
var ErrConflict = errors.New("job id already exists")

// ErrBadStatus is returned by DeleteTerminal when asked to delete a
// non-terminal status (only job.Completed, job.Failed, or job.Unknown
// meaning "both" are valid).
var ErrBadStatus = errors.New("bad job status")

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
