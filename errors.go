package queue

import "errors"

var (
	// ErrTimeout is returned by waiter.Waiter.WaitForJob when the
	// requested timeout elapses before the job reaches a terminal
	// state.
	ErrTimeout = errors.New("wait for job timed out")

	// ErrGroupNotFound reports a group id that does not exist. No
	// method in this package returns it: CancelGroup reports a missing
	// group as false, and GetGroup as (nil, nil).
	ErrGroupNotFound = errors.New("group not found")

	// ErrDuplicateJob is AddJob's error-shaped view of store.ErrConflict,
	// for callers that want errors.Is(err, queue.ErrDuplicateJob)
	// instead of importing the store package directly.
	ErrDuplicateJob = errors.New("duplicate job id")
)

// CancelledReason is the FailedReason stamped on every job CancelGroup
// fails, so callers can special-case cancellation over ordinary
// worker failures.
const CancelledReason = "CANCELLED"
