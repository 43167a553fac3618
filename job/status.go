package job

import "fmt"

// Status represents the current lifecycle state of a Job.
//
// The state machine is:
//
//	Backlog -> Queued
//	Queued  -> Active
//	Active  -> Completed
//	Active  -> Queued    (reaped lease; CancelGroup leaves active jobs alone)
//	Active  -> Failed
//	Queued  -> Failed    (CancelGroup)
//
// Completed and Failed are terminal: a job never transitions out of
// them. Unknown is reserved as a zero value for filtering contexts.
type Status uint8

const (
	// Unknown represents an unspecified or invalid job state.
	// It is the zero value of Status.
	Unknown Status = iota

	// Backlog is a pre-queue holding state for jobs subject to
	// team-level admission control. Promoted to Queued explicitly or
	// when capacity becomes available.
	Backlog

	// Queued indicates that the job is eligible for dispatch, subject
	// to concurrency ceilings.
	Queued

	// Active indicates that the job has been dispatched and is
	// currently owned by a worker. Lock/LockedAt define the
	// visibility lease.
	Active

	// Completed indicates successful completion. Terminal.
	Completed

	// Failed indicates permanent failure, including cancellation.
	// Terminal.
	Failed
)

func statusToString(status Status) string {
	switch status {
	case Backlog:
		return "backlog"
	case Queued:
		return "queued"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func statusFromString(status string) (Status, error) {
	switch status {
	case "backlog":
		return Backlog, nil
	case "queued":
		return Queued, nil
	case "active":
		return Active, nil
	case "completed":
		return Completed, nil
	case "failed":
		return Failed, nil
	case "unknown":
		return Unknown, nil
	default:
		return 0, fmt.Errorf("unknown job status: %s", status)
	}
}

// ParseStatus converts a string representation of a status into a Status
// value. Recognized values are "backlog", "queued", "active",
// "completed", "failed" and "unknown". An error is returned for
// unrecognized strings.
func ParseStatus(s string) (Status, error) {
	return statusFromString(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(statusToString(s)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	status, err := statusFromString(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// String returns the canonical string representation of the status.
func (s Status) String() string {
	return statusToString(s)
}
