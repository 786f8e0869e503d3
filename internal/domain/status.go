package domain

// JobStatus represents the current state of a download Job.
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusRetrying    JobStatus = "retrying"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusCancelled   JobStatus = "cancelled"
)

// IsLive reports whether the job holds, or may reclaim, a worker slot.
func (s JobStatus) IsLive() bool {
	return s == StatusPending || s == StatusDownloading || s == StatusRetrying
}

// IsTerminal reports whether the job has reached a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var transitions = map[JobStatus][]JobStatus{
	StatusPending:     {StatusDownloading, StatusCancelled},
	StatusDownloading: {StatusCompleted, StatusFailed, StatusCancelled, StatusRetrying},
	StatusRetrying:    {StatusDownloading, StatusCancelled, StatusFailed},
}

// CanTransition reports whether moving from s to next is a legal step of the
// job state machine. Terminal states have no outgoing transitions; resuming a
// terminal job allocates a fresh pending pass instead of reviving the old one.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
