package checkout

// Status is the lifecycle state of a checkout record.
//
// pending is the only non-terminal state. Once a record reaches completed,
// failed or cancelled it never moves again; the persistence layer enforces
// this with conditional updates, so late gateway callbacks cannot resurrect
// a settled record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Only pending has outgoing edges.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
