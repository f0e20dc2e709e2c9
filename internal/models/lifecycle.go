package models

// transitions lists every allowed edge of the job lifecycle
var transitions = map[JobStatus][]JobStatus{
	StatusQueued:  {StatusPicking},
	StatusPicking: {StatusQueued, StatusStaged},
	StatusStaged:  {StatusLoaded},
	StatusLoaded:  {StatusCompleted},
}

// CheckTransition returns an *InvalidTransitionError unless from -> to is an allowed edge
func CheckTransition(from, to JobStatus) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// Pickable reports whether items may be toggled in this state
func (s JobStatus) Pickable() bool {
	return s == StatusPicking || s == StatusStaged
}
