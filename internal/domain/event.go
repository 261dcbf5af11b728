package domain

import "time"

// CollectionState tracks where an event is in its collection lifecycle.
type CollectionState string

const (
	// StatePending is the initial state: not yet inside its window or never started.
	StatePending CollectionState = "PENDING"

	// StateActive means a collection pass has started but not completed.
	// An event left ACTIVE after a run signals that the fetch failed and
	// must be retried on the next cycle.
	StateActive CollectionState = "ACTIVE"

	// StateFinished means the last collection pass completed.
	StateFinished CollectionState = "FINISHED"
)

// Valid reports whether s is one of the known collection states.
func (s CollectionState) Valid() bool {
	switch s {
	case StatePending, StateActive, StateFinished:
		return true
	}
	return false
}

// Event is a tag-scoped, time-windowed collection campaign.
type Event struct {
	// ID is assigned externally and is unique.
	ID int64

	Title       string
	Description string

	// Tags is used verbatim as the search query.
	Tags string

	// WindowStart and WindowEnd bound the collection window. An event with
	// either bound missing is never eligible.
	WindowStart *time.Time
	WindowEnd   *time.Time

	State CollectionState

	// PostCount is the running number of posts stored for this event.
	PostCount int
}

// InWindow reports whether now lies strictly between the window bounds.
// Both bounds are exclusive.
func (e *Event) InWindow(now time.Time) bool {
	if e.WindowStart == nil || e.WindowEnd == nil {
		return false
	}
	return now.After(*e.WindowStart) && now.Before(*e.WindowEnd)
}
