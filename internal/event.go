package internal

import "time"

// Event is the provider-agnostic representation of a single concrete
// occurrence. Providers convert their native schemas into this shape and
// normalize every timestamp to UTC before handing events to the engine, so
// everything downstream is timezone-free. Recurring series are expanded by
// the provider; each occurrence arrives as an independent Event.
type Event struct {
	// ProviderID is the event id on the provider that produced the event.
	// It is meaningless on the other side of a pair.
	ProviderID string

	Title      string
	StartsAt   time.Time
	EndsAt     time.Time
	Recurring  bool
	Location   string
	MeetingURL string
}

func (e Event) String() string {
	return e.Title + " @ " + e.StartsAt.UTC().Format(time.RFC3339)
}
