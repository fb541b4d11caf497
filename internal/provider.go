package internal

import (
	"context"
	"time"
)

// CalendarRef is one calendar as listed by a provider.
type CalendarRef struct {
	ID      string
	Name    string
	Primary bool
}

// Mux resolves a provider by role.
type Mux interface {
	Get(role ProviderRole) (Provider, error)
}

// Provider is one vendor's calendar API, already authenticated through the
// session's token store. Implementations paginate list calls to exhaustion,
// convert native timestamps to UTC, expand recurring series into concrete
// occurrences, and surface throttling as *RateLimitError.
type Provider interface {
	ListCalendars(context.Context) ([]CalendarRef, error)
	// Events streams events starting at or after from. Past events are
	// never listed.
	Events(_ context.Context, calendarID string, from time.Time) (Iterator, error)
	CreateEvent(_ context.Context, calendarID string, _ *Event) (providerID string, _ error)
	DeleteEvent(_ context.Context, calendarID, providerID string) error
}

// Iterator walks a provider listing. Next reports false once the listing is
// exhausted or failed; Err distinguishes the two.
type Iterator interface {
	Next() bool
	Event() *Event
	Err() error
}

// Drain collects the remainder of an iterator into a slice.
func Drain(it Iterator) ([]*Event, error) {
	var events []*Event
	for it.Next() {
		events = append(events, it.Event())
	}
	return events, it.Err()
}
