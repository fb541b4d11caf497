package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/larksync/larksync/internal"
)

func instantRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

type sliceIterator struct {
	events []*internal.Event
	pos    int
	err    error
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.events) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Event() *internal.Event {
	return it.events[it.pos-1]
}

func (it *sliceIterator) Err() error {
	return it.err
}

// fakeProvider is an in-memory calendar backend. Created events become
// visible to subsequent listings, so idempotence can be exercised across
// passes.
type fakeProvider struct {
	mu sync.Mutex

	calendars []internal.CalendarRef
	events    map[string][]*internal.Event

	// listErrs queues one error per upcoming Events call per calendar.
	listErrs map[string][]error
	// createErrs and deleteErrs queue errors by title / provider id.
	createErrs map[string][]error
	deleteErrs map[string][]error

	listCalendarsCalls int
	listCalls          int
	createCalls        int
	deleteCalls        int
	nextID             int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		events:     make(map[string][]*internal.Event),
		listErrs:   make(map[string][]error),
		createErrs: make(map[string][]error),
		deleteErrs: make(map[string][]error),
	}
}

func (p *fakeProvider) add(calendarID string, e *internal.Event) *internal.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.ProviderID == "" {
		p.nextID++
		e.ProviderID = fmt.Sprintf("ev-%d", p.nextID)
	}
	p.events[calendarID] = append(p.events[calendarID], e)
	return e
}

func (p *fakeProvider) failNextList(calendarID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErrs[calendarID] = append(p.listErrs[calendarID], err)
}

func (p *fakeProvider) failNextCreate(title string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createErrs[title] = append(p.createErrs[title], err)
}

func (p *fakeProvider) failNextDelete(providerID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteErrs[providerID] = append(p.deleteErrs[providerID], err)
}

func (p *fakeProvider) ListCalendars(context.Context) ([]internal.CalendarRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalendarsCalls++
	return p.calendars, nil
}

func (p *fakeProvider) Events(ctx context.Context, calendarID string, from time.Time) (internal.Iterator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listCalls++
	if errs := p.listErrs[calendarID]; len(errs) > 0 {
		p.listErrs[calendarID] = errs[1:]
		return nil, errs[0]
	}

	var future []*internal.Event
	for _, e := range p.events[calendarID] {
		if !e.StartsAt.Before(from) {
			future = append(future, e)
		}
	}
	return &sliceIterator{events: future}, nil
}

func (p *fakeProvider) CreateEvent(ctx context.Context, calendarID string, e *internal.Event) (string, error) {
	p.mu.Lock()
	p.createCalls++
	if errs := p.createErrs[e.Title]; len(errs) > 0 {
		p.createErrs[e.Title] = errs[1:]
		p.mu.Unlock()
		return "", errs[0]
	}
	p.mu.Unlock()

	clone := *e
	clone.ProviderID = ""
	return p.add(calendarID, &clone).ProviderID, nil
}

func (p *fakeProvider) DeleteEvent(ctx context.Context, calendarID, providerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleteCalls++
	if errs := p.deleteErrs[providerID]; len(errs) > 0 {
		p.deleteErrs[providerID] = errs[1:]
		return errs[0]
	}
	events := p.events[calendarID]
	for i, e := range events {
		if e.ProviderID == providerID {
			p.events[calendarID] = append(events[:i:i], events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fake: event %s not found in %s", providerID, calendarID)
}

func (p *fakeProvider) eventsIn(calendarID string) []*internal.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*internal.Event(nil), p.events[calendarID]...)
}

type fakeMux struct {
	source internal.Provider
	dest   internal.Provider
}

func (m fakeMux) Get(role internal.ProviderRole) (internal.Provider, error) {
	if role == internal.RoleFeishu {
		return m.source, nil
	}
	return m.dest, nil
}

type fakeTokens struct {
	mu    sync.Mutex
	calls int
	errs  map[internal.ProviderRole]error
}

func (f *fakeTokens) Token(ctx context.Context, role internal.ProviderRole) (internal.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[role]; err != nil {
		return internal.Credential{}, err
	}
	return internal.Credential{AccessToken: "token"}, nil
}
