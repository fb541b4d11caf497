package outlook

import (
	"context"

	"github.com/larksync/larksync/internal"
)

type eventOrError struct {
	e   *internal.Event
	err error
}

type eventIterator struct {
	events  chan eventOrError
	current eventOrError
}

func newEventIterator() *eventIterator {
	return &eventIterator{
		events: make(chan eventOrError),
	}
}

func (it *eventIterator) Next() (ok bool) {
	it.current, ok = <-it.events
	if it.current.err != nil {
		return false
	}
	return ok
}

func (it *eventIterator) Event() *internal.Event {
	c := it.current
	if c.e == nil && c.err == nil {
		panic("outlook: Event() called before Next()")
	}
	return c.e
}

func (it *eventIterator) Err() error {
	return it.current.err
}

func send(ctx context.Context, ch chan<- eventOrError, item eventOrError) bool {
	select {
	case ch <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
