package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/larksync/larksync/internal"
)

// Reconciler makes one destination calendar a faithful copy of its source
// calendar for future events: source events without a destination
// counterpart are created, destination events without a source counterpart
// are deleted. The destination side of a pair is fully derived state; it
// must not hold manually created events that are expected to survive.
type Reconciler struct {
	output   io.Writer
	configID string
	source   internal.Provider
	dest     internal.Provider
	retry    RetryPolicy

	now  func() time.Time
	stop <-chan struct{}
}

func NewReconciler(output io.Writer, configID string, source, dest internal.Provider) *Reconciler {
	return &Reconciler{
		output:   output,
		configID: configID,
		source:   source,
		dest:     dest,
		retry:    DefaultRetryPolicy(),
		now:      time.Now,
	}
}

// ReconcileResult is the outcome of one pass over one calendar pair.
type ReconcileResult struct {
	Pair      internal.CalendarPair
	Created   int
	Preserved int
	Deleted   int
	Errors    []error
}

func (r ReconcileResult) Failed() bool {
	return len(r.Errors) > 0
}

// Reconcile runs one pass over pair. The source is always listed before any
// destination delete is decided, so delete decisions reflect a source
// snapshot from the same pass. Individual create and delete failures are
// recorded and do not abort the remaining events.
func (r *Reconciler) Reconcile(ctx context.Context, pair internal.CalendarPair) ReconcileResult {
	res := ReconcileResult{Pair: pair}
	from := r.now()

	srcEvents, err := r.listEvents(ctx, r.source, pair.FeishuCalendarID, from)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("listing source events: %w", err))
		return res
	}
	dstEvents, err := r.listEvents(ctx, r.dest, pair.OutlookCalendarID, from)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("listing destination events: %w", err))
		return res
	}

	toCreate, toDelete := internal.MatchEvents(srcEvents, dstEvents)
	res.Preserved = len(srcEvents) - len(toCreate)

	r.logf(pair, "%d source, %d destination, %d to create, %d to delete",
		len(srcEvents), len(dstEvents), len(toCreate), len(toDelete))

	for _, i := range toCreate {
		if r.stopping() || ctx.Err() != nil {
			return res
		}
		event := srcEvents[i]
		err := r.retry.Do(ctx, func() error {
			_, err := r.dest.CreateEvent(ctx, pair.OutlookCalendarID, event)
			return err
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("creating %s: %w", event, err))
			// Rejected credentials fail every remaining call the same way.
			if errors.Is(err, internal.ErrReauthRequired) {
				return res
			}
			continue
		}
		res.Created++
	}

	for _, j := range toDelete {
		if r.stopping() || ctx.Err() != nil {
			return res
		}
		event := dstEvents[j]
		err := r.retry.Do(ctx, func() error {
			return r.dest.DeleteEvent(ctx, pair.OutlookCalendarID, event.ProviderID)
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("deleting stale %s: %w", event, err))
			if errors.Is(err, internal.ErrReauthRequired) {
				return res
			}
			continue
		}
		res.Deleted++
	}

	return res
}

func (r *Reconciler) listEvents(ctx context.Context, provider internal.Provider, calendarID string, from time.Time) ([]*internal.Event, error) {
	var events []*internal.Event
	err := r.retry.Do(ctx, func() error {
		it, err := provider.Events(ctx, calendarID, from)
		if err != nil {
			return err
		}
		events, err = internal.Drain(it)
		return err
	})
	return events, err
}

// stopping reports whether a graceful shutdown was requested. The current
// provider call always completes; the next one is simply not started.
func (r *Reconciler) stopping() bool {
	if r.stop == nil {
		return false
	}
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func (r *Reconciler) logf(pair internal.CalendarPair, format string, a ...any) {
	internal.Logf(r.output, fmt.Sprintf("pair %s:", pair), r.configID, format, a...)
}
