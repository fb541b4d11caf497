package feishu

import (
	"fmt"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/larksync/larksync/internal"
)

// feishuDateTime is the calendar v4 time shape: either a unix timestamp
// (timed events) or a civil date plus timezone (all-day events).
type feishuDateTime struct {
	Timestamp string `json:"timestamp,omitempty"`
	Date      string `json:"date,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

type feishuPlace struct {
	Name string `json:"name"`
}

type feishuVchat struct {
	MeetingURL string `json:"meeting_url"`
}

type feishuEvent struct {
	EventID    string         `json:"event_id"`
	Summary    string         `json:"summary"`
	Status     string         `json:"status"`
	StartTime  feishuDateTime `json:"start_time"`
	EndTime    feishuDateTime `json:"end_time"`
	Location   *feishuPlace   `json:"location"`
	Vchat      *feishuVchat   `json:"vchat"`
	Recurrence string         `json:"recurrence"`
}

// toUTC resolves a Feishu time value to UTC. Unix timestamps are already
// absolute; all-day dates are midnight in the event's timezone.
func (dt feishuDateTime) toUTC() (time.Time, error) {
	if dt.Timestamp != "" {
		unix, err := strconv.ParseInt(dt.Timestamp, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("feishu: bad timestamp %q: %w", dt.Timestamp, err)
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	if dt.Date == "" {
		return time.Time{}, fmt.Errorf("feishu: time value has neither timestamp nor date")
	}
	loc := time.UTC
	if dt.Timezone != "" {
		if l, err := time.LoadLocation(dt.Timezone); err == nil {
			loc = l
		}
	}
	day, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("feishu: bad date %q: %w", dt.Date, err)
	}
	return day.UTC(), nil
}

// expand converts a raw Feishu event into normalized occurrences. Plain
// events yield one; recurring events are expanded through their RRULE into
// every occurrence inside [from, until]. Cancelled events yield none.
func expand(raw *feishuEvent, from, until time.Time) ([]*internal.Event, error) {
	if raw.Status == "cancelled" {
		return nil, nil
	}

	startsAt, err := raw.StartTime.toUTC()
	if err != nil {
		return nil, fmt.Errorf("feishu: event %s: %w", raw.EventID, err)
	}
	endsAt, err := raw.EndTime.toUTC()
	if err != nil {
		return nil, fmt.Errorf("feishu: event %s: %w", raw.EventID, err)
	}

	base := internal.Event{
		ProviderID: raw.EventID,
		Title:      raw.Summary,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
	}
	if raw.Location != nil {
		base.Location = raw.Location.Name
	}
	if raw.Vchat != nil {
		base.MeetingURL = raw.Vchat.MeetingURL
	}

	if raw.Recurrence == "" {
		e := base
		return []*internal.Event{&e}, nil
	}

	opts, err := rrule.StrToROption(raw.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("feishu: event %s: parsing recurrence %q: %w", raw.EventID, raw.Recurrence, err)
	}
	opts.Dtstart = startsAt
	rule, err := rrule.NewRRule(*opts)
	if err != nil {
		return nil, fmt.Errorf("feishu: event %s: building recurrence: %w", raw.EventID, err)
	}

	duration := endsAt.Sub(startsAt)
	base.Recurring = true

	var occurrences []*internal.Event
	for _, start := range rule.Between(from.UTC(), until.UTC(), true) {
		e := base
		e.StartsAt = start.UTC()
		e.EndsAt = start.Add(duration).UTC()
		occurrences = append(occurrences, &e)
	}
	return occurrences, nil
}
