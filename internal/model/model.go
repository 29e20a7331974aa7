package model

import (
	"sort"
	"time"
)

// Event is the canonical, normalized form of one calendar entry as
// extracted from the rendered page (or supplied by a static source).
// Events are built once per extraction pass and never mutated; a later
// pass supersedes the whole list.
type Event struct {
	Title        string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Location     string
	MeetingURL   string
	Description  string
	CalendarName string
}

// Key returns the scheduler's dedup identity for this event. Two events
// with the same title and start instant are the same event; a moved event
// gets a new key and is re-armed.
func (e Event) Key() string {
	return e.Title + "_" + e.Start.Format(time.RFC3339)
}

// NewAllDayEvent builds an event spanning the whole given day.
func NewAllDayEvent(title string, day time.Time) Event {
	start := Midnight(day)
	return Event{
		Title:  title,
		Start:  start,
		End:    start.Add(24 * time.Hour),
		AllDay: true,
	}
}

// Midnight truncates t to 00:00 of the same calendar day, keeping its
// location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaySchedule is a read-only view of the events starting on one date,
// recomputed from the full event list on every update.
type DaySchedule struct {
	Date   time.Time
	Events []Event
}

// AllDayEvents returns the all-day subset.
func (d DaySchedule) AllDayEvents() []Event {
	out := make([]Event, 0)
	for _, e := range d.Events {
		if e.AllDay {
			out = append(out, e)
		}
	}
	return out
}

// TimedEvents returns the timed subset ordered by start time.
func (d DaySchedule) TimedEvents() []Event {
	out := make([]Event, 0)
	for _, e := range d.Events {
		if !e.AllDay {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// GroupByDay splits events into per-day schedules ordered by date.
func GroupByDay(events []Event) []DaySchedule {
	byDay := make(map[time.Time][]Event)
	for _, e := range events {
		day := Midnight(e.Start)
		byDay[day] = append(byDay[day], e)
	}

	out := make([]DaySchedule, 0, len(byDay))
	for day, evs := range byDay {
		out = append(out, DaySchedule{Date: day, Events: evs})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// NextUpcoming returns the first timed event starting strictly after now,
// or false when the list has none.
func NextUpcoming(events []Event, now time.Time) (Event, bool) {
	var best Event
	found := false
	for _, e := range events {
		if e.AllDay || !e.Start.After(now) {
			continue
		}
		if !found || e.Start.Before(best.Start) {
			best = e
			found = true
		}
	}
	return best, found
}

// Region marks which DOM area a raw label was scraped from. The pipeline
// only considers the all-day interpretation for labels from the all-day
// region.
type Region int

const (
	RegionTimed Region = iota
	RegionAllDay
)

// RawLabel is one scraped label string plus its optional stable element
// identity and the region it was found in.
type RawLabel struct {
	Text      string
	ElementID string
	Region    Region
	// DetailText carries the detail-dialog text, with the dialog's link
	// targets appended, when the fetcher managed to open it. Used for
	// meeting URL extraction.
	DetailText string
	// Location is the detail dialog's location field, when present.
	Location string
}

// PageSnapshot is everything one look at the rendered week view yields:
// the in-scope dates, the raw labels per region, and the account-UI
// labels used for ownership alias discovery.
type PageSnapshot struct {
	Dates         []time.Time
	Labels        []RawLabel
	AccountLabels []string
}
