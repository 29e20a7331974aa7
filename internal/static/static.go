// Package static expands config-declared events, with optional RRULE
// recurrence, into concrete occurrences for the current view window. These
// are merged into every extraction pass so standing meetings get reminders
// even when the rendered page omits them.
package static

import (
	"time"

	"github.com/teambition/rrule-go"

	"calbar/internal/config"
	appLog "calbar/internal/log"
	"calbar/internal/model"
)

// maxOccurrencesPerEvent caps a single rule's expansion so a malformed
// RRULE cannot flood the schedule.
const maxOccurrencesPerEvent = 500

// Expand turns the declared events into occurrences overlapping
// [rangeStart, rangeEnd). Entries that fail to parse are logged and
// skipped; expansion never fails the whole pass.
func Expand(decls []config.StaticEventConfig, loc *time.Location, rangeStart, rangeEnd time.Time) []model.Event {
	if loc == nil {
		loc = time.Local
	}

	out := make([]model.Event, 0)
	for _, decl := range decls {
		evs, ok := expandOne(decl, loc, rangeStart, rangeEnd)
		if !ok {
			continue
		}
		out = append(out, evs...)
	}
	if len(out) > 0 {
		appLog.Info("static events expanded", "declared", len(decls), "occurrences", len(out))
	}
	return out
}

func expandOne(decl config.StaticEventConfig, loc *time.Location, rangeStart, rangeEnd time.Time) ([]model.Event, bool) {
	start, err := time.Parse(time.RFC3339, decl.Start)
	if err != nil {
		appLog.Error("static event has invalid start, skipping", err, "title", decl.Title)
		return nil, false
	}
	start = start.In(loc)

	end := start.Add(time.Hour)
	if decl.End != "" {
		e, err := time.Parse(time.RFC3339, decl.End)
		if err != nil {
			appLog.Error("static event has invalid end, skipping", err, "title", decl.Title)
			return nil, false
		}
		end = e.In(loc)
	}
	if !end.After(start) {
		end = start.Add(time.Hour)
	}

	base := model.Event{
		Title:      decl.Title,
		Start:      start,
		End:        end,
		AllDay:     decl.AllDay,
		Location:   decl.Location,
		MeetingURL: decl.MeetingURL,
	}
	if decl.AllDay {
		base.Start = model.Midnight(start)
		base.End = base.Start.Add(24 * time.Hour)
	}

	if decl.RRule == "" {
		if overlaps(base.Start, base.End, rangeStart, rangeEnd) {
			return []model.Event{base}, true
		}
		return nil, true
	}

	r, err := rrule.StrToRRule(decl.RRule)
	if err != nil {
		appLog.Error("static event has invalid rrule, skipping", err, "title", decl.Title, "rrule", decl.RRule)
		return nil, false
	}
	r.DTStart(base.Start)

	var set rrule.Set
	set.RRule(r)
	for _, raw := range decl.ExDates {
		ex, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			appLog.Warn("static event exdate ignored", "title", decl.Title, "exdate", raw)
			continue
		}
		set.ExDate(ex.In(base.Start.Location()))
	}

	occTimes := set.Between(rangeStart.In(loc), rangeEnd.In(loc), true)
	if len(occTimes) > maxOccurrencesPerEvent {
		occTimes = occTimes[:maxOccurrencesPerEvent]
		appLog.Warn("static event expansion truncated", "title", decl.Title, "cap", maxOccurrencesPerEvent)
	}

	dur := base.End.Sub(base.Start)
	out := make([]model.Event, 0, len(occTimes))
	for _, occStart := range occTimes {
		ev := base
		if decl.AllDay {
			ev.Start = model.Midnight(occStart.In(loc))
			ev.End = ev.Start.Add(24 * time.Hour)
		} else {
			ev.Start = occStart.In(loc)
			ev.End = ev.Start.Add(dur)
		}
		out = append(out, ev)
	}
	return out, true
}

// overlaps compares two half-open spans [aStart, aEnd) and [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Merge combines extracted and static occurrences, dropping static ones
// whose key collides with an extracted event so the page stays
// authoritative.
func Merge(extracted, static []model.Event) []model.Event {
	seen := make(map[string]struct{}, len(extracted))
	for _, ev := range extracted {
		seen[ev.Key()] = struct{}{}
	}
	out := append([]model.Event(nil), extracted...)
	for _, ev := range static {
		if _, dup := seen[ev.Key()]; dup {
			continue
		}
		out = append(out, ev)
	}
	return out
}
