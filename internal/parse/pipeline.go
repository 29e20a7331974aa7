package parse

import (
	"strconv"
	"strings"
	"time"

	appLog "calbar/internal/log"
	"calbar/internal/model"
)

// maxSkippedSample bounds how many unparseable labels one pass logs.
const maxSkippedSample = 5

// Pipeline converts one page snapshot's raw labels into canonical events.
// It is pure given its inputs: the same snapshot and clock yield the same
// event list, and nothing is mutated between passes.
type Pipeline struct {
	// Loc is the display timezone all event instants are built in.
	Loc *time.Location

	// Now supplies the current instant; defaults to time.Now.
	Now func() time.Time

	// CalendarName, when set, derives the event's calendar-name annotation
	// from the raw label and extracted title. Nil leaves events
	// unannotated (ownership classification disabled).
	CalendarName func(label, title string) string
}

// Run executes a single extraction pass over the snapshot.
//
// Duplicate labels (by exact text) are collapsed. Labels with a time range
// become timed events on their resolved date. A label from the all-day
// region with no range becomes the pass's all-day template, expanded
// across every in-scope date; at most one such expansion happens per pass,
// which keeps a single recurring banner from multiplying. Everything else
// is skipped with a bounded sample logged.
func (p *Pipeline) Run(snap *model.PageSnapshot) []model.Event {
	loc := p.Loc
	if loc == nil {
		loc = time.Local
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	now = now.In(loc)

	seen := make(map[string]struct{})
	events := make([]model.Event, 0, len(snap.Labels))
	allDayExpanded := false
	var skipped []string

	for _, rl := range snap.Labels {
		text := strings.TrimSpace(rl.Text)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}

		tr, ok := ExtractTimeRange(text)
		if ok {
			ev := p.buildTimedEvent(rl, text, tr, snap.Dates, now, loc)
			events = append(events, ev)
			continue
		}

		if rl.Region == model.RegionAllDay && !allDayExpanded {
			events = append(events, p.buildAllDayEvents(rl, text, snap.Dates, loc)...)
			allDayExpanded = true
			continue
		}

		if len(skipped) < maxSkippedSample {
			skipped = append(skipped, text)
		}
	}

	if len(skipped) > 0 {
		appLog.Debug("labels skipped as unparseable", "count", len(skipped), "sample", strings.Join(skipped, " | "))
	}
	appLog.Info("extraction pass completed", "labels", len(snap.Labels), "events", len(events))
	return events
}

func (p *Pipeline) buildTimedEvent(rl model.RawLabel, text string, tr TimeRange, dates []time.Time, now time.Time, loc *time.Location) model.Event {
	title := ExtractTitle(text, &tr.Span)
	day := ExtractDate(text, dates, now, loc)

	start := combine(day, tr.Start, loc)
	var end time.Time
	if tr.End != "" {
		end = combine(day, tr.End, loc)
	}
	// Missing or non-increasing end: default to one hour after start.
	if tr.End == "" || !end.After(start) {
		end = start.Add(time.Hour)
	}

	ev := model.Event{
		Title: title,
		Start: start,
		End:   end,
	}
	ev.MeetingURL = model.ExtractMeetingURL(rl.DetailText)
	if ev.MeetingURL == "" {
		ev.MeetingURL = model.ExtractMeetingURL(text)
	}
	ev.Location = strings.TrimSpace(rl.Location)
	if rl.DetailText != "" {
		ev.Description = strings.TrimSpace(rl.DetailText)
	}
	if p.CalendarName != nil {
		ev.CalendarName = p.CalendarName(text, title)
	}
	return ev
}

func (p *Pipeline) buildAllDayEvents(rl model.RawLabel, text string, dates []time.Time, loc *time.Location) []model.Event {
	title := ExtractTitle(text, nil)
	url := model.ExtractMeetingURL(rl.DetailText)
	if url == "" {
		url = model.ExtractMeetingURL(text)
	}

	out := make([]model.Event, 0, len(dates))
	for _, d := range dates {
		ev := model.NewAllDayEvent(title, d.In(loc))
		ev.MeetingURL = url
		if p.CalendarName != nil {
			ev.CalendarName = p.CalendarName(text, title)
		}
		out = append(out, ev)
	}
	return out
}

// combine merges a canonical "HH:MM" string onto a calendar day.
func combine(day time.Time, hhmm string, loc *time.Location) time.Time {
	h, _ := strconv.Atoi(hhmm[:2])
	m, _ := strconv.Atoi(hhmm[3:])
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
}
