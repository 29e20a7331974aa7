package static

import (
	"testing"
	"time"

	"calbar/internal/config"
	"calbar/internal/model"
)

var jst = time.FixedZone("JST", 9*3600)

func window(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start := time.Date(2026, 2, 9, 0, 0, 0, 0, jst) // Monday
	return start, start.AddDate(0, 0, 7)
}

func TestExpand(t *testing.T) {
	rangeStart, rangeEnd := window(t)

	t.Run("one-off event inside the window", func(t *testing.T) {
		decls := []config.StaticEventConfig{{
			Title: "通院",
			Start: "2026-02-10T15:00:00+09:00",
			End:   "2026-02-10T16:00:00+09:00",
		}}

		got := Expand(decls, jst, rangeStart, rangeEnd)
		if len(got) != 1 {
			t.Fatalf("got %d occurrences, want 1", len(got))
		}
		want := time.Date(2026, 2, 10, 15, 0, 0, 0, jst)
		if !got[0].Start.Equal(want) || got[0].Title != "通院" {
			t.Errorf("occurrence = %q @ %v, want 通院 @ %v", got[0].Title, got[0].Start, want)
		}
	})

	t.Run("one-off event outside the window is dropped", func(t *testing.T) {
		decls := []config.StaticEventConfig{{
			Title: "past",
			Start: "2026-01-05T10:00:00+09:00",
		}}
		if got := Expand(decls, jst, rangeStart, rangeEnd); len(got) != 0 {
			t.Fatalf("got %d occurrences, want 0", len(got))
		}
	})

	t.Run("window boundaries are half-open", func(t *testing.T) {
		decls := []config.StaticEventConfig{
			{Title: "at window start", Start: "2026-02-09T00:00:00+09:00"},
			{Title: "at window end", Start: "2026-02-16T00:00:00+09:00"},
			{Title: "ends at window start", Start: "2026-02-08T23:00:00+09:00", End: "2026-02-09T00:00:00+09:00"},
		}

		got := Expand(decls, jst, rangeStart, rangeEnd)
		if len(got) != 1 || got[0].Title != "at window start" {
			t.Fatalf("got %+v, want only the event starting at the window start", got)
		}
	})

	t.Run("weekly rule yields one occurrence per matching day", func(t *testing.T) {
		decls := []config.StaticEventConfig{{
			Title:      "週次定例",
			Start:      "2026-01-05T13:00:00+09:00",
			End:        "2026-01-05T13:30:00+09:00",
			MeetingURL: "https://meet.google.com/abc-defg-hij",
			RRule:      "FREQ=WEEKLY;BYDAY=MO,WE",
		}}

		got := Expand(decls, jst, rangeStart, rangeEnd)
		if len(got) != 2 {
			t.Fatalf("got %d occurrences, want 2 (Mon+Wed)", len(got))
		}
		wantMon := time.Date(2026, 2, 9, 13, 0, 0, 0, jst)
		if !got[0].Start.Equal(wantMon) {
			t.Errorf("first occurrence %v, want %v", got[0].Start, wantMon)
		}
		if d := got[0].End.Sub(got[0].Start); d != 30*time.Minute {
			t.Errorf("duration = %v, want 30m", d)
		}
		if got[1].MeetingURL != decls[0].MeetingURL {
			t.Error("meeting URL not carried onto occurrences")
		}
	})

	t.Run("exdate removes a single occurrence", func(t *testing.T) {
		decls := []config.StaticEventConfig{{
			Title:   "朝会",
			Start:   "2026-01-05T09:30:00+09:00",
			RRule:   "FREQ=WEEKLY;BYDAY=MO,WE",
			ExDates: []string{"2026-02-11T09:30:00+09:00"},
		}}

		got := Expand(decls, jst, rangeStart, rangeEnd)
		if len(got) != 1 {
			t.Fatalf("got %d occurrences, want 1 after exdate", len(got))
		}
		if got[0].Start.Day() != 9 {
			t.Errorf("surviving occurrence on day %d, want 9", got[0].Start.Day())
		}
	})

	t.Run("all-day recurrence lands on midnight", func(t *testing.T) {
		decls := []config.StaticEventConfig{{
			Title:  "ゴミの日",
			Start:  "2026-01-06T00:00:00+09:00",
			AllDay: true,
			RRule:  "FREQ=WEEKLY;BYDAY=TU",
		}}

		got := Expand(decls, jst, rangeStart, rangeEnd)
		if len(got) != 1 {
			t.Fatalf("got %d occurrences, want 1", len(got))
		}
		ev := got[0]
		if !ev.AllDay || !ev.Start.Equal(time.Date(2026, 2, 10, 0, 0, 0, 0, jst)) {
			t.Errorf("occurrence = allday=%v @ %v", ev.AllDay, ev.Start)
		}
		if d := ev.End.Sub(ev.Start); d != 24*time.Hour {
			t.Errorf("span = %v, want 24h", d)
		}
	})

	t.Run("malformed entries are skipped, not fatal", func(t *testing.T) {
		decls := []config.StaticEventConfig{
			{Title: "bad start", Start: "tomorrow-ish"},
			{Title: "bad rule", Start: "2026-02-10T09:00:00+09:00", RRule: "FREQ=SOMETIMES"},
			{Title: "fine", Start: "2026-02-10T09:00:00+09:00"},
		}

		got := Expand(decls, jst, rangeStart, rangeEnd)
		if len(got) != 1 || got[0].Title != "fine" {
			t.Fatalf("got %+v, want only the valid entry", got)
		}
	})

	t.Run("missing end defaults to one hour", func(t *testing.T) {
		decls := []config.StaticEventConfig{{
			Title: "枠のみ",
			Start: "2026-02-12T18:00:00+09:00",
		}}

		got := Expand(decls, jst, rangeStart, rangeEnd)
		if len(got) != 1 {
			t.Fatalf("got %d occurrences, want 1", len(got))
		}
		if d := got[0].End.Sub(got[0].Start); d != time.Hour {
			t.Errorf("duration = %v, want 1h", d)
		}
	})
}

func TestMerge(t *testing.T) {
	start := time.Date(2026, 2, 10, 13, 0, 0, 0, jst)
	extracted := []model.Event{{Title: "週次定例", Start: start, End: start.Add(time.Hour), Location: "会議室A"}}
	static := []model.Event{
		{Title: "週次定例", Start: start, End: start.Add(30 * time.Minute)}, // same key
		{Title: "朝会", Start: start.Add(-3 * time.Hour), End: start.Add(-2 * time.Hour)},
	}

	got := Merge(extracted, static)
	if len(got) != 2 {
		t.Fatalf("merged %d events, want 2", len(got))
	}
	if got[0].Location != "会議室A" {
		t.Error("extracted event not authoritative on key collision")
	}
	if got[1].Title != "朝会" {
		t.Errorf("second event = %q, want 朝会", got[1].Title)
	}
}
