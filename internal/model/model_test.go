package model

import (
	"testing"
	"time"
)

var jst = time.FixedZone("JST", 9*3600)

func TestEventKey(t *testing.T) {
	start := time.Date(2026, 2, 14, 9, 0, 0, 0, jst)
	a := Event{Title: "朝会", Start: start}
	b := Event{Title: "朝会", Start: start, Location: "会議室A"}
	if a.Key() != b.Key() {
		t.Error("key must ignore fields other than title and start")
	}

	moved := Event{Title: "朝会", Start: start.Add(30 * time.Minute)}
	if a.Key() == moved.Key() {
		t.Error("moved event kept its key")
	}
	renamed := Event{Title: "夕会", Start: start}
	if a.Key() == renamed.Key() {
		t.Error("renamed event kept its key")
	}
}

func TestNewAllDayEvent(t *testing.T) {
	ev := NewAllDayEvent("創立記念日", time.Date(2026, 2, 14, 15, 42, 7, 0, jst))
	if !ev.AllDay {
		t.Fatal("not marked all-day")
	}
	if !ev.Start.Equal(time.Date(2026, 2, 14, 0, 0, 0, 0, jst)) {
		t.Errorf("start = %v, want midnight", ev.Start)
	}
	if d := ev.End.Sub(ev.Start); d != 24*time.Hour {
		t.Errorf("span = %v, want 24h", d)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 2, 14, 23, 59, 0, 0, jst)
	b := time.Date(2026, 2, 14, 0, 1, 0, 0, jst)
	c := time.Date(2026, 2, 15, 0, 1, 0, 0, jst)
	if !SameDay(a, b) {
		t.Error("same calendar day reported as different")
	}
	if SameDay(a, c) {
		t.Error("adjacent days reported as same")
	}
}

func TestGroupByDay(t *testing.T) {
	day1 := time.Date(2026, 2, 14, 0, 0, 0, 0, jst)
	day2 := day1.AddDate(0, 0, 1)
	events := []Event{
		{Title: "午後の会議", Start: day1.Add(14 * time.Hour), End: day1.Add(15 * time.Hour)},
		{Title: "朝会", Start: day1.Add(9 * time.Hour), End: day1.Add(10 * time.Hour)},
		NewAllDayEvent("創立記念日", day1),
		{Title: "翌日", Start: day2.Add(10 * time.Hour), End: day2.Add(11 * time.Hour)},
	}

	days := GroupByDay(events)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}
	if !days[0].Date.Equal(day1) || !days[1].Date.Equal(day2) {
		t.Fatalf("days out of order: %v, %v", days[0].Date, days[1].Date)
	}

	timed := days[0].TimedEvents()
	if len(timed) != 2 || timed[0].Title != "朝会" {
		t.Errorf("timed events not sorted by start: %+v", timed)
	}
	allDay := days[0].AllDayEvents()
	if len(allDay) != 1 || allDay[0].Title != "創立記念日" {
		t.Errorf("all-day subset = %+v", allDay)
	}
}

func TestNextUpcoming(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, jst)
	events := []Event{
		{Title: "past", Start: now.Add(-time.Hour), End: now.Add(-30 * time.Minute)},
		{Title: "later", Start: now.Add(3 * time.Hour), End: now.Add(4 * time.Hour)},
		{Title: "sooner", Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)},
		NewAllDayEvent("holiday", now.AddDate(0, 0, 1)),
	}

	next, ok := NextUpcoming(events, now)
	if !ok || next.Title != "sooner" {
		t.Fatalf("next = %v %q, want sooner", ok, next.Title)
	}

	if _, ok := NextUpcoming(events[:1], now); ok {
		t.Error("found an upcoming event in a list of past events")
	}
}

func TestExtractMeetingURL(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			"google meet",
			"参加: https://meet.google.com/abc-defg-hij で開催",
			"https://meet.google.com/abc-defg-hij",
		},
		{
			"zoom with passcode",
			"Join https://us02web.zoom.us/j/1234567890?pwd=Abc123 now",
			"https://us02web.zoom.us/j/1234567890?pwd=Abc123",
		},
		{
			"teams",
			"https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc",
			"https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc",
		},
		{
			"webex",
			"会議室 https://example.webex.com/meet/taro です",
			"https://example.webex.com/meet/taro",
		},
		{"no url", "会議室Aで開催します", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractMeetingURL(tc.text); got != tc.want {
				t.Errorf("ExtractMeetingURL(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}
