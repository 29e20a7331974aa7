package export

import (
	"strings"
	"testing"
	"time"

	"calbar/internal/model"
)

func TestICS(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	start := time.Date(2026, 2, 14, 9, 0, 0, 0, jst)
	now := time.Date(2026, 2, 14, 8, 0, 0, 0, jst)
	events := []model.Event{
		{
			Title:      "週次定例",
			Start:      start,
			End:        start.Add(time.Hour),
			Location:   "会議室A",
			MeetingURL: "https://meet.google.com/abc-defg-hij",
		},
		model.NewAllDayEvent("創立記念日", start),
	}

	out := string(ICS(events, now))

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"END:VCALENDAR",
		"METHOD:PUBLISH",
		"週次定例",
		"創立記念日",
		"@calbar",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if n := strings.Count(out, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("got %d VEVENT blocks, want 2", n)
	}
}

func TestICSStableUIDs(t *testing.T) {
	start := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	ev := model.Event{Title: "朝会", Start: start, End: start.Add(time.Hour)}

	a := eventUID(ev)
	b := eventUID(ev)
	if a != b {
		t.Fatalf("UID not stable: %q vs %q", a, b)
	}

	moved := ev
	moved.Start = start.Add(time.Hour)
	if eventUID(moved) == a {
		t.Error("UID unchanged after the start moved")
	}
}

func TestICSEmpty(t *testing.T) {
	out := string(ICS(nil, time.Now()))
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatalf("empty export = %q", out)
	}
}
