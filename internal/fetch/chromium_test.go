package fetch

import (
	"testing"
	"time"
)

func TestRawDetailCombined(t *testing.T) {
	t.Run("body text precedes link targets", func(t *testing.T) {
		d := rawDetail{
			Found: true,
			Text:  "設計レビュー\n会議室A\nhttps://meet.google.com/abc-defg-hij",
			Links: []string{"https://meet.google.com/zzz-zzzz-zzz", ""},
		}
		got := d.combined()
		want := "設計レビュー\n会議室A\nhttps://meet.google.com/abc-defg-hij\nhttps://meet.google.com/zzz-zzzz-zzz"
		if got != want {
			t.Errorf("combined() = %q, want %q", got, want)
		}
	})

	t.Run("link-only dialog still yields text", func(t *testing.T) {
		d := rawDetail{Found: true, Links: []string{"https://meet.google.com/abc-defg-hij"}}
		if got := d.combined(); got != "https://meet.google.com/abc-defg-hij" {
			t.Errorf("combined() = %q", got)
		}
	})

	t.Run("empty dialog is empty", func(t *testing.T) {
		if got := (rawDetail{}).combined(); got != "" {
			t.Errorf("combined() = %q, want empty", got)
		}
	})
}

func TestOpenDetailRejectsUnusableID(t *testing.T) {
	s := &Session{}
	if _, err := s.openDetail(`x"]'); alert(1); ('`); err == nil {
		t.Fatal("id with a quote was accepted")
	}
	if _, err := s.openDetail(`a\b`); err == nil {
		t.Fatal("id with a backslash was accepted")
	}
}

func TestParseDates(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	s := &Session{loc: jst}

	t.Run("parses, dedups and sorts datekeys", func(t *testing.T) {
		got := s.parseDates([]string{"20260211", "20260209", " 20260210 ", "20260209", "garbage"})
		if len(got) != 3 {
			t.Fatalf("got %d dates, want 3", len(got))
		}
		want := time.Date(2026, 2, 9, 0, 0, 0, 0, jst)
		for i, d := range got {
			if !d.Equal(want.AddDate(0, 0, i)) {
				t.Errorf("dates[%d] = %v, want %v", i, d, want.AddDate(0, 0, i))
			}
			if d.Location() != jst {
				t.Errorf("dates[%d] in %v, want JST", i, d.Location())
			}
		}
	})

	t.Run("empty input falls back to the current week", func(t *testing.T) {
		got := s.parseDates(nil)
		if len(got) != 7 {
			t.Fatalf("got %d dates, want 7", len(got))
		}
		if got[0].Weekday() != time.Monday {
			t.Errorf("week starts on %v, want Monday", got[0].Weekday())
		}
		for i := 1; i < len(got); i++ {
			if d := got[i].Sub(got[i-1]); d != 24*time.Hour {
				t.Errorf("gap between day %d and %d is %v", i-1, i, d)
			}
		}
	})
}
