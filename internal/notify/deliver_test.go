package notify

import (
	"strings"
	"testing"
	"time"

	"calbar/internal/model"
)

type execCall struct {
	name string
	args []string
}

func captureDeliverer(notifierPath string) (*ExecDeliverer, *[]execCall) {
	calls := &[]execCall{}
	d := &ExecDeliverer{
		Lead:         5 * time.Minute,
		notifierPath: notifierPath,
		run: func(name string, args ...string) error {
			*calls = append(*calls, execCall{name: name, args: args})
			return nil
		},
	}
	return d, calls
}

func TestExecDeliverReminder(t *testing.T) {
	start := time.Date(2026, 2, 14, 9, 0, 0, 0, time.FixedZone("JST", 9*3600))
	ev := model.Event{
		Title:      "朝会",
		Start:      start,
		End:        start.Add(time.Hour),
		MeetingURL: "https://meet.google.com/abc-defg-hij",
	}

	t.Run("terminal-notifier gets title, lead and open URL", func(t *testing.T) {
		d, calls := captureDeliverer("/usr/local/bin/terminal-notifier")
		if err := d.DeliverReminder(ev); err != nil {
			t.Fatalf("DeliverReminder: %v", err)
		}
		if len(*calls) != 1 {
			t.Fatalf("calls = %d, want 1", len(*calls))
		}
		joined := strings.Join((*calls)[0].args, " ")
		for _, want := range []string{"09:00 朝会", "5分後に開始します", "-open " + ev.MeetingURL} {
			if !strings.Contains(joined, want) {
				t.Errorf("args missing %q: %s", want, joined)
			}
		}
	})

	t.Run("notify-send gets title and body", func(t *testing.T) {
		d, calls := captureDeliverer("/usr/bin/notify-send")
		if err := d.DeliverReminder(ev); err != nil {
			t.Fatalf("DeliverReminder: %v", err)
		}
		args := (*calls)[0].args
		if len(args) != 2 || args[0] != "09:00 朝会" {
			t.Errorf("args = %v", args)
		}
	})
}

func TestExecDeliverAutoJoin(t *testing.T) {
	d, calls := captureDeliverer("")
	ev := model.Event{Title: "朝会", MeetingURL: "https://meet.google.com/abc-defg-hij"}
	if err := d.DeliverAutoJoin(ev); err != nil {
		t.Fatalf("DeliverAutoJoin: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].args[0] != ev.MeetingURL {
		t.Fatalf("calls = %+v", *calls)
	}

	// No URL means nothing to open.
	*calls = (*calls)[:0]
	if err := d.DeliverAutoJoin(model.Event{Title: "offline"}); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 0 {
		t.Fatal("opened something for an event with no URL")
	}
}
