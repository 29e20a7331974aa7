package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	appLog "calbar/internal/log"
	"calbar/internal/model"
)

// ExecDeliverer delivers reminders through whatever desktop notification
// command the host offers, and auto-joins by opening the meeting URL in
// the default browser. It is the default delivery capability; the
// scheduler itself never knows which backend is in use.
type ExecDeliverer struct {
	// Lead is echoed into the reminder body text.
	Lead time.Duration

	notifierPath string
	run          func(name string, args ...string) error
}

// NewExecDeliverer resolves a notification backend at construction time.
// On macOS, terminal-notifier is preferred with an osascript fallback; on
// Linux, notify-send.
func NewExecDeliverer(lead time.Duration) *ExecDeliverer {
	d := &ExecDeliverer{
		Lead: lead,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
	d.notifierPath = resolveNotifier()
	if d.notifierPath != "" {
		appLog.Info("notification backend resolved", "path", d.notifierPath)
	} else {
		appLog.Warn("no dedicated notifier found, using platform fallback")
	}
	return d
}

func resolveNotifier() string {
	candidates := []string{"terminal-notifier", "notify-send"}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	for _, path := range []string{"/opt/homebrew/bin/terminal-notifier", "/usr/local/bin/terminal-notifier"} {
		if _, err := exec.LookPath(path); err == nil {
			return path
		}
	}
	return ""
}

// DeliverReminder sends a desktop notification for the event.
func (d *ExecDeliverer) DeliverReminder(ev model.Event) error {
	title := fmt.Sprintf("%s %s", ev.Start.Format("15:04"), ev.Title)
	body := fmt.Sprintf("%d分後に開始します", int(d.Lead.Minutes()))
	if ev.MeetingURL != "" {
		body += "\nクリックして会議に参加"
	}

	switch {
	case strings.HasSuffix(d.notifierPath, "terminal-notifier"):
		args := []string{
			"-title", title,
			"-message", body,
			"-sound", "default",
			"-group", "calbar-" + ev.Start.Format(time.RFC3339),
		}
		if ev.MeetingURL != "" {
			args = append(args, "-open", ev.MeetingURL)
		}
		return d.run(d.notifierPath, args...)
	case strings.HasSuffix(d.notifierPath, "notify-send"):
		return d.run(d.notifierPath, title, body)
	case runtime.GOOS == "darwin":
		script := fmt.Sprintf(`display notification %q with title %q sound name "default"`, body, title)
		return d.run("osascript", "-e", script)
	default:
		return fmt.Errorf("no notification backend available")
	}
}

// DeliverAutoJoin opens the event's meeting URL in the default browser.
func (d *ExecDeliverer) DeliverAutoJoin(ev model.Event) error {
	if ev.MeetingURL == "" {
		return nil
	}
	appLog.Info("opening meeting", "title", ev.Title, "url", ev.MeetingURL)
	if runtime.GOOS == "darwin" {
		return d.run("open", ev.MeetingURL)
	}
	return d.run("xdg-open", ev.MeetingURL)
}
