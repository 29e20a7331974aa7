// Package notify arms delayed reminder and auto-join actions against a
// canonical event list. The scheduler owns all timer and dedup state
// behind one lock; callers only see Reschedule and CancelAll.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "calbar/internal/log"
	"calbar/internal/model"
)

// Deliverer is the injected delivery capability. Both methods may fail;
// failures are logged by the scheduler and never propagated.
type Deliverer interface {
	DeliverReminder(ev model.Event) error
	DeliverAutoJoin(ev model.Event) error
}

// Options tunes the scheduler.
type Options struct {
	// Lead is how long before an event's start the reminder fires.
	Lead time.Duration
	// JoinGrace is the post-start window during which an auto-join still
	// fires immediately instead of being treated as missed.
	JoinGrace time.Duration
	// AutoJoin enables the auto-join actions.
	AutoJoin bool
}

type actionKind string

const (
	kindReminder actionKind = "reminder"
	kindAutoJoin actionKind = "auto_join"
)

// scheduledAction is one live single-fire delayed action.
type scheduledAction struct {
	id    string
	kind  actionKind
	event model.Event
	timer *time.Timer
}

// Scheduler converts event lists into armed timer actions with at-most-once
// semantics per event key and kind. All tracking state is guarded by mu;
// delivery never runs while the lock is held.
type Scheduler struct {
	deliver Deliverer
	opts    Options

	mu         sync.Mutex
	reminders  map[string]*scheduledAction
	joins      map[string]*scheduledAction
	notified   map[string]struct{}
	autoJoined map[string]struct{}

	now func() time.Time
}

// NewScheduler builds a scheduler delivering through d.
func NewScheduler(d Deliverer, opts Options) *Scheduler {
	if opts.Lead <= 0 {
		opts.Lead = 5 * time.Minute
	}
	if opts.JoinGrace <= 0 {
		opts.JoinGrace = 60 * time.Second
	}
	return &Scheduler{
		deliver:    d,
		opts:       opts,
		reminders:  make(map[string]*scheduledAction),
		joins:      make(map[string]*scheduledAction),
		notified:   make(map[string]struct{}),
		autoJoined: make(map[string]struct{}),
		now:        time.Now,
	}
}

// Stats reports live action and tracking-set sizes.
func (s *Scheduler) Stats() (live, notified, autoJoined int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reminders) + len(s.joins), len(s.notified), len(s.autoJoined)
}

// Reschedule replaces all armed actions with a fresh set computed from
// events and now. Previously armed actions are cancelled unconditionally.
// Tracking sets shrink to the keys present in events, so a key that
// disappears is forgotten and a later event reusing the identical
// title+start would be treated as already handled only while it stays in
// the list.
//
// A reminder whose window already opened (notify time passed, start not
// yet) fires synchronously within this call, exactly once. An auto-join
// inside the grace window fires immediately; one past the window is
// skipped outright.
func (s *Scheduler) Reschedule(events []model.Event, now time.Time) {
	var fireReminders, fireJoins []model.Event

	s.mu.Lock()

	s.cancelAllLocked()

	active := make(map[string]struct{})
	for _, ev := range events {
		if !ev.AllDay {
			active[ev.Key()] = struct{}{}
		}
	}
	intersect(s.notified, active)
	intersect(s.autoJoined, active)

	immediate := 0
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		key := ev.Key()
		if _, done := s.notified[key]; done {
			continue
		}
		if !ev.Start.After(now) {
			continue
		}

		notifyAt := ev.Start.Add(-s.opts.Lead)
		if !notifyAt.After(now) {
			// Window already open but the event has not started: catch up
			// now rather than dropping the reminder.
			s.notified[key] = struct{}{}
			fireReminders = append(fireReminders, ev)
			immediate++
			continue
		}

		s.armLocked(s.reminders, key, kindReminder, ev, notifyAt.Sub(now))
	}

	joinImmediate, joinArmed := 0, 0
	if s.opts.AutoJoin {
		for _, ev := range events {
			if ev.AllDay || ev.MeetingURL == "" {
				continue
			}
			key := ev.Key()
			if _, done := s.autoJoined[key]; done {
				continue
			}

			switch {
			case !ev.Start.After(now) && !now.After(ev.Start.Add(s.opts.JoinGrace)):
				// start <= now <= start+grace
				s.autoJoined[key] = struct{}{}
				fireJoins = append(fireJoins, ev)
				joinImmediate++
			case now.After(ev.Start):
				// Too late; the key cannot reappear with this start, so
				// the skip is final.
			default:
				s.armLocked(s.joins, key, kindAutoJoin, ev, ev.Start.Sub(now))
				joinArmed++
			}
		}
	}

	armed := len(s.reminders)
	s.mu.Unlock()

	for _, ev := range fireReminders {
		s.runReminder(ev)
	}
	for _, ev := range fireJoins {
		s.runJoin(ev)
	}

	appLog.Info("notifications rescheduled",
		"armed", armed,
		"immediate", immediate,
		"join_armed", joinArmed,
		"join_immediate", joinImmediate,
	)
}

// armLocked creates and stores a single-fire action. Caller holds mu.
func (s *Scheduler) armLocked(table map[string]*scheduledAction, key string, kind actionKind, ev model.Event, delay time.Duration) {
	act := &scheduledAction{
		id:    uuid.NewString(),
		kind:  kind,
		event: ev,
	}
	act.timer = time.AfterFunc(delay, func() {
		s.fire(table, key, act)
	})
	table[key] = act
	appLog.Debug("action armed", "action_id", act.id, "kind", string(kind), "key", key, "delay", delay.Round(time.Second))
}

// fire runs in the timer's goroutine. It marks the key handled before
// delivering, so a delivery failure is never retried. An action that lost
// the race against a concurrent cancellation still fires at most once; the
// dedup sets keep that benign.
func (s *Scheduler) fire(table map[string]*scheduledAction, key string, act *scheduledAction) {
	s.mu.Lock()
	if table[key] == act {
		delete(table, key)
	}
	switch act.kind {
	case kindReminder:
		s.notified[key] = struct{}{}
	case kindAutoJoin:
		s.autoJoined[key] = struct{}{}
	}
	s.mu.Unlock()

	appLog.Debug("action firing", "action_id", act.id, "kind", string(act.kind), "key", key)
	switch act.kind {
	case kindReminder:
		s.runReminder(act.event)
	case kindAutoJoin:
		s.runJoin(act.event)
	}
}

func (s *Scheduler) runReminder(ev model.Event) {
	if err := s.deliver.DeliverReminder(ev); err != nil {
		appLog.Error("reminder delivery failed", err, "title", ev.Title)
	}
}

func (s *Scheduler) runJoin(ev model.Event) {
	if !s.now().Before(ev.End) {
		appLog.Info("auto-join skipped, meeting already ended", "title", ev.Title)
		return
	}
	if err := s.deliver.DeliverAutoJoin(ev); err != nil {
		appLog.Error("auto-join delivery failed", err, "title", ev.Title)
	}
}

// CancelAll stops every armed action. Cancelling an already-fired timer is
// a no-op. Called on teardown and at the top of every reschedule.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
}

func (s *Scheduler) cancelAllLocked() {
	for key, act := range s.reminders {
		act.timer.Stop()
		delete(s.reminders, key)
	}
	for key, act := range s.joins {
		act.timer.Stop()
		delete(s.joins, key)
	}
}

// intersect removes keys of set not present in keep.
func intersect(set, keep map[string]struct{}) {
	for k := range set {
		if _, ok := keep[k]; !ok {
			delete(set, k)
		}
	}
}
