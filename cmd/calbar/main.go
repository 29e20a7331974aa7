package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"calbar/internal/cache"
	"calbar/internal/config"
	"calbar/internal/export"
	"calbar/internal/fetch"
	appLog "calbar/internal/log"
	"calbar/internal/model"
	"calbar/internal/notify"
	"calbar/internal/owner"
	"calbar/internal/parse"
	"calbar/internal/static"
	"calbar/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	exportPath string
	debug      bool
}

func parseFlags() flagConfig {
	var cfg flagConfig

	home, _ := os.UserHomeDir()
	defaultConfig := home + "/.calbar/config.yaml"

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch cycle and exit")
	flag.StringVar(&cfg.exportPath, "export", "", "Run one fetch cycle, write the schedule as ICS to this path, and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

// eventState holds the current normalized event set for the API.
type eventState struct {
	mu      sync.RWMutex
	events  []model.Event
	updated time.Time
}

func (s *eventState) Set(events []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
	s.updated = time.Now()
}

func (s *eventState) Events() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *eventState) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// daemon wires the fetch, normalization, cache, and notification pieces.
type daemon struct {
	cfg       *config.Config
	loc       *time.Location
	client    *fetch.Client
	orch      *fetch.Orchestrator
	store     *cache.Store
	scheduler *notify.Scheduler
	state     *eventState
}

// runCycle performs one full fetch cycle: open the browser, extract with
// retry, filter by ownership, merge static events, persist, and
// reschedule notifications. A transport failure falls back to the cached
// event set.
func (d *daemon) runCycle(ctx context.Context) {
	events, err := d.fetchAndNormalize(ctx)
	if err != nil {
		appLog.Error("fetch cycle failed, trying cache", err)
		cached, cerr := d.store.Load()
		if cerr != nil {
			if errors.Is(cerr, cache.ErrNoCache) {
				appLog.Warn("no cached events available")
			} else {
				appLog.Error("cache load failed", cerr)
			}
			return
		}
		d.apply(cached)
		return
	}

	if err := d.store.Persist(events); err != nil {
		appLog.Error("cache save failed", err)
	}
	d.apply(events)
}

func (d *daemon) apply(events []model.Event) {
	d.state.Set(events)
	now := time.Now().In(d.loc)
	d.scheduler.Reschedule(todaysEvents(events, now), now)
	appLog.Info("schedule updated", "events", len(events))
}

// todaysEvents keeps the events starting on now's calendar day. Only those
// get notification timers; later days wait for a later refresh cycle, so
// timers never outlive the day they were armed for.
func todaysEvents(events []model.Event, now time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if model.SameDay(ev.Start, now) {
			out = append(out, ev)
		}
	}
	return out
}

func (d *daemon) fetchAndNormalize(ctx context.Context) ([]model.Event, error) {
	session, err := d.client.Open(ctx)
	if errors.Is(err, fetch.ErrNotAuthenticated) {
		appLog.Info("session expired, starting interactive sign-in")
		if aerr := d.client.Authenticate(ctx); aerr != nil {
			return nil, aerr
		}
		session, err = d.client.Open(ctx)
	}
	if err != nil {
		return nil, err
	}
	defer session.Close()

	pipeline := &parse.Pipeline{Loc: d.loc}
	if d.cfg.OwnCalendarOnly {
		pipeline.CalendarName = owner.ExtractCalendarName
	}

	res, err := d.orch.Run(ctx, session, pipeline.Run)
	if err != nil {
		return nil, err
	}

	events := res.Events
	if d.cfg.OwnCalendarOnly && res.Snapshot != nil {
		aliases := owner.DiscoverAliases(res.Snapshot.AccountLabels)
		events = owner.Filter(events, aliases)
	}

	// Merge config-declared events over the view window.
	if len(d.cfg.StaticEvents) > 0 && res.Snapshot != nil && len(res.Snapshot.Dates) > 0 {
		dates := res.Snapshot.Dates
		rangeStart := dates[0]
		rangeEnd := dates[len(dates)-1].Add(24 * time.Hour)
		events = static.Merge(events, static.Expand(d.cfg.StaticEvents, d.loc, rangeStart, rangeEnd))
	}

	if !d.cfg.ShowAllDay {
		timed := events[:0]
		for _, ev := range events {
			if !ev.AllDay {
				timed = append(timed, ev)
			}
		}
		events = timed
	}

	return events, nil
}

func writeICS(path string, events []model.Event) error {
	return os.WriteFile(path, export.ICS(events, time.Now()), 0o644)
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	if conf.LogPath != "" {
		if err := appLog.EnableFile(conf.LogPath); err != nil {
			appLog.Warn("log file unavailable, continuing with stderr only", "path", conf.LogPath)
		}
	}
	defer appLog.Close()

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone, falling back to local", err, "timezone", conf.Timezone)
		loc = time.Local
	}

	appLog.Info("calbar starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"lead_minutes", conf.LeadMinutes,
		"auto_join", conf.AutoJoin,
		"own_calendar_only", conf.OwnCalendarOnly,
		"once", flags.once,
	)

	lead := time.Duration(conf.LeadMinutes) * time.Minute
	d := &daemon{
		cfg: conf,
		loc: loc,
		client: &fetch.Client{
			ProfileDir: conf.BrowserProfile,
			Headless:   conf.Headless,
			Loc:        loc,
		},
		orch: &fetch.Orchestrator{
			Attempts: conf.RetryAttempts,
			Settle:   time.Duration(conf.RetrySettleSeconds) * time.Second,
		},
		store: cache.NewStore(conf.CachePath),
		scheduler: notify.NewScheduler(notify.NewExecDeliverer(lead), notify.Options{
			Lead:      lead,
			JoinGrace: time.Duration(conf.JoinGraceSeconds) * time.Second,
			AutoJoin:  conf.AutoJoin,
		}),
		state: &eventState{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once || flags.exportPath != "" {
		d.runCycle(ctx)
		if flags.exportPath != "" {
			if err := writeICS(flags.exportPath, d.state.Events()); err != nil {
				appLog.Error("ICS export failed", err, "path", flags.exportPath)
				os.Exit(1)
			}
			appLog.Info("ICS exported", "path", flags.exportPath)
		}
		d.scheduler.CancelAll()
		return
	}

	// Initial cycle, then cron-driven refreshes.
	go d.runCycle(ctx)

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() { d.runCycle(ctx) }); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()

	if err := web.Serve(ctx, conf, d.state); err != nil {
		appLog.Error("HTTP server stopped", err)
	}

	<-c.Stop().Done()
	d.scheduler.CancelAll()
	appLog.Info("calbar exiting")
}
