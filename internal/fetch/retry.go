package fetch

import (
	"context"
	"time"

	appLog "calbar/internal/log"
	"calbar/internal/model"
)

// State is the retry orchestrator's phase. It moves Idle -> Attempting and
// ends in Success (non-empty result) or GaveUp (budget exhausted with zero
// events, which is a reported empty period, not an error).
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSuccess
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateSuccess:
		return "success"
	case StateGaveUp:
		return "gave_up"
	}
	return "unknown"
}

// ExtractFunc runs one extraction pass over a snapshot.
type ExtractFunc func(snap *model.PageSnapshot) []model.Event

// Result is the outcome of an orchestrated extraction.
type Result struct {
	Events []model.Event
	// Snapshot is the one the final attempt saw; it carries the account
	// labels and in-scope dates the caller still needs.
	Snapshot *model.PageSnapshot
	State    State
	Attempts int
}

// Orchestrator retries extraction when a pass yields zero events, to
// absorb slow asynchronous rendering of the source page. Transport errors
// are not retried here; they propagate to the caller's cache fallback.
type Orchestrator struct {
	// Attempts is the total attempt budget. Zero means the default of 3.
	Attempts int
	// Settle is the wait after a reload before the next attempt.
	Settle time.Duration
}

const defaultAttempts = 3

// Run snapshots the source and extracts, reloading between attempts while
// the result is empty and budget remains.
func (o *Orchestrator) Run(ctx context.Context, src Source, extract ExtractFunc) (Result, error) {
	budget := o.Attempts
	if budget <= 0 {
		budget = defaultAttempts
	}

	res := Result{State: StateAttempting}
	for attempt := 1; attempt <= budget; attempt++ {
		res.Attempts = attempt

		snap, err := src.Snapshot(ctx)
		if err != nil {
			return res, err
		}
		res.Snapshot = snap

		events := extract(snap)
		if len(events) > 0 {
			res.Events = events
			res.State = StateSuccess
			return res, nil
		}

		if attempt == budget {
			break
		}

		appLog.Info("extraction yielded no events, reloading", "attempt", attempt, "budget", budget)
		if err := src.Reload(ctx); err != nil {
			return res, err
		}
		if err := sleepCtx(ctx, o.Settle); err != nil {
			return res, err
		}
	}

	res.State = StateGaveUp
	appLog.Info("extraction gave up after budget, reporting empty period", "attempts", res.Attempts)
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
