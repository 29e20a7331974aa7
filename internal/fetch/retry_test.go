package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"calbar/internal/model"
)

// mockSource scripts Snapshot and Reload outcomes per call.
type mockSource struct {
	snapshots []*model.PageSnapshot
	snapErrs  []error
	reloadErr error

	snapCalls   int
	reloadCalls int
}

func (m *mockSource) Snapshot(ctx context.Context) (*model.PageSnapshot, error) {
	i := m.snapCalls
	m.snapCalls++
	if i < len(m.snapErrs) && m.snapErrs[i] != nil {
		return nil, m.snapErrs[i]
	}
	if i < len(m.snapshots) {
		return m.snapshots[i], nil
	}
	return &model.PageSnapshot{}, nil
}

func (m *mockSource) Reload(ctx context.Context) error {
	m.reloadCalls++
	return m.reloadErr
}

func labelsSnapshot(texts ...string) *model.PageSnapshot {
	snap := &model.PageSnapshot{}
	for _, t := range texts {
		snap.Labels = append(snap.Labels, model.RawLabel{Text: t, Region: model.RegionTimed})
	}
	return snap
}

func extractTitles(snap *model.PageSnapshot) []model.Event {
	var events []model.Event
	for _, l := range snap.Labels {
		events = append(events, model.Event{Title: l.Text, Start: time.Now()})
	}
	return events
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt succeeds without reload", func(t *testing.T) {
		src := &mockSource{snapshots: []*model.PageSnapshot{labelsSnapshot("a")}}
		orch := &Orchestrator{}

		res, err := orch.Run(ctx, src, extractTitles)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.State != StateSuccess || res.Attempts != 1 {
			t.Fatalf("state=%v attempts=%d, want success/1", res.State, res.Attempts)
		}
		if len(res.Events) != 1 || src.reloadCalls != 0 {
			t.Fatalf("events=%d reloads=%d, want 1/0", len(res.Events), src.reloadCalls)
		}
	})

	t.Run("empty page retries and then succeeds", func(t *testing.T) {
		src := &mockSource{snapshots: []*model.PageSnapshot{
			labelsSnapshot(),
			labelsSnapshot("b"),
		}}
		orch := &Orchestrator{}

		res, err := orch.Run(ctx, src, extractTitles)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.State != StateSuccess || res.Attempts != 2 {
			t.Fatalf("state=%v attempts=%d, want success/2", res.State, res.Attempts)
		}
		if src.reloadCalls != 1 {
			t.Fatalf("reloads=%d, want 1", src.reloadCalls)
		}
	})

	t.Run("persistently empty gives up cleanly", func(t *testing.T) {
		src := &mockSource{}
		orch := &Orchestrator{}

		res, err := orch.Run(ctx, src, extractTitles)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.State != StateGaveUp || res.Attempts != defaultAttempts {
			t.Fatalf("state=%v attempts=%d, want gave_up/%d", res.State, res.Attempts, defaultAttempts)
		}
		if len(res.Events) != 0 {
			t.Fatal("gave up with events")
		}
		if src.reloadCalls != defaultAttempts-1 {
			t.Fatalf("reloads=%d, want %d", src.reloadCalls, defaultAttempts-1)
		}
		if res.Snapshot == nil {
			t.Fatal("final snapshot missing from result")
		}
	})

	t.Run("custom budget is honored", func(t *testing.T) {
		src := &mockSource{}
		orch := &Orchestrator{Attempts: 5}

		res, err := orch.Run(ctx, src, extractTitles)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Attempts != 5 || src.snapCalls != 5 {
			t.Fatalf("attempts=%d snaps=%d, want 5/5", res.Attempts, src.snapCalls)
		}
	})

	t.Run("snapshot error propagates without retry", func(t *testing.T) {
		boom := errors.New("browser went away")
		src := &mockSource{snapErrs: []error{boom}}
		orch := &Orchestrator{}

		_, err := orch.Run(ctx, src, extractTitles)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		if src.snapCalls != 1 || src.reloadCalls != 0 {
			t.Fatalf("snaps=%d reloads=%d, want 1/0", src.snapCalls, src.reloadCalls)
		}
	})

	t.Run("reload error propagates", func(t *testing.T) {
		boom := errors.New("reload failed")
		src := &mockSource{reloadErr: boom}
		orch := &Orchestrator{}

		_, err := orch.Run(ctx, src, extractTitles)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	})

	t.Run("cancelled context stops the settle wait", func(t *testing.T) {
		cctx, cancel := context.WithCancel(context.Background())
		cancel()
		src := &mockSource{}
		orch := &Orchestrator{Settle: time.Minute}

		_, err := orch.Run(cctx, src, extractTitles)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "idle",
		StateAttempting: "attempting",
		StateSuccess:    "success",
		StateGaveUp:     "gave_up",
		State(99):       "unknown",
	}
	for st, want := range cases {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", st, got, want)
		}
	}
}
