package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

var epoch = time.Date(2021, 4, 14, 12, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) (*Repository, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(epoch)
	repo, err := NewRepository(filepath.Join(t.TempDir(), "history.db"), clk)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, clk
}

func TestRepository_StartAndGet(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	if _, err := repo.StartRun(ctx, "run-1"); err != nil {
		t.Fatalf("failed to start run: %v", err)
	}

	run, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != StatusRunning || !run.StartedAt.Equal(epoch) || !run.FinishedAt.IsZero() {
		t.Errorf("unexpected run: %+v", run)
	}

	missing, err := repo.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for a missing run, got (%v, %v)", missing, err)
	}
}

func TestRepository_FinishRun(t *testing.T) {
	repo, clk := newRepo(t)
	ctx := context.Background()
	repo.StartRun(ctx, "run-1")

	clk.Advance(40 * time.Minute)
	if err := repo.FinishRun(ctx, "run-1", StatusDeferred, "deferred", `D:\Doom\`, ""); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	run, _ := repo.GetRun(ctx, "run-1")
	if run.Status != StatusDeferred || run.Path != `D:\Doom\` {
		t.Errorf("run not updated: %+v", run)
	}
	if got := run.FinishedAt.Sub(run.StartedAt); got != 40*time.Minute {
		t.Errorf("expected 40m duration, got %s", got)
	}

	if err := repo.FinishRun(ctx, "nope", StatusHalted, "halted", "", ""); err == nil {
		t.Error("expected error finishing a missing run")
	}
}

func TestRepository_Transitions(t *testing.T) {
	repo, clk := newRepo(t)
	ctx := context.Background()
	repo.StartRun(ctx, "run-1")

	steps := []Transition{
		{RunID: "run-1", From: "start", To: "fresh", Phase: "probe"},
		{RunID: "run-1", From: "fresh", To: "prepared", Phase: "prepare", Path: `D:\Doom\`},
		{RunID: "run-1", From: "prepared", To: "located", Phase: "locate", Path: `D:\Doom\`, PID: 4242},
	}
	for i := range steps {
		clk.Advance(time.Second)
		if err := repo.RecordTransition(ctx, &steps[i]); err != nil {
			t.Fatalf("failed to record transition %d: %v", i, err)
		}
		if steps[i].Seq != i+1 {
			t.Errorf("transition %d: expected seq %d, got %d", i, i+1, steps[i].Seq)
		}
	}

	got, err := repo.Transitions(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list transitions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(got))
	}
	if got[2].PID != 4242 || got[2].To != "located" || !got[2].At.Equal(epoch.Add(3*time.Second)) {
		t.Errorf("unexpected last transition: %+v", got[2])
	}
}

func TestRepository_TransitionNeedsRun(t *testing.T) {
	repo, _ := newRepo(t)

	err := repo.RecordTransition(context.Background(), &Transition{RunID: "ghost", From: "start", To: "fresh"})
	if err == nil {
		t.Error("expected foreign key violation for an unknown run")
	}
}

func TestRepository_ListRuns(t *testing.T) {
	repo, clk := newRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		repo.StartRun(ctx, id)
		clk.Advance(time.Hour)
	}

	runs, err := repo.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "c" || runs[2].ID != "a" {
		t.Errorf("expected newest first, got %v", ids(runs))
	}

	runs, _ = repo.ListRuns(ctx, 2)
	if len(runs) != 2 {
		t.Errorf("expected limit 2, got %d", len(runs))
	}
}

func ids(runs []*Run) []string {
	var out []string
	for _, r := range runs {
		out = append(out, r.ID)
	}
	return out
}
