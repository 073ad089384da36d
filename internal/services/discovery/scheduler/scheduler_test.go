package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"discoveryd/internal/services/discovery/domain"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	failErr error
	count   int
}

func (f *fakeRunner) Execute(ctx context.Context, strategy domain.Strategy) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strategy.Name)
	f.mu.Unlock()

	if strategy.Name == f.failOn {
		return 0, f.failErr
	}
	return f.count, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testConfig(name string, interval time.Duration) StrategyConfig {
	return StrategyConfig{
		Name:      name,
		QueryExpr: "is:open",
		Priority:  PriorityHigh,
		Interval:  interval,
		ResultCap: 10,
	}
}

func TestScheduler_RunsOnTick(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{count: 5}
	s := New(r, []StrategyConfig{testConfig("good_first_issues", 10 * time.Millisecond)}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for r.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.callCount() < 2 {
		t.Fatalf("expected at least 2 ticks to have fired, got %d", r.callCount())
	}

	stats := s.GetStats()["good_first_issues"]
	if stats.IssuesDiscovered == 0 {
		t.Fatal("expected issues discovered to accumulate across runs")
	}
	if stats.Runs == 0 {
		t.Fatal("expected runs to be counted")
	}
}

func TestScheduler_TriggerFiresImmediately(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{count: 1}
	s := New(r, []StrategyConfig{testConfig("help_wanted", time.Hour)}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	if !s.Trigger("help_wanted") {
		t.Fatal("expected Trigger on a known strategy to return true")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for r.callCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.callCount() < 1 {
		t.Fatal("expected the manual trigger to cause an immediate run")
	}
}

func TestScheduler_TriggerUnknownStrategyReturnsFalse(t *testing.T) {
	t.Parallel()
	s := New(&fakeRunner{}, []StrategyConfig{testConfig("help_wanted", time.Hour)}, Options{})
	if s.Trigger("does_not_exist") {
		t.Fatal("expected Trigger on an unknown strategy to return false")
	}
}

func TestScheduler_ErrorIncrementsErrorsNotIssues(t *testing.T) {
	t.Parallel()
	boom := errors.New("forge unavailable")
	r := &fakeRunner{failOn: "documentation", failErr: boom}
	s := New(r, []StrategyConfig{testConfig("documentation", 10 * time.Millisecond)}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for r.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stats := s.GetStats()["documentation"]
	if stats.Errors == 0 {
		t.Fatal("expected errors to be counted")
	}
	if stats.IssuesDiscovered != 0 {
		t.Fatalf("expected no issues discovered on a failing strategy, got %d", stats.IssuesDiscovered)
	}
}

func TestScheduler_OnRunCompleteAndOnRunErrorHooksFire(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := &fakeRunner{failOn: "documentation", failErr: boom}

	var mu sync.Mutex
	var completeCalls, errorCalls int
	s := New(r, []StrategyConfig{testConfig("documentation", 10 * time.Millisecond)}, Options{
		OnRunComplete: func(name string, stats domain.StrategyStats) {
			mu.Lock()
			completeCalls++
			mu.Unlock()
		},
		OnRunError: func(name string, err error) {
			mu.Lock()
			errorCalls++
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		mu.Lock()
		done := completeCalls > 0 && errorCalls > 0
		mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if completeCalls == 0 {
		t.Fatal("expected OnRunComplete to fire")
	}
	if errorCalls == 0 {
		t.Fatal("expected OnRunError to fire")
	}
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{count: 1}
	s := New(r, []StrategyConfig{testConfig("help_wanted", time.Hour)}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx) // second call must be a no-op, not a second goroutine set
	defer s.Stop()

	s.Trigger("help_wanted")
	time.Sleep(50 * time.Millisecond)

	if r.callCount() != 1 {
		t.Fatalf("expected exactly 1 run from a single trigger, got %d (double-start?)", r.callCount())
	}
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &blockingRunner{started: started, release: release}

	s := New(blocking, []StrategyConfig{testConfig("help_wanted", time.Hour)}, Options{})
	ctx := context.Background()
	s.Start(ctx)
	s.Trigger("help_wanted")

	<-started
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight run finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the in-flight run finished")
	}
}

func TestScheduler_SeedsStatsFromInitialStats(t *testing.T) {
	t.Parallel()
	seeded := domain.StrategyStats{Name: "help_wanted", Runs: 7, IssuesDiscovered: 42}
	s := New(&fakeRunner{}, []StrategyConfig{testConfig("help_wanted", time.Hour)}, Options{
		InitialStats: map[string]domain.StrategyStats{"help_wanted": seeded},
	})

	got := s.GetStats()["help_wanted"]
	if got.Runs != 7 || got.IssuesDiscovered != 42 {
		t.Fatalf("expected seeded stats to survive construction, got %+v", got)
	}
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Execute(ctx context.Context, strategy domain.Strategy) (int, error) {
	close(b.started)
	<-b.release
	return 1, nil
}
