// Package scheduler owns the static strategy table and drives one
// ticker-backed worker goroutine per strategy, enforcing max_instances=1 and
// tick coalescing the way a single sequential consumer naturally does.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discoveryd/internal/services/discovery/domain"
)

// runner is the narrow seam Scheduler depends on, satisfied by *executor.Executor.
type runner interface {
	Execute(ctx context.Context, strategy domain.Strategy) (int, error)
}

// OnRunComplete is invoked after each strategy run, letting callers persist
// stats to Postgres (the strategy_runs table); it is optional.
type OnRunComplete func(name string, stats domain.StrategyStats)

// OnRunError is invoked when a strategy run returns an error; it is optional
// and exists purely for logging — it never affects control flow.
type OnRunError func(name string, err error)

type strategyState struct {
	cfg       StrategyConfig
	triggerCh chan struct{}

	mu    sync.RWMutex
	stats domain.StrategyStats
}

// Scheduler owns N statically configured Strategies
type Scheduler struct {
	exec runner

	mu         sync.Mutex
	running    bool
	strategies []*strategyState
	byName     map[string]*strategyState

	cancel context.CancelFunc
	wg     sync.WaitGroup

	onRunComplete OnRunComplete
	onRunError    OnRunError
}

// Options configures a Scheduler
type Options struct {
	OnRunComplete OnRunComplete
	OnRunError    OnRunError
	// InitialStats seeds a strategy's tally from a persisted row (e.g. loaded
	// via domain.StorageRepo.LoadStrategyStats at startup) instead of zero.
	InitialStats map[string]domain.StrategyStats
}

// New builds a Scheduler over the given strategy configs, executed via exec
func New(exec runner, configs []StrategyConfig, o Options) *Scheduler {
	s := &Scheduler{
		exec:          exec,
		byName:        make(map[string]*strategyState, len(configs)),
		onRunComplete: o.OnRunComplete,
		onRunError:    o.OnRunError,
	}
	for _, cfg := range configs {
		stats := domain.StrategyStats{Name: cfg.Name}
		if seeded, ok := o.InitialStats[cfg.Name]; ok {
			stats = seeded
		}
		st := &strategyState{
			cfg:       cfg,
			triggerCh: make(chan struct{}, 1),
			stats:     stats,
		}
		s.strategies = append(s.strategies, st)
		s.byName[cfg.Name] = st
	}
	return s
}

// Start is idempotent: a second call while already running is a no-op
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, st := range s.strategies {
		s.wg.Add(1)
		go func(st *strategyState) {
			defer s.wg.Done()
			s.runStrategyLoop(runCtx, st)
		}(st)
	}
}

// Stop cancels the timer loop and waits (indefinitely) for in-flight runs to
// complete before returning.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Trigger advances the named strategy's next fire to now. At most one trigger
// is held pending: one received while a run is in flight is queued and runs
// after it, and one received while another is already pending is dropped
// (coalesced) rather than blocking.
func (s *Scheduler) Trigger(name string) bool {
	st, ok := s.byName[name]
	if !ok {
		return false
	}
	select {
	case st.triggerCh <- struct{}{}:
	default:
	}
	return true
}

// GetStats returns a snapshot of every strategy's statistics
func (s *Scheduler) GetStats() map[string]domain.StrategyStats {
	out := make(map[string]domain.StrategyStats, len(s.strategies))
	for _, st := range s.strategies {
		st.mu.RLock()
		out[st.cfg.Name] = st.stats
		st.mu.RUnlock()
	}
	return out
}

func (s *Scheduler) runStrategyLoop(ctx context.Context, st *strategyState) {
	t := time.NewTicker(st.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.runOnce(ctx, st)
		case <-st.triggerCh:
			s.runOnce(ctx, st)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, st *strategyState) {
	strategy := domain.Strategy{
		Name:      st.cfg.Name,
		QueryExpr: st.cfg.QueryExpr,
		Priority:  string(st.cfg.Priority),
		Interval:  st.cfg.Interval,
		ResultCap: st.cfg.ResultCap,
	}

	start := time.Now().UTC()
	count, err := s.exec.Execute(ctx, strategy)

	st.mu.Lock()
	st.stats.LastRun = start
	st.stats.Runs++
	if err != nil {
		st.stats.Errors++
	} else {
		st.stats.IssuesDiscovered += int64(count)
	}
	snapshot := st.stats
	st.mu.Unlock()

	if err != nil && s.onRunError != nil {
		s.onRunError(st.cfg.Name, fmt.Errorf("scheduler: strategy %q: %w", st.cfg.Name, err))
	}
	if s.onRunComplete != nil {
		s.onRunComplete(st.cfg.Name, snapshot)
	}
}
