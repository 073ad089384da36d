// Package module wires the discovery pipeline together as a modkit.Module:
// forge client, dedup, batch publisher, executor, strategy scheduler and
// staleness checker, all sharing deps.RDS and deps.PG.
package module

import (
	"context"

	"discoveryd/internal/adapters/forge"
	"discoveryd/internal/modkit"
	phttp "discoveryd/internal/platform/net/http"
	"discoveryd/internal/services/discovery/dedup"
	"discoveryd/internal/services/discovery/domain"
	"discoveryd/internal/services/discovery/executor"
	"discoveryd/internal/services/discovery/publish"
	discrepo "discoveryd/internal/services/discovery/repo"
	"discoveryd/internal/services/discovery/scheduler"
	"discoveryd/internal/services/discovery/staleness"
)

// Module implements modkit.Module for the discovery pipeline
type Module struct {
	deps modkit.Deps
	ports Ports

	scheduler *scheduler.Scheduler
	staleness *staleness.Checker
	dedup     *dedup.Deduplicator
}

// New constructs and wires the discovery module using deps.Cfg/PG/RDS
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.ForgeToken != "" {
		opts.ForgeToken = overrides.ForgeToken
	}
	if overrides.ForgeBaseURL != "" {
		opts.ForgeBaseURL = overrides.ForgeBaseURL
	}

	forgeClient := forge.NewClient(forge.Options{
		BaseURL:       opts.ForgeBaseURL,
		Token:         opts.ForgeToken,
		Timeout:       opts.ForgeTimeout,
		MaxRetries:    opts.MaxRetries,
		MaxConcurrent: opts.MaxConcurrent,
	})

	dd := dedup.New(deps.RDS, dedup.Options{
		Retention:     opts.DedupRetention,
		SweepInterval: opts.DedupSweepInterval,
	})

	storage := discrepo.New().Bind(deps.PG)

	pub := publish.New(dd, deps.RDS, publish.Options{
		BatchSize: opts.PublishBatchSize,
		MaxLogLen: opts.PublishMaxLogLen,
		StreamKey: opts.StreamKey,
		Recorder:  storage,
	})

	exec := executor.New(forgeClient, pub)

	initialStats := map[string]domain.StrategyStats{}
	if persisted, err := storage.LoadStrategyStats(context.Background()); err == nil {
		for _, st := range persisted {
			initialStats[st.Name] = st
		}
	}

	sched := scheduler.New(exec, scheduler.DefaultStrategies(), scheduler.Options{
		InitialStats: initialStats,
		OnRunComplete: func(name string, stats domain.StrategyStats) {
			_ = storage.SaveStrategyStats(context.Background(), stats)
		},
	})

	stale := staleness.New(forgeClient, storage, deps.RDS, staleness.Options{
		Interval:  opts.StalenessInterval,
		BatchSize: opts.StalenessBatchSize,
		StreamKey: opts.StreamKey,
		MaxLogLen: opts.PublishMaxLogLen,
	})

	m := &Module{deps: deps, scheduler: sched, staleness: stale, dedup: dd}
	m.ports = Ports{Scheduler: sched, Staleness: stale}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "discovery" }

// Ports returns the module's control surfaces (Scheduler, Staleness)
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op: discovery has no HTTP routes
func (m *Module) MountRoutes(_ phttp.Router) {}

// Run starts the scheduler, staleness checker and dedup retention sweep and
// blocks until ctx is canceled, then stops all three gracefully (waiting for
// in-flight runs).
func (m *Module) Run(ctx context.Context) error {
	m.scheduler.Start(ctx)
	m.staleness.Start(ctx)
	go m.dedup.Run(ctx, func(err error) {
		m.deps.Log.Error().Err(err).Msg("discovery: dedup retention sweep failed")
	})
	<-ctx.Done()
	m.scheduler.Stop()
	m.staleness.Stop()
	m.dedup.Stop()
	return nil
}
