// Command discoveryd runs the issue discovery and ingestion pipeline as a
// long-lived worker process: the strategy scheduler, the staleness checker,
// and the dedup/publish machinery feeding the durable Redis stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discoveryd/internal/modkit"
	modreg "discoveryd/internal/modkit/module"
	"discoveryd/internal/platform/config"
	"discoveryd/internal/platform/logger"
	"discoveryd/internal/platform/store"

	discmod "discoveryd/internal/services/discovery/module"
)

const (
	statsInterval = time.Minute
	drainTimeout  = 30 * time.Second
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chCfg.MayBool("ENABLED", true),
			URL:     chCfg.MustString("DBURL"),
		},
		RDS: store.RedisConfig{
			Enabled: true,
			Addr:    rdsCfg.MustString("ADDR"),
			DB:      rdsCfg.MayInt("DB", 0),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("discoveryd: store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("discoveryd: failed to close store")
		}
	}()

	deps := modkit.Deps{Cfg: root, PG: st.PG, CH: st.CH, RDS: st.RDS, Log: *l}

	mod := discmod.New(deps, discmod.Options{})
	modreg.Register(mod.Name(), mod.Ports())
	sup := newSupervisor(mod, *l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	go emitStats(statsCtx, mod, deps.CH, *l)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	l.Info().Msg("discoveryd: shutdown signal received, draining")
	cancel()
	stopStats()

	select {
	case err := <-runDone:
		if err != nil {
			l.Error().Err(err).Msg("discoveryd: supervisor exited with error")
			os.Exit(1)
		}
	case <-time.After(drainTimeout):
		l.Error().Msg("discoveryd: shutdown timed out waiting for in-flight runs")
		os.Exit(1)
	}

	l.Info().Str("state", sup.State().String()).Msg("discoveryd: stopped")
}

// emitStats logs every strategy's running tally once a minute and, when
// ClickHouse is configured, writes the same tally as one row per strategy
// for longer-term trend queries.
func emitStats(ctx context.Context, mod *discmod.Module, ch store.Clickhouse, log logger.Logger) {
	t := time.NewTicker(statsInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ports := modreg.MustPortsOf[discmod.Ports](mod)
			for name, stat := range ports.Scheduler.GetStats() {
				log.Info().
					Str("strategy", name).
					Int64("runs", stat.Runs).
					Int64("errors", stat.Errors).
					Int64("issues_discovered", stat.IssuesDiscovered).
					Time("last_run", stat.LastRun).
					Msg("discoveryd: strategy stats")

				if ch == nil {
					continue
				}
				row := map[string]any{
					"strategy":          name,
					"runs":              stat.Runs,
					"errors":            stat.Errors,
					"issues_discovered": stat.IssuesDiscovered,
					"last_run":          stat.LastRun,
				}
				if err := ch.Insert(ctx, "strategy_metrics", row); err != nil {
					log.Error().Err(err).Str("strategy", name).Msg("discoveryd: failed to write strategy metrics")
				}
			}
		}
	}
}
