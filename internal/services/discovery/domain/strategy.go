package domain

import "time"

// Strategy is a static, named discovery query with its own cadence. The
// scheduler owns a fixed table of these; nothing adapts them at runtime.
type Strategy struct {
	Name      string
	QueryExpr string
	Priority  string
	Interval  time.Duration
	ResultCap int
}

// StrategyStats is the scheduler's per-strategy running tally, exposed via
// GetStats and optionally persisted so it survives a restart.
type StrategyStats struct {
	Name              string    `db:"name"`
	LastRun           time.Time `db:"last_run"`
	IssuesDiscovered  int64     `db:"issues_discovered"`
	Runs              int64     `db:"runs"`
	Errors            int64     `db:"errors"`
}
