package domain

import (
	"context"
	"time"
)

// StorageRepo encapsulates the Postgres-backed storage actions the pipeline
// performs outside the durable log: tracking which issues are currently open
// (so the Staleness Checker has something to scan) and persisting strategy
// stats across restarts.
type StorageRepo interface {
	// UpsertOpen records or refreshes an issue as currently open, keyed by URL
	UpsertOpen(ctx context.Context, issue Issue) error

	// ListOpenURLs returns up to limit URLs the Staleness Checker should
	// recheck, least-recently-seen first
	ListOpenURLs(ctx context.Context, limit int) ([]OpenIssueRef, error)

	// MarkClosed records a state transition the Staleness Checker observed
	MarkClosed(ctx context.Context, url string, observedAt time.Time) error

	// SaveStrategyStats persists one strategy's running tally
	SaveStrategyStats(ctx context.Context, stats StrategyStats) error

	// LoadStrategyStats restores every persisted strategy's tally, e.g. at startup
	LoadStrategyStats(ctx context.Context) ([]StrategyStats, error)
}

// OpenIssueRef is the minimal projection of discovered_issues the Staleness
// Checker needs to drive a CheckIssueStatus call.
type OpenIssueRef struct {
	URL        string
	RepoOwner  string
	RepoName   string
	Number     int
	LastSeenAt time.Time
}

// SchedulerPort is the external control surface over the strategy scheduler
type SchedulerPort interface {
	// Trigger advances the named strategy's next run to now; false if unknown
	Trigger(name string) bool
	// GetStats returns every strategy's running tally
	GetStats() map[string]StrategyStats
}

// StalenessPort is the external control surface over the staleness checker
type StalenessPort interface {
	// Sweep re-checks one bounded batch of open issues immediately
	Sweep(ctx context.Context) (checked, changed int, err error)
}
