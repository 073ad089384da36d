// Package repo provides the Postgres-backed storage repository for the
// discovery pipeline: the discovered_issues table (the Staleness Checker's
// scan target) and the strategy_runs table (survives a restart).
package repo

import (
	"context"
	"time"

	"discoveryd/internal/modkit/repokit"
	"discoveryd/internal/services/discovery/domain"
)

// New returns a binder producing a Postgres-backed domain.StorageRepo
func New() repokit.Binder[domain.StorageRepo] {
	return repokit.BindFunc[domain.StorageRepo](func(q repokit.Queryer) domain.StorageRepo {
		return &pgStore{q: repokit.RequireQueryer(q)}
	})
}

type pgStore struct{ q repokit.Queryer }

// UpsertOpen records/refreshes an issue as currently open
func (s *pgStore) UpsertOpen(ctx context.Context, issue domain.Issue) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO discovered_issues (url, repo_owner, repo_name, number, state, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (url) DO UPDATE
		SET state = EXCLUDED.state, last_seen_at = now()`,
		issue.URL, issue.RepoOwner, issue.RepoName, issue.Number, string(issue.State),
	)
	return err
}

// ListOpenURLs returns a bounded batch of open issues, oldest-checked first
func (s *pgStore) ListOpenURLs(ctx context.Context, limit int) ([]domain.OpenIssueRef, error) {
	rows, err := s.q.Query(ctx, `
		SELECT url, repo_owner, repo_name, number, last_seen_at
		FROM discovered_issues
		WHERE state = 'open'
		ORDER BY last_seen_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OpenIssueRef
	for rows.Next() {
		var ref domain.OpenIssueRef
		if err := rows.Scan(&ref.URL, &ref.RepoOwner, &ref.RepoName, &ref.Number, &ref.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// MarkClosed records a closed-state transition observed by the Staleness Checker
func (s *pgStore) MarkClosed(ctx context.Context, url string, observedAt time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE discovered_issues SET state = 'closed', last_seen_at = $2
		WHERE url = $1`,
		url, observedAt,
	)
	return err
}

// SaveStrategyStats upserts one strategy's running tally
func (s *pgStore) SaveStrategyStats(ctx context.Context, stats domain.StrategyStats) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO strategy_runs (name, last_run, issues_discovered, runs, errors)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET last_run = EXCLUDED.last_run,
		    issues_discovered = EXCLUDED.issues_discovered,
		    runs = EXCLUDED.runs,
		    errors = EXCLUDED.errors`,
		stats.Name, stats.LastRun, stats.IssuesDiscovered, stats.Runs, stats.Errors,
	)
	return err
}

// LoadStrategyStats restores every persisted strategy's tally
func (s *pgStore) LoadStrategyStats(ctx context.Context) ([]domain.StrategyStats, error) {
	rows, err := s.q.Query(ctx, `
		SELECT name, last_run, issues_discovered, runs, errors FROM strategy_runs`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StrategyStats
	for rows.Next() {
		var st domain.StrategyStats
		if err := rows.Scan(&st.Name, &st.LastRun, &st.IssuesDiscovered, &st.Runs, &st.Errors); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
