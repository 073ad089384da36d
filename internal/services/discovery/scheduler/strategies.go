package scheduler

import "time"

// DefaultStrategies is the static strategy table, ported field-for-field from
// the original scheduler's DISCOVERY_STRATEGIES.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{
			Name:      "good_first_issues",
			QueryExpr: `is:open is:issue label:"good first issue" sort:updated-desc`,
			Priority:  PriorityHigh,
			Interval:  30 * time.Minute,
			ResultCap: 200,
		},
		{
			Name:      "help_wanted",
			QueryExpr: `is:open is:issue label:"help wanted" sort:updated-desc`,
			Priority:  PriorityHigh,
			Interval:  30 * time.Minute,
			ResultCap: 200,
		},
		{
			Name:      "beginner_friendly",
			QueryExpr: `is:open is:issue label:"beginner friendly" OR label:"beginner-friendly" sort:updated-desc`,
			Priority:  PriorityMedium,
			Interval:  60 * time.Minute,
			ResultCap: 100,
		},
		{
			Name:      "python_issues",
			QueryExpr: `is:open is:issue label:"good first issue" language:python sort:stars-desc`,
			Priority:  PriorityMedium,
			Interval:  60 * time.Minute,
			ResultCap: 100,
		},
		{
			Name:      "javascript_issues",
			QueryExpr: `is:open is:issue label:"good first issue" language:javascript sort:stars-desc`,
			Priority:  PriorityMedium,
			Interval:  60 * time.Minute,
			ResultCap: 100,
		},
		{
			Name:      "typescript_issues",
			QueryExpr: `is:open is:issue label:"good first issue" language:typescript sort:stars-desc`,
			Priority:  PriorityMedium,
			Interval:  60 * time.Minute,
			ResultCap: 100,
		},
		{
			Name:      "documentation",
			QueryExpr: `is:open is:issue label:"documentation" label:"good first issue" sort:updated-desc`,
			Priority:  PriorityLow,
			Interval:  120 * time.Minute,
			ResultCap: 50,
		},
		{
			Name:      "trending_repos",
			QueryExpr: `is:open is:issue stars:>1000 label:"good first issue" sort:updated-desc`,
			Priority:  PriorityLow,
			Interval:  120 * time.Minute,
			ResultCap: 100,
		},
	}
}

// Priority mirrors the original strategy table's priority tiers
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// StrategyConfig is one row of the static strategy table
type StrategyConfig struct {
	Name      string
	QueryExpr string
	Priority  Priority
	Interval  time.Duration
	ResultCap int
}
