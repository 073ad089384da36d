// Package executor drives one discovery strategy run to completion: it
// iterates the Forge Client's lazy issue sequence and offers each Issue to
// the Batch Publisher, returning any failure (a recovered panic included) to
// the Scheduler as an error.
package executor

import (
	"context"
	"fmt"

	"discoveryd/internal/core/textsan"
	"discoveryd/internal/services/discovery/domain"
)

// forgeClient is the narrow seam Executor depends on, satisfied by *forge.Client.
type forgeClient interface {
	SearchIssues(ctx context.Context, query string, maxResults int) func(yield func(domain.Issue) bool)
}

// batchPublisher is the narrow seam Executor depends on, satisfied by *publish.Publisher.
type batchPublisher interface {
	Publish(ctx context.Context, issue domain.Issue) (bool, error)
}

// sanitizer is the narrow seam for the Normalizer stage, satisfied by *textsan.Sanitizer.
type sanitizer interface {
	Clean(string) string
}

// Executor runs one Strategy to completion
type Executor struct {
	forge     forgeClient
	publisher batchPublisher
	sanitize  sanitizer
}

// New builds an Executor
func New(forge forgeClient, publisher batchPublisher) *Executor {
	return &Executor{forge: forge, publisher: publisher, sanitize: textsan.New()}
}

// Execute runs strategy to completion, returning the count of Issues actually
// published (duplicates excluded). On any error it stops the run and returns
// the count published so far alongside the error; callers (the Scheduler)
// increment the strategy's error counter and continue — a run failure never
// crashes the process.
func (e *Executor) Execute(ctx context.Context, strategy domain.Strategy) (published int, runErr error) {
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("executor: panic running strategy %q: %v", strategy.Name, r)
		}
	}()

	for issue := range e.forge.SearchIssues(ctx, strategy.QueryExpr, strategy.ResultCap) {
		issue.Title = e.sanitize.Clean(issue.Title)
		issue.Body = e.sanitize.Clean(issue.Body)

		ok, err := e.publisher.Publish(ctx, issue)
		if err != nil {
			return published, fmt.Errorf("executor: publish failed for strategy %q: %w", strategy.Name, err)
		}
		if ok {
			published++
		}
	}
	return published, nil
}
