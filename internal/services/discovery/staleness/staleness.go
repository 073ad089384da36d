// Package staleness implements the Staleness Checker: a separate scheduled
// job that re-polls previously discovered open issues and appends an
// IssueStateChange record when the forge now reports one closed or gone.
package staleness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"discoveryd/internal/adapters/forge"
	"discoveryd/internal/services/discovery/domain"
)

// DefaultInterval matches the original scheduler's add_staleness_check_job default
const DefaultInterval = 6 * time.Hour

// DefaultBatchSize bounds how many open URLs one sweep rechecks
const DefaultBatchSize = 500

// DefaultStreamKey is the same stream the Batch Publisher appends Issues to
const DefaultStreamKey = "issues:discovered"

// DefaultMaxLogLen mirrors publish.DefaultMaxLogLen - the two writers share one stream
const DefaultMaxLogLen = 100_000

type forgeClient interface {
	CheckIssueStatus(ctx context.Context, owner, repo string, number int) (forge.IssueStatus, error)
}

type storageRepo interface {
	ListOpenURLs(ctx context.Context, limit int) ([]domain.OpenIssueRef, error)
	MarkClosed(ctx context.Context, url string, observedAt time.Time) error
}

type durableLog interface {
	XAddTrimmed(ctx context.Context, key string, maxLen int64, values map[string]any) (string, error)
}

// Options configures a Checker
type Options struct {
	Interval     time.Duration
	BatchSize    int
	StreamKey    string
	MaxLogLen    int64
	Now          func() time.Time
	OnCheckError func(url string, err error)
}

// Checker re-polls open issues and records closures/removals
type Checker struct {
	forge     forgeClient
	repo      storageRepo
	log       durableLog
	interval  time.Duration
	batchSize int
	streamKey string
	maxLogLen int64
	now       func() time.Time

	onCheckError func(url string, err error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Checker with spec defaults for any zero-valued Option
func New(forge forgeClient, repo storageRepo, log durableLog, o Options) *Checker {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.StreamKey == "" {
		o.StreamKey = DefaultStreamKey
	}
	if o.MaxLogLen <= 0 {
		o.MaxLogLen = DefaultMaxLogLen
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Checker{
		forge:        forge,
		repo:         repo,
		log:          log,
		interval:     o.Interval,
		batchSize:    o.BatchSize,
		streamKey:    o.StreamKey,
		maxLogLen:    o.MaxLogLen,
		now:          o.Now,
		onCheckError: o.OnCheckError,
	}
}

// Start is idempotent; a second call while running is a no-op
func (c *Checker) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(runCtx)
	}()
}

// Stop cancels the ticker loop and waits for an in-flight sweep to finish
func (c *Checker) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *Checker) loop(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep reads one bounded batch of open URLs and re-checks each through the
// forge client, recording any closed/gone transition. It never mutates an
// Issue already in the log - transitions are a separate append.
func (c *Checker) Sweep(ctx context.Context) (checked, changed int, err error) {
	refs, err := c.repo.ListOpenURLs(ctx, c.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("staleness: list open urls: %w", err)
	}

	for _, ref := range refs {
		status, checkErr := c.forge.CheckIssueStatus(ctx, ref.RepoOwner, ref.RepoName, ref.Number)
		checked++
		if checkErr != nil {
			if isNotFound(checkErr) {
				if err := c.recordChange(ctx, ref.URL, domain.StateChangeReasonNotFound); err != nil && c.onCheckError != nil {
					c.onCheckError(ref.URL, err)
					continue
				}
				changed++
				continue
			}
			if c.onCheckError != nil {
				c.onCheckError(ref.URL, checkErr)
			}
			continue
		}

		if domain.NormalizeState(status.State) == domain.IssueStateOpen {
			continue
		}
		if err := c.recordChange(ctx, ref.URL, domain.StateChangeReasonClosed); err != nil {
			if c.onCheckError != nil {
				c.onCheckError(ref.URL, err)
			}
			continue
		}
		changed++
	}
	return checked, changed, nil
}

func (c *Checker) recordChange(ctx context.Context, url string, reason domain.StateChangeReason) error {
	observedAt := c.now()
	change := domain.IssueStateChange{
		URL:        url,
		NewState:   domain.IssueStateClosed,
		Reason:     reason,
		ObservedAt: observedAt,
	}
	raw, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("staleness: marshal state change for %q: %w", url, err)
	}
	if _, err := c.log.XAddTrimmed(ctx, c.streamKey, c.maxLogLen, map[string]any{
		"kind": "issue_state_change",
		"data": string(raw),
	}); err != nil {
		return fmt.Errorf("staleness: append state change for %q: %w", url, err)
	}
	return c.repo.MarkClosed(ctx, url, observedAt)
}

type httpStatuser interface{ HTTPStatus() int }

func isNotFound(err error) bool {
	var se httpStatuser
	if errors.As(err, &se) {
		status := se.HTTPStatus()
		return status == 404 || status == 410
	}
	return false
}
