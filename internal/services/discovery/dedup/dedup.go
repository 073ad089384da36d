// Package dedup implements the two-tier seen-URL deduplicator: a process-local
// map backed by a shared Redis set, with a parallel sorted set swept
// periodically to enforce the 30-day retention guarantee.
package dedup

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultRetention is the minimum guaranteed window a seen URL stays
	// known to the shared tier.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultSweepInterval governs how often expired shared-tier entries
	// are evicted.
	DefaultSweepInterval = time.Hour

	seenSetKey = "issues:seen_urls"
	seenTSKey  = "issues:seen_urls:ts"
)

// sharedSet is the narrow seam Deduplicator depends on, satisfied by *rds.RDS.
// Tests provide fakes against this interface instead of dialing redis.
type sharedSet interface {
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SAdd(ctx context.Context, key, member string) (bool, error)
	SRem(ctx context.Context, key, member string) error
	ZAddTimestamped(ctx context.Context, key, member string, when time.Time) error
	ZRangeExpired(ctx context.Context, key string, cutoff time.Time) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
}

// Options configures a Deduplicator
type Options struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

// Deduplicator rejects duplicate issue URLs across local and shared tiers
type Deduplicator struct {
	mu    sync.RWMutex
	local map[string]struct{}

	shared        sharedSet
	retention     time.Duration
	sweepInterval time.Duration

	now func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Deduplicator backed by shared
func New(shared sharedSet, o Options) *Deduplicator {
	retention := o.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	sweep := o.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	return &Deduplicator{
		local:         make(map[string]struct{}),
		shared:        shared,
		retention:     retention,
		sweepInterval: sweep,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// IsDuplicate checks the local set first, then the shared set on a miss,
// populating local on a shared-tier hit.
func (d *Deduplicator) IsDuplicate(ctx context.Context, url string) (bool, error) {
	d.mu.RLock()
	_, hit := d.local[url]
	d.mu.RUnlock()
	if hit {
		return true, nil
	}

	ok, err := d.shared.SIsMember(ctx, seenSetKey, url)
	if err != nil {
		return false, err
	}
	if ok {
		d.mu.Lock()
		d.local[url] = struct{}{}
		d.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// MarkSeen adds url to both tiers; calling it twice is equivalent to once.
func (d *Deduplicator) MarkSeen(ctx context.Context, url string) error {
	d.mu.Lock()
	d.local[url] = struct{}{}
	d.mu.Unlock()

	if _, err := d.shared.SAdd(ctx, seenSetKey, url); err != nil {
		return err
	}
	return d.shared.ZAddTimestamped(ctx, seenTSKey, url, d.now())
}

// Sweep evicts shared-tier entries older than the retention window and
// returns the number evicted.
func (d *Deduplicator) Sweep(ctx context.Context) (int, error) {
	cutoff := d.now().Add(-d.retention)
	expired, err := d.shared.ZRangeExpired(ctx, seenTSKey, cutoff)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	for _, url := range expired {
		if err := d.shared.SRem(ctx, seenSetKey, url); err != nil {
			return 0, err
		}
	}
	if err := d.shared.ZRem(ctx, seenTSKey, expired...); err != nil {
		return 0, err
	}
	return len(expired), nil
}

// Run starts the periodic sweep loop; it returns when ctx is canceled or
// Stop is called.
func (d *Deduplicator) Run(ctx context.Context, onSweepErr func(error)) {
	defer close(d.doneCh)
	t := time.NewTicker(d.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-t.C:
			if _, err := d.Sweep(ctx); err != nil && onSweepErr != nil {
				onSweepErr(err)
			}
		}
	}
}

// Stop halts the sweep loop started by Run and waits for it to exit.
func (d *Deduplicator) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.doneCh
}
