// Package publish implements the Batch Publisher: a bounded buffer of
// normalized Issues that flushes to the durable log in capped-size batches.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"discoveryd/internal/services/discovery/domain"
)

const (
	// DefaultBatchSize is the flush threshold (spec.md §4.4 / §6 BATCH_SIZE).
	DefaultBatchSize = 100
	// DefaultMaxLogLen is the approximate durable-log cap (spec.md §6 MAX_LOG_LEN).
	DefaultMaxLogLen = 100_000
	// DefaultStreamKey is the durable log's stream identifier (spec.md §6).
	DefaultStreamKey = "issues:discovered"
)

// durableLog is the narrow seam Publisher depends on, satisfied by *rds.RDS.
type durableLog interface {
	XAddTrimmed(ctx context.Context, key string, maxLen int64, values map[string]any) (string, error)
}

// deduper is the narrow seam Publisher depends on, satisfied by *dedup.Deduplicator.
type deduper interface {
	IsDuplicate(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url string) error
}

// recorder is the narrow seam Publisher depends on to keep the
// discovered_issues table in step with what reaches the durable log,
// satisfied by domain.StorageRepo (only UpsertOpen is used).
type recorder interface {
	UpsertOpen(ctx context.Context, issue domain.Issue) error
}

// Options configures a Publisher
type Options struct {
	BatchSize int
	MaxLogLen int64
	StreamKey string
	// Recorder persists every accepted Issue as open in Postgres so the
	// Staleness Checker has something to scan. Optional; nil skips recording.
	Recorder recorder
	// OnBatchDropped is called when a flush fails after its single retry;
	// n is the number of Issues dropped.
	OnBatchDropped func(n int, err error)
}

// Publisher buffers normalized Issues and flushes them to the durable log
type Publisher struct {
	mu  sync.Mutex
	buf []domain.Issue

	dedup    deduper
	log      durableLog
	recorder recorder

	batchSize int
	maxLogLen int64
	streamKey string

	onBatchDropped func(n int, err error)
}

// New builds a Publisher
func New(dedup deduper, log durableLog, o Options) *Publisher {
	batchSize := o.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxLogLen := o.MaxLogLen
	if maxLogLen <= 0 {
		maxLogLen = DefaultMaxLogLen
	}
	streamKey := o.StreamKey
	if streamKey == "" {
		streamKey = DefaultStreamKey
	}
	return &Publisher{
		dedup:          dedup,
		log:            log,
		recorder:       o.Recorder,
		batchSize:      batchSize,
		maxLogLen:      maxLogLen,
		streamKey:      streamKey,
		onBatchDropped: o.OnBatchDropped,
	}
}

// Publish offers issue to the buffer. Returns false for a missing URL or a
// duplicate; otherwise marks the URL seen, buffers the issue, and flushes if
// the buffer has reached batchSize.
func (p *Publisher) Publish(ctx context.Context, issue domain.Issue) (bool, error) {
	if issue.URL == "" {
		return false, nil
	}

	dup, err := p.dedup.IsDuplicate(ctx, issue.URL)
	if err != nil {
		return false, err
	}
	if dup {
		return false, nil
	}

	// Mark seen before append: at-most-once seen-marking, at-least-once
	// publish (see DESIGN.md open question decision).
	if err := p.dedup.MarkSeen(ctx, issue.URL); err != nil {
		return false, err
	}

	if p.recorder != nil {
		if err := p.recorder.UpsertOpen(ctx, issue); err != nil {
			return false, err
		}
	}

	p.mu.Lock()
	p.buf = append(p.buf, issue)
	shouldFlush := len(p.buf) >= p.batchSize
	p.mu.Unlock()

	if shouldFlush {
		if _, err := p.Flush(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Flush atomically drains the buffer and appends all records to the durable
// log. A failing append is retried once; on repeated failure the batch is
// dropped and OnBatchDropped is invoked. Returns the number published.
func (p *Publisher) Flush(ctx context.Context) (int, error) {
	p.mu.Lock()
	batch := p.buf
	p.buf = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	if err := p.appendAll(ctx, batch); err != nil {
		if err = p.appendAll(ctx, batch); err != nil {
			if p.onBatchDropped != nil {
				p.onBatchDropped(len(batch), err)
			}
			return 0, err
		}
	}
	return len(batch), nil
}

func (p *Publisher) appendAll(ctx context.Context, batch []domain.Issue) error {
	for _, issue := range batch {
		raw, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("publish: marshal issue %q: %w", issue.URL, err)
		}
		if _, err := p.log.XAddTrimmed(ctx, p.streamKey, p.maxLogLen, map[string]any{
			"data": string(raw),
		}); err != nil {
			return fmt.Errorf("publish: xadd: %w", err)
		}
	}
	return nil
}

// PendingCount reports the number of Issues currently buffered
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}
