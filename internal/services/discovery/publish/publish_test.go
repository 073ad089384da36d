package publish

import (
	"context"
	"errors"
	"testing"

	"discoveryd/internal/services/discovery/domain"
)

type fakeDedup struct {
	seen map[string]bool
}

func newFakeDedup() *fakeDedup { return &fakeDedup{seen: map[string]bool{}} }

func (f *fakeDedup) IsDuplicate(ctx context.Context, url string) (bool, error) {
	return f.seen[url], nil
}

func (f *fakeDedup) MarkSeen(ctx context.Context, url string) error {
	f.seen[url] = true
	return nil
}

type fakeLog struct {
	appended []map[string]any
	failN    int // fail the next N XAddTrimmed calls
	err      error
}

func (f *fakeLog) XAddTrimmed(ctx context.Context, key string, maxLen int64, values map[string]any) (string, error) {
	if f.failN > 0 {
		f.failN--
		return "", f.err
	}
	f.appended = append(f.appended, values)
	return "0-1", nil
}

func issueWithURL(url string) domain.Issue {
	return domain.Issue{URL: url, Title: "fix the thing"}
}

type fakeRecorder struct {
	recorded []domain.Issue
	err      error
}

func (f *fakeRecorder) UpsertOpen(ctx context.Context, issue domain.Issue) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, issue)
	return nil
}

func TestPublish_RecordsAcceptedIssueAsOpen(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	p := New(newFakeDedup(), &fakeLog{}, Options{Recorder: rec})

	issue := issueWithURL("https://forge.example/o/r/issues/9")
	ok, err := p.Publish(context.Background(), issue)
	if err != nil || !ok {
		t.Fatalf("expected accepted publish, got ok=%v err=%v", ok, err)
	}
	if len(rec.recorded) != 1 || rec.recorded[0].URL != issue.URL {
		t.Fatalf("expected issue recorded as open, got %+v", rec.recorded)
	}
}

func TestPublish_SurfacesRecorderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("pg unavailable")
	rec := &fakeRecorder{err: boom}
	p := New(newFakeDedup(), &fakeLog{}, Options{Recorder: rec})

	ok, err := p.Publish(context.Background(), issueWithURL("u1"))
	if !errors.Is(err, boom) || ok {
		t.Fatalf("expected recorder error surfaced, got ok=%v err=%v", ok, err)
	}
}

func TestPublish_RejectsMissingURL(t *testing.T) {
	t.Parallel()
	p := New(newFakeDedup(), &fakeLog{}, Options{})
	ok, err := p.Publish(context.Background(), domain.Issue{})
	if err != nil || ok {
		t.Fatalf("expected rejection for missing url, got ok=%v err=%v", ok, err)
	}
}

func TestPublish_TwiceSameURL_SecondRejected(t *testing.T) {
	t.Parallel()
	p := New(newFakeDedup(), &fakeLog{}, Options{})
	ctx := context.Background()
	issue := issueWithURL("https://forge.example/o/r/issues/1")

	first, err := p.Publish(ctx, issue)
	if err != nil || !first {
		t.Fatalf("expected first publish true, got %v err=%v", first, err)
	}
	second, err := p.Publish(ctx, issue)
	if err != nil || second {
		t.Fatalf("expected second publish false, got %v err=%v", second, err)
	}
	if p.PendingCount() != 1 {
		t.Fatalf("expected exactly one buffered record, got %d", p.PendingCount())
	}
}

func TestPublish_FlushesAtBatchSize(t *testing.T) {
	t.Parallel()
	log := &fakeLog{}
	p := New(newFakeDedup(), log, Options{BatchSize: 2})
	ctx := context.Background()

	if _, err := p.Publish(ctx, issueWithURL("u1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(log.appended) != 0 {
		t.Fatalf("expected no flush yet, got %d appended", len(log.appended))
	}
	if _, err := p.Publish(ctx, issueWithURL("u2")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(log.appended) != 2 {
		t.Fatalf("expected flush of 2 at batch size, got %d", len(log.appended))
	}
	if p.PendingCount() != 0 {
		t.Fatalf("expected buffer drained after flush, got %d", p.PendingCount())
	}
}

func TestFlush_EmptyBufferIsNoop(t *testing.T) {
	t.Parallel()
	p := New(newFakeDedup(), &fakeLog{}, Options{})
	n, err := p.Flush(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected no-op flush, got n=%d err=%v", n, err)
	}
}

func TestFlush_RetriesOnceThenDropsWithMetric(t *testing.T) {
	t.Parallel()
	boom := errors.New("redis unavailable")
	log := &fakeLog{failN: 2, err: boom} // both the attempt and the retry fail
	var droppedN int
	var droppedErr error
	p := New(newFakeDedup(), log, Options{
		BatchSize:      10,
		OnBatchDropped: func(n int, err error) { droppedN = n; droppedErr = err },
	})
	ctx := context.Background()

	if _, err := p.Publish(ctx, issueWithURL("u1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	n, err := p.Flush(ctx)
	if err == nil {
		t.Fatalf("expected Flush to surface the error after exhausting retry")
	}
	if n != 0 {
		t.Fatalf("expected 0 published on dropped batch, got %d", n)
	}
	if droppedN != 1 || !errors.Is(droppedErr, boom) {
		t.Fatalf("expected OnBatchDropped(1, boom), got n=%d err=%v", droppedN, droppedErr)
	}
}

func TestFlush_SucceedsOnRetry(t *testing.T) {
	t.Parallel()
	log := &fakeLog{failN: 1, err: errors.New("transient")}
	p := New(newFakeDedup(), log, Options{BatchSize: 10})
	ctx := context.Background()

	if _, err := p.Publish(ctx, issueWithURL("u1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	n, err := p.Flush(ctx)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 published after retry, got %d", n)
	}
}
