package libsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockCache はLibraryCacheのモック。
type mockCache struct {
	configured bool
	count      int
	err        error
	refreshes  atomic.Int32
}

func (m *mockCache) Configured() bool { return m.configured }

func (m *mockCache) Refresh(ctx context.Context) (int, error) {
	m.refreshes.Add(1)
	return m.count, m.err
}

// countingCollector はメトリクス記録を数えるMetricsCollector。
type countingCollector struct {
	items    []int
	failures int
}

func (c *countingCollector) RecordRequestCreated(contentType string)          {}
func (c *countingCollector) RecordStatusTransition(status string)             {}
func (c *countingCollector) RecordOrchestratorOutcome(outcome string)         {}
func (c *countingCollector) RecordOrchestratorLatency(duration time.Duration) {}
func (c *countingCollector) RecordLibraryRefreshItems(count int)              { c.items = append(c.items, count) }
func (c *countingCollector) RecordLibraryRefreshFailure()                     { c.failures++ }
func (c *countingCollector) RecordHTTPStatus(statusCode int)                  {}

func TestRunOnce_RecordsItemCount(t *testing.T) {
	cache := &mockCache{configured: true, count: 42}
	collector := &countingCollector{}
	r := NewRefresher(cache, collector, testLogger())

	r.RunOnce(context.Background())

	if len(collector.items) != 1 || collector.items[0] != 42 {
		t.Errorf("recorded items = %v, want [42]", collector.items)
	}
	if collector.failures != 0 {
		t.Errorf("failures = %d, want 0", collector.failures)
	}
}

func TestRunOnce_RecordsFailure(t *testing.T) {
	cache := &mockCache{configured: true, err: errors.New("connection refused")}
	collector := &countingCollector{}
	r := NewRefresher(cache, collector, testLogger())

	r.RunOnce(context.Background())

	if collector.failures != 1 {
		t.Errorf("failures = %d, want 1", collector.failures)
	}
	if len(collector.items) != 0 {
		t.Errorf("recorded items = %v, want none", collector.items)
	}
}

func TestStart_SkipsWhenUnconfigured(t *testing.T) {
	cache := &mockCache{configured: false}
	r := NewRefresher(cache, &countingCollector{}, testLogger())

	done := make(chan struct{})
	go func() {
		r.Start(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when unconfigured")
	}
	if cache.refreshes.Load() != 0 {
		t.Errorf("refreshes = %d, want 0", cache.refreshes.Load())
	}
}

func TestStart_RunsImmediatelyThenPeriodically(t *testing.T) {
	cache := &mockCache{configured: true, count: 1}
	r := NewRefresher(cache, &countingCollector{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Start(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for cache.refreshes.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("refreshes = %d, want at least 2", cache.refreshes.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	cache := &mockCache{configured: true}
	r := NewRefresher(cache, &countingCollector{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx, time.Hour)
		close(done)
	}()

	// 初回実行を待ってからキャンセル
	deadline := time.Now().Add(2 * time.Second)
	for cache.refreshes.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first refresh did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start should return after context cancellation")
	}
}
