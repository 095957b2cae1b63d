package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockSessionRepo はSessionRepositoryのモック。
type mockSessionRepo struct {
	deleted int64
	err     error
	calls   atomic.Int32
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error { return nil }

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.deleted, m.err
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func TestRun_DeletesExpiredSessions(t *testing.T) {
	repo := &mockSessionRepo{deleted: 3}
	job := NewSessionCleanupJob(repo, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if repo.calls.Load() != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", repo.calls.Load())
	}
}

func TestRun_PropagatesError(t *testing.T) {
	repo := &mockSessionRepo{err: errors.New("connection refused")}
	job := NewSessionCleanupJob(repo, testLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Error("Run() = nil, want error")
	}
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	repo := &mockSessionRepo{}
	job := NewSessionCleanupJob(repo, testLogger())
	job.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for repo.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first run did not happen")
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
