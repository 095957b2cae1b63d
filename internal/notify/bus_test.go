package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// --- モック定義 ---

// mockHandler はテスト用のイベント購読者。
type mockHandler struct {
	name string
	mu   sync.Mutex
	got  []Event
	done chan struct{}
}

func newMockHandler(name string, expect int) *mockHandler {
	return &mockHandler{name: name, done: make(chan struct{}, expect)}
}

func (m *mockHandler) Name() string { return m.name }

func (m *mockHandler) Handle(ctx context.Context, event Event) {
	m.mu.Lock()
	m.got = append(m.got, event)
	m.mu.Unlock()
	m.done <- struct{}{}
}

func (m *mockHandler) events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.got...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestBus_PublishFansOutToAllSubscribers は全購読者へイベントが配信されることを検証する。
func TestBus_PublishFansOutToAllSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(testLogger())
	h1 := newMockHandler("sub1", 1)
	h2 := newMockHandler("sub2", 1)
	bus.Register(h1)
	bus.Register(h2)
	bus.Start(ctx)

	req := &model.Request{ID: 1, Title: "テストブック", Status: model.StatusPending}
	bus.Publish(NewRequestCreated(req))

	for _, h := range []*mockHandler{h1, h2} {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %s did not receive event", h.name)
		}
	}

	if got := h1.events(); len(got) != 1 || got[0].Type != EventRequestCreated {
		t.Errorf("h1 events = %+v, want 1 request_created", got)
	}
	if got := h2.events(); len(got) != 1 || got[0].Request.ID != 1 {
		t.Errorf("h2 events = %+v, want request id 1", got)
	}
}

// TestBus_PublishNeverBlocks は購読者が停止していてもPublishがブロックしないことを検証する。
func TestBus_PublishNeverBlocks(t *testing.T) {
	// Startを呼ばないため購読者チャネルは消費されない
	bus := NewBus(testLogger())
	bus.Register(newMockHandler("stalled", 0))

	req := &model.Request{ID: 1, Title: "テストブック"}

	published := make(chan struct{})
	go func() {
		// バッファサイズを超える件数を発行してもブロックしないこと
		for i := 0; i < defaultBufferSize*2; i++ {
			bus.Publish(NewRequestCreated(req))
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

// TestBus_StopsOnContextCancel はコンテキストキャンセルで配信が停止することを検証する。
func TestBus_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := NewBus(testLogger())
	bus.Register(newMockHandler("sub", 1))
	bus.Start(ctx)

	cancel()

	stopped := make(chan struct{})
	go func() {
		bus.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("bus goroutines did not stop after cancel")
	}
}

// TestEventConstructors はイベントコンストラクタがスナップショットを取ることを検証する。
func TestEventConstructors(t *testing.T) {
	req := &model.Request{ID: 7, Title: "テストブック", Status: model.StatusApproved}

	event := NewStatusChanged(req, model.StatusPending)
	if event.Type != EventStatusChanged {
		t.Errorf("event.Type = %q, want %q", event.Type, EventStatusChanged)
	}
	if event.OldStatus != model.StatusPending || event.NewStatus != model.StatusApproved {
		t.Errorf("transition = %q -> %q, want pending -> approved", event.OldStatus, event.NewStatus)
	}

	// 発行後にリクエストを変更してもイベントのスナップショットは変わらない
	req.Title = "変更後"
	if event.Request.Title != "テストブック" {
		t.Errorf("event snapshot mutated: %q", event.Request.Title)
	}

	available := NewBookAvailable(req)
	if available.Type != EventBookAvailable {
		t.Errorf("available.Type = %q, want %q", available.Type, EventBookAvailable)
	}
}
