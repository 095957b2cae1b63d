package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/bookman/internal/notify"
)

// sseClientBuffer はクライアントごとの送信バッファ。遅いクライアントは
// バッファ溢れでイベントを取りこぼす（再接続で最新状態に追いつく前提）。
const sseClientBuffer = 16

// sseHeartbeatInterval はプロキシのアイドル切断を防ぐコメント送信間隔。
const sseHeartbeatInterval = 30 * time.Second

// sseEvent はSSEで配信されるイベントのペイロード。
// IDはSSEのidフィールドとして送られ、JSONボディには含めない。
type sseEvent struct {
	ID         string `json:"-"`
	Type       string `json:"type"`
	RequestID  int64  `json:"request_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	OldStatus  string `json:"old_status,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// EventsHub はライフサイクルイベントを接続中のクライアントへ
// Server-Sent Eventsとして配信する。notify.Busの購読者として登録される。
type EventsHub struct {
	logger *slog.Logger

	mutex   sync.Mutex
	nextID  int64
	clients map[int64]chan sseEvent
}

// NewEventsHub はEventsHubを生成する。
func NewEventsHub(logger *slog.Logger) *EventsHub {
	return &EventsHub{
		logger:  logger,
		clients: make(map[int64]chan sseEvent),
	}
}

// Name はnotify.Handlerを実装する。
func (h *EventsHub) Name() string { return "sse" }

// Handle はイベントを全クライアントへ配信する。notify.Handlerを実装する。
// 送信バッファが満杯のクライアントはスキップされる。
func (h *EventsHub) Handle(ctx context.Context, event notify.Event) {
	payload := sseEvent{
		ID:         event.ID,
		Type:       string(event.Type),
		RequestID:  event.Request.ID,
		Title:      event.Request.Title,
		Status:     string(event.NewStatus),
		OldStatus:  string(event.OldStatus),
		OccurredAt: event.OccurredAt.UTC().Format(time.RFC3339),
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			h.logger.Warn("SSEクライアントのバッファが満杯のためイベントを破棄しました",
				slog.Int64("client_id", id),
			)
		}
	}
}

// ClientCount は接続中のクライアント数を返す。テスト用。
func (h *EventsHub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// subscribe はクライアントを登録し、IDとイベントチャネルを返す。
func (h *EventsHub) subscribe() (int64, chan sseEvent) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.nextID++
	ch := make(chan sseEvent, sseClientBuffer)
	h.clients[h.nextID] = ch
	return h.nextID, ch
}

// unsubscribe はクライアントを登録解除する。
func (h *EventsHub) unsubscribe(id int64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, id)
}

// ServeHTTP はSSEストリームを提供する。
// GET /api/events
func (h *EventsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := h.subscribe()
	defer h.unsubscribe(id)

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event := <-ch:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if event.ID != "" {
				fmt.Fprintf(w, "id: %s\n", event.ID)
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
