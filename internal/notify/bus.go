package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Handler はイベント購読者のインターフェース。
type Handler interface {
	// Name は購読者の識別名を返す。ログ出力に使用される。
	Name() string
	// Handle はイベントを1件処理する。エラーは購読者内でログに記録し、
	// バスへは伝播させない。
	Handle(ctx context.Context, event Event)
}

// defaultBufferSize は購読者チャネルのデフォルトバッファサイズ。
const defaultBufferSize = 64

// subscriber は登録済み購読者とその配信チャネル。
type subscriber struct {
	handler Handler
	ch      chan Event
}

// Bus はライフサイクルイベントの配信バス。
// 購読者ごとにバッファ付きチャネルと専用ゴルーチンを持ち、
// バッファ満杯時はイベントを破棄して警告を記録する。
// Publishが購読者の処理速度によってブロックされることはない。
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	logger      *slog.Logger
	wg          sync.WaitGroup
	started     bool
}

// NewBus はBusの新しいインスタンスを生成する。
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Register は購読者を登録する。Start後の登録はできない。
func (b *Bus) Register(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		panic("notify: Register after Start")
	}
	b.subscribers = append(b.subscribers, &subscriber{
		handler: handler,
		ch:      make(chan Event, defaultBufferSize),
	})
}

// Start は各購読者の配信ゴルーチンを起動する。
// コンテキストのキャンセルで全ゴルーチンが停止する。
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	b.started = true
	subs := b.subscribers
	b.mu.Unlock()

	for _, sub := range subs {
		b.wg.Add(1)
		go func(sub *subscriber) {
			defer b.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-sub.ch:
					sub.handler.Handle(ctx, event)
				}
			}
		}(sub)
	}
}

// Wait は全配信ゴルーチンの終了を待つ。
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Publish はイベントを全購読者へ配信する。
// 購読者のバッファが満杯の場合はそのイベントを破棄して警告を記録する。
// このメソッドがブロックすることはない。
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("購読者のバッファが満杯のためイベントを破棄しました",
				slog.String("subscriber", sub.handler.Name()),
				slog.String("event_type", string(event.Type)),
				slog.Int64("request_id", event.Request.ID),
			)
		}
	}
}
