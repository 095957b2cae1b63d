// Package notify はリクエストライフサイクルイベントの配信機能を提供する。
//
// ステータス遷移の完了ごとに型付きイベントがバスに発行され、
// メール・Discord・Pushover・SSEなどの購読者へファンアウトされる。
// 配信はすべてベストエフォートであり、遷移自体に影響を与えることはない。
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookman/internal/model"
)

// EventType はライフサイクルイベントの種別。
type EventType string

const (
	// EventRequestCreated は新規リクエスト作成イベント。
	EventRequestCreated EventType = "request_created"
	// EventStatusChanged はステータス遷移イベント。
	EventStatusChanged EventType = "status_changed"
	// EventBookAvailable はダウンロード完了による書籍利用可能イベント。
	EventBookAvailable EventType = "book_available"
)

// Event はバスで配信されるライフサイクルイベント。
// Requestは発行時点のスナップショットであり、購読者が共有状態に
// 触れることなく処理できる。
type Event struct {
	// ID はイベントの一意識別子。SSEのidフィールドやログの突き合わせに使う。
	ID         string
	Type       EventType
	Request    model.Request
	OldStatus  model.RequestStatus
	NewStatus  model.RequestStatus
	OccurredAt time.Time
}

// NewRequestCreated はリクエスト作成イベントを生成する。
func NewRequestCreated(req *model.Request) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventRequestCreated,
		Request:    *req,
		NewStatus:  req.Status,
		OccurredAt: time.Now(),
	}
}

// NewStatusChanged はステータス遷移イベントを生成する。
func NewStatusChanged(req *model.Request, oldStatus model.RequestStatus) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventStatusChanged,
		Request:    *req,
		OldStatus:  oldStatus,
		NewStatus:  req.Status,
		OccurredAt: time.Now(),
	}
}

// NewBookAvailable は書籍利用可能イベントを生成する。
func NewBookAvailable(req *model.Request) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventBookAvailable,
		Request:    *req,
		NewStatus:  req.Status,
		OccurredAt: time.Now(),
	}
}
