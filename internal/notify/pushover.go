package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// pushoverEndpoint はPushoverメッセージAPIのエンドポイント。
const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// PushoverNotifier は新規リクエストを管理者へプッシュ通知する購読者。
type PushoverNotifier struct {
	userKey    string
	apiToken   string
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewPushoverNotifier はPushoverNotifierの新しいインスタンスを生成する。
func NewPushoverNotifier(userKey, apiToken string, httpClient *http.Client, logger *slog.Logger) *PushoverNotifier {
	return &PushoverNotifier{
		userKey:    userKey,
		apiToken:   apiToken,
		httpClient: httpClient,
		logger:     logger,
		endpoint:   pushoverEndpoint,
	}
}

// Name は購読者の識別名を返す。
func (n *PushoverNotifier) Name() string { return "pushover" }

// Handle は新規リクエストイベントを管理者へプッシュ通知する。
func (n *PushoverNotifier) Handle(ctx context.Context, event Event) {
	if event.Type != EventRequestCreated {
		return
	}

	message := fmt.Sprintf("%s さんが「%s」をリクエストしました",
		event.Request.RequesterUsername, event.Request.Title)

	form := url.Values{}
	form.Set("token", n.apiToken)
	form.Set("user", n.userKey)
	form.Set("title", "新しいリクエスト")
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		n.logger.Error("Pushover通知リクエストの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Pushover通知の送信に失敗しました",
			slog.Int64("request_id", event.Request.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.Error("Pushover APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int64("request_id", event.Request.ID),
		)
		return
	}

	n.logger.Info("Pushover通知を送信しました",
		slog.Int64("request_id", event.Request.ID),
	)
}

var _ Handler = (*PushoverNotifier)(nil)
