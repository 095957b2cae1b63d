package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// discordWebhookPrefix は受け入れ可能なDiscord WebhookのURLプレフィックス。
const discordWebhookPrefix = "https://discord.com/api/webhooks/"

// discordEmbed はDiscord埋め込みメッセージの構造。
type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Thumbnail   *discordEmbedImage  `json:"thumbnail,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordEmbedImage struct {
	URL string `json:"url"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordNotifier は新規リクエストと書籍利用可能をDiscord Webhookへ通知する購読者。
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDiscordNotifier はDiscordNotifierの新しいインスタンスを生成する。
// webhookURLがDiscordのWebhook URLでない場合はエラーを返す。
func NewDiscordNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) (*DiscordNotifier, error) {
	if !strings.HasPrefix(webhookURL, discordWebhookPrefix) {
		return nil, fmt.Errorf("invalid discord webhook URL: %s", webhookURL)
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name は購読者の識別名を返す。
func (n *DiscordNotifier) Name() string { return "discord" }

// Handle は新規リクエストと書籍利用可能イベントを埋め込みメッセージで通知する。
func (n *DiscordNotifier) Handle(ctx context.Context, event Event) {
	var embed discordEmbed

	switch event.Type {
	case EventRequestCreated:
		embed = discordEmbed{
			Title: "新しいリクエスト",
			Color: 0x3498db,
			Fields: []discordEmbedField{
				{Name: "タイトル", Value: event.Request.Title, Inline: true},
				{Name: "種別", Value: string(event.Request.ContentType), Inline: true},
				{Name: "リクエスト者", Value: event.Request.RequesterUsername, Inline: true},
			},
		}
		if event.Request.Author != "" {
			embed.Fields = append(embed.Fields,
				discordEmbedField{Name: "著者", Value: event.Request.Author, Inline: true})
		}
	case EventBookAvailable:
		embed = discordEmbed{
			Title:       "書籍が利用可能になりました",
			Description: event.Request.Title,
			Color:       0x2ecc71,
		}
	default:
		return
	}

	if event.Request.CoverURL != "" {
		embed.Thumbnail = &discordEmbedImage{URL: event.Request.CoverURL}
	}

	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		n.logger.Error("Discord通知ペイロードのエンコードに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("Discord通知リクエストの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Discord通知の送信に失敗しました",
			slog.Int64("request_id", event.Request.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Error("Discord Webhookがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int64("request_id", event.Request.ID),
		)
		return
	}

	n.logger.Info("Discord通知を送信しました",
		slog.Int64("request_id", event.Request.ID),
		slog.String("event_type", string(event.Type)),
	)
}

var _ Handler = (*DiscordNotifier)(nil)
