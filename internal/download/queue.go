package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookman/internal/model"
)

// Queue は外部ダウンロード実行サービスのインターフェース。
// リリースを投入し、実行側のタスクIDを返す。
type Queue interface {
	Enqueue(ctx context.Context, release *model.QueuedRelease) (string, error)
}

// HTTPQueue はHTTP APIで外部ダウンロード実行サービスへ投入するQueue実装。
type HTTPQueue struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPQueue はHTTPQueueの新しいインスタンスを生成する。
func NewHTTPQueue(baseURL string, httpClient *http.Client, logger *slog.Logger) *HTTPQueue {
	return &HTTPQueue{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// enqueueRequest は投入APIのリクエストボディ。
type enqueueRequest struct {
	Release        model.Release `json:"release"`
	Author         string        `json:"author,omitempty"`
	Year           string        `json:"year,omitempty"`
	CoverURL       string        `json:"cover_url,omitempty"`
	ContentType    string        `json:"content_type"`
	SeriesName     string        `json:"series_name,omitempty"`
	SeriesPosition *float64      `json:"series_position,omitempty"`
	QueuedByUserID int64         `json:"queued_by_user_id"`
	QueuedBy       string        `json:"queued_by,omitempty"`
}

// enqueueResponse は投入APIのレスポンスボディ。
type enqueueResponse struct {
	ID string `json:"id"`
}

// Enqueue はリリースを外部ダウンロード実行サービスへ投入する。
// 成功時は実行側のタスクIDを返す。
func (q *HTTPQueue) Enqueue(ctx context.Context, release *model.QueuedRelease) (string, error) {
	payload := enqueueRequest{
		Release:        release.Release,
		Author:         release.Author,
		Year:           release.Year,
		CoverURL:       release.CoverURL,
		ContentType:    string(release.ContentType),
		SeriesName:     release.SeriesName,
		SeriesPosition: release.SeriesPosition,
		QueuedByUserID: release.QueuedByUserID,
		QueuedBy:       release.QueuedByUsername,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("投入ペイロードのエンコードに失敗しました: %w", err)
	}

	endpoint := q.baseURL + "/api/downloads"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ダウンロードキューへの投入に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("ダウンロードキューがステータス %d を返しました", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result enqueueResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("ダウンロードキューのレスポンスにタスクIDがありません")
	}

	q.logger.Info("リリースをダウンロードキューへ投入しました",
		slog.String("task_id", result.ID),
		slog.String("source", release.SourceName),
	)

	return result.ID, nil
}

var _ Queue = (*HTTPQueue)(nil)
