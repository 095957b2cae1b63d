// Package library は蔵書サーバー連携と重複検出キャッシュを提供する。
//
// Client はAudiobookshelf互換APIから蔵書一覧を取得し、Cache は
// その{id, title, author}スナップショットをメモリに保持して
// リクエスト作成時の所有済み判定に使用する。
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/bookman/internal/model"
)

// ItemLister は蔵書一覧取得のインターフェース。
// テスト時にモックに差し替え可能。
type ItemLister interface {
	ListBookItems(ctx context.Context) ([]model.LibraryItem, error)
}

// Client はAudiobookshelf互換APIの蔵書クライアント。
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// 蔵書サーバーはLAN上に存在することがあるため、httpClientには
// SSRF防止なしの通常クライアントを渡してよい。
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// librariesResponse は/api/librariesのレスポンス構造。
type librariesResponse struct {
	Libraries []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		MediaType string `json:"mediaType"`
	} `json:"libraries"`
}

// itemsResponse は/api/libraries/{id}/items?minified=1のレスポンス構造。
type itemsResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Media struct {
			Metadata struct {
				Title      string `json:"title"`
				AuthorName string `json:"authorName"`
			} `json:"metadata"`
		} `json:"media"`
	} `json:"results"`
}

// ListBookItems は書籍ライブラリの全蔵書を取得する。
// mediaTypeがbookのライブラリのみを対象とする。
func (c *Client) ListBookItems(ctx context.Context) ([]model.LibraryItem, error) {
	var libs librariesResponse
	if err := c.getJSON(ctx, "/api/libraries", &libs); err != nil {
		return nil, fmt.Errorf("ライブラリ一覧の取得に失敗しました: %w", err)
	}

	var items []model.LibraryItem
	for _, lib := range libs.Libraries {
		if lib.MediaType != "book" {
			continue
		}

		var page itemsResponse
		endpoint := fmt.Sprintf("/api/libraries/%s/items?minified=1", url.PathEscape(lib.ID))
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("蔵書一覧の取得に失敗しました (library=%s): %w", lib.ID, err)
		}

		for _, result := range page.Results {
			items = append(items, model.LibraryItem{
				ID:     result.ID,
				Title:  result.Media.Metadata.Title,
				Author: result.Media.Metadata.AuthorName,
			})
		}
	}

	c.logger.Debug("蔵書一覧を取得しました", slog.Int("item_count", len(items)))
	return items, nil
}

// getJSON はGETリクエストを実行してレスポンスJSONをデコードする。
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("蔵書サーバーがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

var _ ItemLister = (*Client)(nil)
