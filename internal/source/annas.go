package source

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

// annasName はAnna's Archiveソースの識別名。
const annasName = "annasarchive"

// annasMirrors はAnna's Archiveのミラー。設定でベースURLが
// 指定されていない場合は先頭のミラーを使用する。
var annasMirrors = []string{
	"https://annas-archive.li",
	"https://annas-archive.gs",
	"https://annas-archive.se",
}

// searchResultLimit は1回の検索で取得する最大件数。
const searchResultLimit = 10

// AnnasConfig はAnna's Archiveソースの設定。
type AnnasConfig struct {
	// Enabled はソースの有効化フラグ。
	Enabled bool
	// BaseURL はミラーの代わりに使用するベースURL。空時はデフォルトミラー。
	BaseURL string
	// DonatorKey はAPIアクセスに必要なドナーキー。空の場合はソース無効。
	DonatorKey string
}

// Annas はAnna's Archive JSON APIによるリリース検索ソース。
// ISBN検索を優先し、結果が空の場合はテキスト検索にフォールバックする。
type Annas struct {
	config     AnnasConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnnas はAnnasの新しいインスタンスを生成する。
// httpClientにはSSRF防止クライアントを渡す。
func NewAnnas(config AnnasConfig, httpClient *http.Client, logger *slog.Logger) *Annas {
	return &Annas{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name はソースの識別名を返す。
func (s *Annas) Name() string { return annasName }

// Enabled は設定で有効化されておりドナーキーが設定されている場合にtrueを返す。
func (s *Annas) Enabled() bool {
	return s.config.Enabled && s.config.DonatorKey != ""
}

// SupportsContentType は電子書籍・オーディオブックの両方に対応する。
func (s *Annas) SupportsContentType(contentType model.ContentType) bool {
	return contentType == model.ContentTypeEbook || contentType == model.ContentTypeAudiobook
}

// baseURL は設定されたベースURLまたはデフォルトミラーを返す。
func (s *Annas) baseURL() string {
	if custom := strings.TrimSpace(s.config.BaseURL); custom != "" {
		return strings.TrimSuffix(custom, "/")
	}
	return annasMirrors[0]
}

// Search は検索プランに従ってリリースを検索する。
// ISBNがある場合はISBN検索を先に試し、結果が空ならテキスト検索へ
// フォールバックする。
func (s *Annas) Search(ctx context.Context, book *model.BookMetadata, plan SearchPlan, contentType model.ContentType) ([]*model.Release, error) {
	if !s.Enabled() {
		return nil, nil
	}

	if plan.ISBN != "" {
		releases, err := s.searchQuery(ctx, "isbn:"+plan.ISBN, contentType)
		if err != nil {
			return nil, err
		}
		if len(releases) > 0 {
			return releases, nil
		}
	}

	query := plan.Query
	if query == "" {
		query = plan.FallbackQuery
	}
	if query == "" {
		return nil, nil
	}

	return s.searchQuery(ctx, query, contentType)
}

// annasSearchResponse は/dyn/api/search.jsonのレスポンス構造。
type annasSearchResponse struct {
	Results []annasResult `json:"results"`
}

type annasResult struct {
	MD5       string   `json:"md5"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Extension string   `json:"extension"`
	Language  string   `json:"language"`
	FileSize  int64    `json:"filesize"`
}

// searchQuery は検索APIを1回呼び出して結果をパースする。
func (s *Annas) searchQuery(ctx context.Context, query string, contentType model.ContentType) ([]*model.Release, error) {
	base := s.baseURL()

	params := url.Values{}
	params.Set("q", query)
	params.Set("key", s.config.DonatorKey)
	params.Set("limit", fmt.Sprintf("%d", searchResultLimit))
	if contentType == model.ContentTypeAudiobook {
		params.Set("content", "book_unknown")
	}

	endpoint := fmt.Sprintf("%s/dyn/api/search.json?%s", base, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Anna's Archive APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("Anna's Archive APIが403を返しました（APIキーまたはベースURLを確認してください）")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Anna's Archive APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result annasSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	releases := make([]*model.Release, 0, len(result.Results))
	for _, item := range result.Results {
		if item.MD5 == "" {
			continue
		}

		title := item.Title
		if len(item.Authors) > 0 {
			limit := len(item.Authors)
			if limit > 2 {
				limit = 2
			}
			title = fmt.Sprintf("%s - %s", title, strings.Join(item.Authors[:limit], ", "))
		}

		releases = append(releases, &model.Release{
			SourceName: annasName,
			SourceID:   item.MD5,
			Title:      title,
			Format:     strings.ToUpper(item.Extension),
			SizeBytes:  item.FileSize,
			Language:   item.Language,
			Protocol:   "http",
			URL: fmt.Sprintf("%s/dyn/api/fast_download.json?md5=%s&key=%s",
				base, item.MD5, s.config.DonatorKey),
		})
	}

	s.logger.Info("Anna's Archiveの検索が完了しました",
		slog.String("query", query),
		slog.Int("release_count", len(releases)),
	)

	return releases, nil
}

var _ Source = (*Annas)(nil)
