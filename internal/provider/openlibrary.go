package provider

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

const (
	// openLibraryName はOpen Libraryプロバイダの識別名。
	openLibraryName = "openlibrary"
	// defaultOpenLibraryBaseURL はOpen Library APIのベースURL。
	defaultOpenLibraryBaseURL = "https://openlibrary.org"
	// coverURLFormat はカバー画像URLのフォーマット。
	coverURLFormat = "https://covers.openlibrary.org/b/id/%d-L.jpg"
	// searchLimit は検索結果の最大件数。
	searchLimit = 20
	// maxAuthorLookups はGetBook時に解決する著者数の上限。
	maxAuthorLookups = 3
)

// OpenLibrary はOpen Library JSON APIによるメタデータプロバイダ。
type OpenLibrary struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にベースURLを差し替え可能
}

// NewOpenLibrary はOpenLibraryの新しいインスタンスを生成する。
// httpClientにはSSRF防止クライアントを渡す。
func NewOpenLibrary(httpClient *http.Client, logger *slog.Logger) *OpenLibrary {
	return &OpenLibrary{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    defaultOpenLibraryBaseURL,
	}
}

// Name はプロバイダの識別名を返す。
func (p *OpenLibrary) Name() string { return openLibraryName }

// searchResponse は/search.jsonのレスポンス構造。
type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverID          int      `json:"cover_i"`
	ISBN             []string `json:"isbn"`
}

// Search はクエリ文字列で書籍を検索する。
func (p *OpenLibrary) Search(ctx context.Context, query string) ([]*model.BookMetadata, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s&limit=%d",
		p.baseURL, url.QueryEscape(query), searchLimit)

	var result searchResponse
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("Open Library検索に失敗しました: %w", err)
	}

	books := make([]*model.BookMetadata, 0, len(result.Docs))
	for _, doc := range result.Docs {
		book := &model.BookMetadata{
			Provider:    openLibraryName,
			ProviderID:  workIDFromKey(doc.Key),
			Title:       doc.Title,
			Authors:     doc.AuthorName,
			PublishYear: doc.FirstPublishYear,
		}
		if doc.CoverID > 0 {
			book.CoverURL = fmt.Sprintf(coverURLFormat, doc.CoverID)
		}
		for _, isbn := range doc.ISBN {
			switch len(isbn) {
			case 10:
				if book.ISBN10 == "" {
					book.ISBN10 = isbn
				}
			case 13:
				if book.ISBN13 == "" {
					book.ISBN13 = isbn
				}
			}
		}
		books = append(books, book)
	}

	return books, nil
}

// workResponse は/works/{id}.jsonのレスポンス構造。
// descriptionは文字列またはオブジェクトの2形式がある。
type workResponse struct {
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
	Covers      []int           `json:"covers"`
	Authors     []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors"`
}

type authorResponse struct {
	Name string `json:"name"`
}

// GetBook はOpen LibraryのワークIDで単一書籍のメタデータを解決する。
// 見つからない場合はnilを返す。
func (p *OpenLibrary) GetBook(ctx context.Context, providerID string) (*model.BookMetadata, error) {
	endpoint := fmt.Sprintf("%s/works/%s.json", p.baseURL, url.PathEscape(providerID))

	var work workResponse
	err := p.getJSON(ctx, endpoint, &work)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Open Libraryワークの取得に失敗しました: %w", err)
	}
	if work.Title == "" {
		return nil, nil
	}

	book := &model.BookMetadata{
		Provider:    openLibraryName,
		ProviderID:  providerID,
		Title:       work.Title,
		Description: parseDescription(work.Description),
	}
	if len(work.Covers) > 0 && work.Covers[0] > 0 {
		book.CoverURL = fmt.Sprintf(coverURLFormat, work.Covers[0])
	}

	// 著者はワークに含まれないため個別に解決する。
	// 解決失敗は致命的ではなくスキップする。
	for i, entry := range work.Authors {
		if i >= maxAuthorLookups {
			break
		}
		name, err := p.fetchAuthorName(ctx, entry.Author.Key)
		if err != nil {
			p.logger.Warn("著者情報の取得に失敗しました",
				slog.String("author_key", entry.Author.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if name != "" {
			book.Authors = append(book.Authors, name)
		}
	}

	return book, nil
}

// fetchAuthorName は著者キー（例: /authors/OL23919A）から著者名を解決する。
func (p *OpenLibrary) fetchAuthorName(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	endpoint := fmt.Sprintf("%s/%s.json", p.baseURL, key)

	var author authorResponse
	if err := p.getJSON(ctx, endpoint, &author); err != nil {
		if err == errNotFound {
			return "", nil
		}
		return "", err
	}
	return author.Name, nil
}

// errNotFound はHTTP 404を表す内部エラー。
var errNotFound = fmt.Errorf("not found")

// getJSON はGETリクエストを実行してレスポンスJSONをデコードする。
func (p *OpenLibrary) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Bookman/1.0 Book Request Manager")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Open Library APIがステータス %d を返しました", resp.StatusCode)
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

// workIDFromKey は"/works/OL123W"形式のキーからワークIDを抽出する。
func workIDFromKey(key string) string {
	return strings.TrimPrefix(key, "/works/")
}

// parseDescription は文字列形式とオブジェクト形式の両方のdescriptionをパースする。
func parseDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}

	return ""
}

var _ Provider = (*OpenLibrary)(nil)
