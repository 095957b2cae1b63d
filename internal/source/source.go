// Package source はリリース検索ソースの抽象化と実装を提供する。
//
// ソースは解決済みの書籍メタデータから検索プランを受け取り、
// ダウンロード可能なリリースの一覧を返す。利用可能なソースは
// 起動時にRegistryへ登録される。
package source

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/bookman/internal/model"
)

// SearchPlan は解決済みメタデータから構築される検索プラン。
// ISBNを最優先とし、タイトル+著者、タイトル単体の順に使用する。
type SearchPlan struct {
	// ISBN は優先ISBN。13桁を優先し、なければ10桁。空の場合もある。
	ISBN string
	// Query はタイトルと筆頭著者を結合した検索クエリ。
	Query string
	// FallbackQuery はタイトルのみの検索クエリ。
	FallbackQuery string
}

// BuildSearchPlan は書籍メタデータから検索プランを構築する。
func BuildSearchPlan(book *model.BookMetadata) SearchPlan {
	plan := SearchPlan{
		FallbackQuery: strings.TrimSpace(book.Title),
	}

	if book.ISBN13 != "" {
		plan.ISBN = book.ISBN13
	} else if book.ISBN10 != "" {
		plan.ISBN = book.ISBN10
	}

	terms := []string{}
	if book.Title != "" {
		terms = append(terms, book.Title)
	}
	if author := book.FirstAuthor(); author != "" {
		terms = append(terms, author)
	}
	plan.Query = strings.Join(terms, " ")

	return plan
}

// Source はリリース検索ソースのインターフェース。
type Source interface {
	// Name はソースの識別名を返す。
	Name() string

	// Enabled はソースが現在利用可能かを返す。
	// 設定で無効化されている場合や必須の認証情報がない場合はfalse。
	Enabled() bool

	// SupportsContentType はコンテンツ種別に対応しているかを返す。
	SupportsContentType(contentType model.ContentType) bool

	// Search は検索プランに従ってリリースを検索する。
	// 一致なしの場合は空スライスを返す（エラーではない）。
	Search(ctx context.Context, book *model.BookMetadata, plan SearchPlan, contentType model.ContentType) ([]*model.Release, error)
}

// Registry は登録済みソースの解決を行う。
// 登録は起動時に行い、以降は読み取りのみとなる。
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	order   []string
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register はソースを登録する。同名の再登録は後勝ちで上書きする。
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.sources[s.Name()] = s
}

// Get は名前でソースを解決する。未登録の場合はnilを返す。
func (r *Registry) Get(name string) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// Enabled は現在有効なソースを登録順で返す。
func (r *Registry) Enabled() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var enabled []Source
	for _, name := range r.order {
		if s := r.sources[name]; s.Enabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

// Names は登録済みソース名をソート済みで返す。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
