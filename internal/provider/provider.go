// Package provider は書籍メタデータプロバイダの抽象化と実装を提供する。
//
// プロバイダはタイトル・著者による検索と、プロバイダ固有IDによる
// 単一書籍の解決を担う。利用可能なプロバイダは起動時にRegistryへ
// 登録され、名前で解決される。
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hitoshi/bookman/internal/model"
)

// Provider は書籍メタデータプロバイダのインターフェース。
type Provider interface {
	// Name はプロバイダの識別名を返す。
	Name() string

	// Search はクエリ文字列で書籍を検索する。
	// 一致なしの場合は空スライスを返す（エラーではない）。
	Search(ctx context.Context, query string) ([]*model.BookMetadata, error)

	// GetBook はプロバイダ固有IDで単一書籍のメタデータを解決する。
	// 見つからない場合はnilを返す（エラーではない）。
	GetBook(ctx context.Context, providerID string) (*model.BookMetadata, error)
}

// Registry は登録済みプロバイダの名前解決を行う。
// 登録は起動時に行い、以降は読み取りのみとなる。
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register はプロバイダを登録する。同名の再登録はエラーを返す。
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; exists {
		return fmt.Errorf("provider already registered: %s", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Get は名前でプロバイダを解決する。未登録の場合はnilを返す。
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// Names は登録済みプロバイダ名をソート済みで返す。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
