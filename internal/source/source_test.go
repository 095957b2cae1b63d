package source

import (
	"context"
	"testing"

	"github.com/hitoshi/bookman/internal/model"
)

// fakeSource はテスト用の最小ソース実装。
type fakeSource struct {
	name    string
	enabled bool
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Enabled() bool { return f.enabled }

func (f *fakeSource) SupportsContentType(contentType model.ContentType) bool {
	return true
}

func (f *fakeSource) Search(ctx context.Context, book *model.BookMetadata, plan SearchPlan, contentType model.ContentType) ([]*model.Release, error) {
	return nil, nil
}

// TestBuildSearchPlan は検索プラン構築を検証する。
func TestBuildSearchPlan(t *testing.T) {
	tests := []struct {
		name string
		book *model.BookMetadata
		want SearchPlan
	}{
		{
			name: "ISBN13を優先する",
			book: &model.BookMetadata{
				Title:   "The Hobbit",
				Authors: []string{"J.R.R. Tolkien"},
				ISBN10:  "0618346252",
				ISBN13:  "9780618346257",
			},
			want: SearchPlan{
				ISBN:          "9780618346257",
				Query:         "The Hobbit J.R.R. Tolkien",
				FallbackQuery: "The Hobbit",
			},
		},
		{
			name: "ISBN13がなければISBN10を使用する",
			book: &model.BookMetadata{Title: "The Hobbit", ISBN10: "0618346252"},
			want: SearchPlan{
				ISBN:          "0618346252",
				Query:         "The Hobbit",
				FallbackQuery: "The Hobbit",
			},
		},
		{
			name: "ISBNなしはタイトル検索のみ",
			book: &model.BookMetadata{Title: "The Hobbit"},
			want: SearchPlan{
				Query:         "The Hobbit",
				FallbackQuery: "The Hobbit",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSearchPlan(tt.book)
			if got != tt.want {
				t.Errorf("BuildSearchPlan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestRegistry_EnabledFiltersAndPreservesOrder は有効ソースのみが登録順で返ることを検証する。
func TestRegistry_EnabledFiltersAndPreservesOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeSource{name: "first", enabled: true})
	registry.Register(&fakeSource{name: "disabled", enabled: false})
	registry.Register(&fakeSource{name: "second", enabled: true})

	enabled := registry.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("len(enabled) = %d, want 2", len(enabled))
	}
	if enabled[0].Name() != "first" || enabled[1].Name() != "second" {
		t.Errorf("enabled order = [%s %s], want [first second]",
			enabled[0].Name(), enabled[1].Name())
	}
}

// TestRegistry_GetUnknownReturnsNil は未登録名の解決がnilを返すことを検証する。
func TestRegistry_GetUnknownReturnsNil(t *testing.T) {
	registry := NewRegistry()
	if got := registry.Get("unknown"); got != nil {
		t.Errorf("Get(unknown) = %v, want nil", got)
	}
}
