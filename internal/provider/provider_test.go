package provider

import (
	"context"
	"testing"

	"github.com/hitoshi/bookman/internal/model"
)

// fakeProvider はテスト用の最小プロバイダ実装。
type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query string) ([]*model.BookMetadata, error) {
	return nil, nil
}

func (f *fakeProvider) GetBook(ctx context.Context, providerID string) (*model.BookMetadata, error) {
	return nil, nil
}

// TestRegistry_RegisterAndGet は登録と名前解決を検証する。
func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	p := &fakeProvider{name: "openlibrary"}

	if err := registry.Register(p); err != nil {
		t.Fatalf("Register() = %v, want nil", err)
	}

	got := registry.Get("openlibrary")
	if got != p {
		t.Errorf("Get(openlibrary) = %v, want registered provider", got)
	}
}

// TestRegistry_GetUnknownReturnsNil は未登録名の解決がnilを返すことを検証する。
func TestRegistry_GetUnknownReturnsNil(t *testing.T) {
	registry := NewRegistry()
	if got := registry.Get("unknown"); got != nil {
		t.Errorf("Get(unknown) = %v, want nil", got)
	}
}

// TestRegistry_DuplicateRegisterFails は同名の再登録がエラーになることを検証する。
func TestRegistry_DuplicateRegisterFails(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeProvider{name: "openlibrary"})

	if err := registry.Register(&fakeProvider{name: "openlibrary"}); err == nil {
		t.Error("duplicate Register() should fail")
	}
}

// TestRegistry_NamesSorted は登録済み名がソート済みで返ることを検証する。
func TestRegistry_NamesSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeProvider{name: "zeta"})
	registry.Register(&fakeProvider{name: "alpha"})

	names := registry.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("Names() = %v, want [alpha zeta]", names)
	}
}
