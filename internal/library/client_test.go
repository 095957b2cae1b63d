package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestClient_ListBookItems はライブラリ探索と蔵書取得を検証する。
func TestClient_ListBookItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/libraries":
			w.Write([]byte(`{
				"libraries": [
					{"id": "lib-books", "name": "Books", "mediaType": "book"},
					{"id": "lib-pods", "name": "Podcasts", "mediaType": "podcast"}
				]
			}`))
		case "/api/libraries/lib-books/items":
			if got := r.URL.Query().Get("minified"); got != "1" {
				t.Errorf("minified = %q, want 1", got)
			}
			w.Write([]byte(`{
				"results": [
					{"id": "item-1", "media": {"metadata": {"title": "The Hobbit", "authorName": "J.R.R. Tolkien"}}},
					{"id": "item-2", "media": {"metadata": {"title": "Dune", "authorName": "Frank Herbert"}}}
				]
			}`))
		case "/api/libraries/lib-pods/items":
			t.Error("podcast library should not be listed")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", server.Client(), testLogger())
	items, err := client.ListBookItems(context.Background())
	if err != nil {
		t.Fatalf("ListBookItems() = %v, want nil", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ID != "item-1" || items[0].Title != "The Hobbit" || items[0].Author != "J.R.R. Tolkien" {
		t.Errorf("items[0] = %+v", items[0])
	}
}

// TestClient_ListBookItems_ServerError はエラーステータスがエラーになることを検証する。
func TestClient_ListBookItems_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", server.Client(), testLogger())
	if _, err := client.ListBookItems(context.Background()); err == nil {
		t.Error("expected error on 500")
	}
}

// TestClient_ListBookItems_NoBookLibraries は書籍ライブラリなしで空を返すことを検証する。
func TestClient_ListBookItems_NoBookLibraries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"libraries": [{"id": "lib-pods", "mediaType": "podcast"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", server.Client(), testLogger())
	items, err := client.ListBookItems(context.Background())
	if err != nil {
		t.Fatalf("ListBookItems() = %v, want nil", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}
