package security

import (
	"testing"
	"time"
)

// TestValidateURL_AllowedURLs は安全なURLが検証を通過することを検証する。
func TestValidateURL_AllowedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []string{
		"https://openlibrary.org/search.json?q=test",
		"https://annas-archive.org/search",
		"http://example.com/cover.jpg",
		"https://8.8.8.8/path",
	}

	for _, rawURL := range tests {
		t.Run(rawURL, func(t *testing.T) {
			if err := guard.ValidateURL(rawURL); err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
			}
		})
	}
}

// TestValidateURL_BlockedURLs は危険なURLが拒否されることを検証する。
func TestValidateURL_BlockedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name   string
		rawURL string
	}{
		{name: "空URL", rawURL: ""},
		{name: "ftpスキーム", rawURL: "ftp://example.com/file"},
		{name: "fileスキーム", rawURL: "file:///etc/passwd"},
		{name: "javascriptスキーム", rawURL: "javascript:alert(1)"},
		{name: "localhost", rawURL: "http://localhost:8080/admin"},
		{name: "ループバックIP", rawURL: "http://127.0.0.1/admin"},
		{name: "プライベートIP 10系", rawURL: "http://10.0.0.5/internal"},
		{name: "プライベートIP 172系", rawURL: "http://172.16.0.1/internal"},
		{name: "プライベートIP 192系", rawURL: "http://192.168.1.1/router"},
		{name: "メタデータIP", rawURL: "http://169.254.169.254/latest/meta-data/"},
		{name: "IPv6ループバック", rawURL: "http://[::1]/admin"},
		{name: "ホストなし", rawURL: "https:///path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.rawURL)
			}
		})
	}
}

// TestNewSafeClient_ReturnsClient はSSRF防止クライアントが生成されることを検証する。
func TestNewSafeClient_ReturnsClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

// TestSSRFGuard_ImplementsInterface はインターフェース適合を検証する。
func TestSSRFGuard_ImplementsInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
