package security

import (
	"strings"
	"testing"
)

// TestSanitizeDescription_StripsTags は説明文からHTMLタグが除去されることを検証する。
func TestSanitizeDescription_StripsTags(t *testing.T) {
	sanitizer := NewMetadataSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "pタグが除去される",
			input: "<p>ある物語の説明</p>",
			want:  "ある物語の説明",
		},
		{
			name:  "scriptタグと内容が除去される",
			input: `説明<script>alert("xss")</script>`,
			want:  "説明",
		},
		{
			name:  "ネストしたタグが除去される",
			input: "<div><strong>太字</strong>の説明</div>",
			want:  "太字の説明",
		},
		{
			name:  "空文字列は空文字列のまま",
			input: "",
			want:  "",
		},
		{
			name:  "タグなしのテキストは変更されない",
			input: "プレーンな説明文",
			want:  "プレーンな説明文",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeDescription(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeDescription(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeDescription_Idempotent はサニタイズが冪等であることを検証する。
func TestSanitizeDescription_Idempotent(t *testing.T) {
	sanitizer := NewMetadataSanitizer()
	input := `<p>説明<script>alert(1)</script></p>`

	once := sanitizer.SanitizeDescription(input)
	twice := sanitizer.SanitizeDescription(once)
	if once != twice {
		t.Errorf("sanitize not idempotent: first=%q second=%q", once, twice)
	}
}

// TestSanitizeCoverURL はカバーURLのスキーム検証を検証する。
func TestSanitizeCoverURL(t *testing.T) {
	sanitizer := NewMetadataSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "httpsのURLは通過する",
			input: "https://covers.openlibrary.org/b/id/123-L.jpg",
			want:  "https://covers.openlibrary.org/b/id/123-L.jpg",
		},
		{
			name:  "httpのURLは通過する",
			input: "http://example.com/cover.jpg",
			want:  "http://example.com/cover.jpg",
		},
		{
			name:  "javascriptスキームは空文字列になる",
			input: "javascript:alert(1)",
			want:  "",
		},
		{
			name:  "dataスキームは空文字列になる",
			input: "data:image/png;base64,AAAA",
			want:  "",
		},
		{
			name:  "空文字列は空文字列のまま",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeCoverURL(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeCoverURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestMetadataSanitizer_ImplementsInterface はインターフェース適合を検証する。
func TestMetadataSanitizer_ImplementsInterface(t *testing.T) {
	var _ MetadataSanitizerService = NewMetadataSanitizer()
}

// TestSanitizeDescription_TrimsWhitespace はタグ除去後の前後空白が除去されることを検証する。
func TestSanitizeDescription_TrimsWhitespace(t *testing.T) {
	sanitizer := NewMetadataSanitizer()
	got := sanitizer.SanitizeDescription("  <p>説明</p>  ")
	if strings.HasPrefix(got, " ") || strings.HasSuffix(got, " ") {
		t.Errorf("expected trimmed output, got %q", got)
	}
}
