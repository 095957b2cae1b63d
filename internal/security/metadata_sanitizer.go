// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MetadataSanitizerService は外部メタデータプロバイダから取得した
// 書籍情報をサニタイズし、XSS攻撃などのセキュリティリスクから
// ユーザーを保護する。bluemondayライブラリのStrictPolicyを使用し、
// 説明文からすべてのHTMLタグを除去する。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MetadataSanitizerService は書籍メタデータのサニタイズ機能のインターフェースを定義する。
// リクエスト作成時およびメタデータ補完時に使用される。
type MetadataSanitizerService interface {
	// SanitizeDescription は説明文からすべてのHTMLタグを除去してプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeDescription(raw string) string

	// SanitizeCoverURL はカバー画像URLを検証する。
	// http/httpsスキーム以外のURL（javascript:, data:等）は空文字列に置換される。
	SanitizeCoverURL(rawURL string) string
}

// metadataSanitizer はMetadataSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type metadataSanitizer struct {
	policy *bluemonday.Policy
}

// NewMetadataSanitizer はMetadataSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去し、テキストのみを通過させる。
func NewMetadataSanitizer() *metadataSanitizer {
	return &metadataSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeDescription は説明文からすべてのHTMLタグを除去してプレーンテキストを返す。
func (s *metadataSanitizer) SanitizeDescription(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// SanitizeCoverURL はカバー画像URLを検証する。
// パース不能なURLおよびhttp/https以外のスキームは空文字列を返す。
func (s *metadataSanitizer) SanitizeCoverURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return rawURL
}
