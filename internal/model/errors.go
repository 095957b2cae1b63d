// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, request, library, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTitleRequired      = "TITLE_REQUIRED"
	ErrCodeInvalidContentType = "INVALID_CONTENT_TYPE"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeDuplicateRequest   = "DUPLICATE_REQUEST"
	ErrCodeRequestNotFound    = "REQUEST_NOT_FOUND"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeLoginFailed        = "LOGIN_FAILED"
)

// NewTitleRequiredError はタイトル未指定エラーを生成する。
func NewTitleRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTitleRequired,
		Message:  "タイトルは必須です。",
		Category: "validation",
		Action:   "リクエストする書籍のタイトルを入力してください。",
	}
}

// NewInvalidContentTypeError は無効なコンテンツ種別エラーを生成する。
func NewInvalidContentTypeError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContentType,
		Message:  fmt.Sprintf("無効なコンテンツ種別です: %s", contentType),
		Category: "validation",
		Action:   "content_typeには ebook または audiobook を指定してください。",
	}
}

// NewInvalidStatusError は無効なステータス値エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "statusには pending, approved, denied, downloading, fulfilled, failed, cancelled のいずれかを指定してください。",
	}
}

// NewDuplicateRequestError は重複アクティブリクエストエラーを生成する。
func NewDuplicateRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateRequest,
		Message:  "この書籍のアクティブなリクエストが既に存在します。",
		Category: "request",
		Action:   "リクエスト一覧から既存のリクエストを確認してください。",
	}
}

// NewRequestNotFoundError はリクエスト未検出エラーを生成する。
func NewRequestNotFoundError(requestID int64) *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotFound,
		Message:  fmt.Sprintf("指定されたリクエストが見つかりません: %d", requestID),
		Category: "request",
		Action:   "リクエストIDを確認してください。",
	}
}

// NewInvalidTransitionError は不正な状態遷移エラーを生成する。
func NewInvalidTransitionError(operation string, current RequestStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("ステータス '%s' のリクエストに対して %s は実行できません。", current, operation),
		Category: "request",
		Action:   "リクエストの現在のステータスを確認してください。",
	}
}

// NewAccessDeniedError はアクセス拒否エラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "このリクエストへのアクセス権がありません。",
		Category: "auth",
		Action:   "自分のリクエストのみ参照できます。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}
