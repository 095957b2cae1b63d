// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookman/internal/model"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに呼び出し元情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// UserResolver はセッションIDから現在のユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type UserResolver interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// NewIdentityMiddleware は呼び出し元の認証情報を解決するミドルウェアを返す。
// requireAuthがtrueの場合、未認証リクエストには401を返す。
//
// 認証モードがnoneの場合は全リクエストをUserID=0の管理者として扱い、
// Cookieの有無にかかわらず常に通過させる。
func NewIdentityMiddleware(authDisabled bool, resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authDisabled {
				ctx := ContextWithIdentity(r.Context(), model.Identity{UserID: 0, IsAdmin: true})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := resolver.GetCurrentUser(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("セッションの解決に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			identity := model.Identity{
				UserID:   user.ID,
				Username: user.Username,
				IsAdmin:  user.IsAdmin,
			}
			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAdminMiddleware は管理者権限を要求するミドルウェアを返す。
// IdentityMiddlewareの後に配置する。
func NewRequireAdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !identity.IsAdmin {
				WriteErrorResponse(w, http.StatusForbidden, model.NewAccessDeniedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext はリクエストコンテキストから呼び出し元情報を取得する。
// IdentityMiddlewareを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok {
		return model.Identity{}, fmt.Errorf("識別情報がコンテキストにありません")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストに呼び出し元情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
