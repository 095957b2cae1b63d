// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// RequestFilter はリクエスト一覧取得の絞り込み条件を表す。
type RequestFilter struct {
	// UserID が指定された場合、そのユーザーのリクエストのみを返す。
	// nilの場合は全ユーザー（管理者ビュー）。
	UserID *int64
	// Status が指定された場合、そのステータスのみを返す。
	Status *model.RequestStatus
	// IncludeHidden がfalseかつ管理者ビュー（UserID=nil）の場合、
	// hidden_from_adminのリクエストを除外する。
	IncludeHidden bool

	Limit  int
	Offset int
}

// RequestRepository はリクエストデータの永続化インターフェース。
// 全ての変更操作は1文のSQLで行われ、同一行への書き込みはDB側で直列化される。
type RequestRepository interface {
	// Create はリクエストを作成して採番済みの行を返す。
	// statusまたはcontent_typeが列挙値でない場合は書き込み前にエラーを返す。
	Create(ctx context.Context, req *model.Request) (*model.Request, error)

	// FindByID は指定IDのリクエストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Request, error)

	// List は条件に一致するリクエストをcreated_at降順で返す。
	List(ctx context.Context, filter RequestFilter) ([]*model.Request, error)

	// Count は条件に一致するリクエスト数を返す。
	Count(ctx context.Context, userID *int64, status *model.RequestStatus) (int, error)

	// CountsByStatus はステータスごとの件数と合計を返す。
	// userIDがnilの場合は全ユーザー分を集計する。
	CountsByStatus(ctx context.Context, userID *int64) (map[model.RequestStatus]int, int, error)

	// UnviewedCount はユーザーの最終閲覧時刻より後に更新されたリクエスト数を返す。
	// 一度も閲覧していない場合はそのユーザーの全リクエスト数を返す。
	UnviewedCount(ctx context.Context, userID int64) (int, error)

	// UpdateStatus はステータスと指定されたフィールドのみを更新し、更新後の行を返す。
	// 行が存在しない場合はnilを返す。statusが列挙値でない場合は書き込み前にエラーを返す。
	UpdateStatus(ctx context.Context, id int64, update model.StatusUpdate) (*model.Request, error)

	// UpdateMetadata はprovider/provider_idのみを更新し、更新後の行を返す。
	UpdateMetadata(ctx context.Context, id int64, provider, providerID string) (*model.Request, error)

	// Delete はリクエストを物理削除する。削除された場合はtrueを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// DeleteByUserID はユーザーの全リクエストを削除し、削除件数を返す。
	DeleteByUserID(ctx context.Context, userID int64) (int64, error)

	// HideFromAdmin はリクエストを管理者ビューから非表示にする。
	// 所有者のビューには影響しない。更新された場合はtrueを返す。
	HideFromAdmin(ctx context.Context, id int64) (bool, error)

	// ListByDownloadTaskID は外部ダウンロードタスクIDに紐づく全リクエストを返す。
	ListByDownloadTaskID(ctx context.Context, taskID string) ([]*model.Request, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成して採番済みの行を返す。
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// CountAdmins は管理者ユーザー数を返す。
	CountAdmins(ctx context.Context) (int, error)

	// UpdateRequestsLastViewedAt はリクエスト一覧の最終閲覧時刻を更新する。
	UpdateRequestsLastViewedAt(ctx context.Context, userID int64, viewedAt time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
