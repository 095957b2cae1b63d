// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID                   int64
	Username             string
	DisplayName          string
	Email                string
	PasswordHash         string
	IsAdmin              bool
	RequestsLastViewedAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Identity は認証済みリクエストの呼び出し元を表す。
// 認証モードがnoneの場合はUserID=0の管理者として扱われる。
type Identity struct {
	UserID   int64
	Username string
	IsAdmin  bool
}
