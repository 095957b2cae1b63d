// Package model はドメインモデルを定義する。
package model

import "time"

// RequestStatus はリクエストのライフサイクル状態を表す。
type RequestStatus string

const (
	// StatusPending は作成直後の承認待ち状態。リクエスト作成時の唯一の初期状態。
	StatusPending RequestStatus = "pending"
	// StatusApproved は管理者によって承認された状態。
	StatusApproved RequestStatus = "approved"
	// StatusDenied は管理者によって却下された状態。
	StatusDenied RequestStatus = "denied"
	// StatusDownloading はダウンロードがキュー投入済みの状態。
	StatusDownloading RequestStatus = "downloading"
	// StatusFulfilled は書籍がライブラリに追加済みの状態。
	StatusFulfilled RequestStatus = "fulfilled"
	// StatusFailed は自動ダウンロードが失敗した終端状態。
	StatusFailed RequestStatus = "failed"
	// StatusCancelled はダウンロードが中断された状態。
	StatusCancelled RequestStatus = "cancelled"
)

// ValidStatuses は許可される全リクエスト状態。
var ValidStatuses = []RequestStatus{
	StatusPending, StatusApproved, StatusDenied, StatusDownloading,
	StatusFulfilled, StatusFailed, StatusCancelled,
}

// IsValid は列挙された状態のいずれかであるかを返す。
func (s RequestStatus) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsActive は重複判定の対象となるアクティブな状態かを返す。
// pending/approved/downloading のリクエストは同一書籍の再リクエストをブロックする。
func (s RequestStatus) IsActive() bool {
	return s == StatusPending || s == StatusApproved || s == StatusDownloading
}

// ContentType はリクエスト対象のコンテンツ種別を表す。
type ContentType string

const (
	// ContentTypeEbook は電子書籍リクエスト。承認時に自動ダウンロードが走る。
	ContentTypeEbook ContentType = "ebook"
	// ContentTypeAudiobook はオーディオブックリクエスト。
	// 自動経路ではapprovedより先に進まず、管理者が手動で管理する。
	ContentTypeAudiobook ContentType = "audiobook"
)

// IsValid は列挙されたコンテンツ種別のいずれかであるかを返す。
func (c ContentType) IsValid() bool {
	return c == ContentTypeEbook || c == ContentTypeAudiobook
}

// RetryableStatuses は管理者がリトライ可能な状態の集合。
var RetryableStatuses = []RequestStatus{
	StatusFailed, StatusCancelled, StatusDenied, StatusDownloading, StatusApproved,
}

// IsRetryable はリトライ操作が許可される状態かを返す。
func (s RequestStatus) IsRetryable() bool {
	for _, v := range RetryableStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Request は書籍/オーディオブックのリクエストを表す。
// statusとcontent_typeは常に列挙値のいずれかであり、
// 違反する書き込みは永続化前に拒否される。
type Request struct {
	ID          int64
	UserID      int64
	Status      RequestStatus
	ContentType ContentType

	Title          string
	Author         string
	Year           string
	CoverURL       string
	Description    string
	ISBN10         string
	ISBN13         string
	Provider       string
	ProviderID     string
	SeriesName     string
	SeriesPosition *float64

	AdminNote       string
	ApprovedBy      *int64
	DownloadTaskID  string
	HiddenFromAdmin bool

	// 表示用のリクエスト者情報（usersテーブルとのJOINで取得）
	RequesterUsername    string
	RequesterDisplayName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusUpdate は状態更新の部分フィールド指定を表す。
// nilのフィールドは変更されない。
type StatusUpdate struct {
	Status         RequestStatus
	AdminNote      *string
	ApprovedBy     *int64
	DownloadTaskID *string
}
