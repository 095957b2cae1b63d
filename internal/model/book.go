// Package model はドメインモデルを定義する。
package model

// BookMetadata はメタデータプロバイダーから取得した書誌情報を表す。
type BookMetadata struct {
	Provider       string
	ProviderID     string
	Title          string
	Authors        []string
	PublishYear    int
	CoverURL       string
	Description    string
	ISBN10         string
	ISBN13         string
	SeriesName     string
	SeriesPosition *float64
}

// FirstAuthor は先頭の著者名を返す。著者が無い場合は空文字列を返す。
func (b *BookMetadata) FirstAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// Release はリリースソースが返すダウンロード候補を表す。
type Release struct {
	SourceName string
	SourceID   string
	Title      string
	Format     string
	SizeBytes  int64
	Language   string
	Protocol   string
	URL        string
}

// QueuedRelease は外部ダウンロードキューへの投入ペイロードを表す。
// 選択されたリリースに、リクエスト者向けの書誌フィールドを付加したもの。
type QueuedRelease struct {
	Release
	Author         string
	Year           string
	CoverURL       string
	ContentType    ContentType
	SeriesName     string
	SeriesPosition *float64

	// 投入操作を行った管理者の情報
	QueuedByUserID   int64
	QueuedByUsername string
}

// LibraryItem は外部ライブラリカタログの1エントリのスナップショットを表す。
// 重複検出キャッシュの要素として保持される。
type LibraryItem struct {
	ID     string
	Title  string
	Author string
}
